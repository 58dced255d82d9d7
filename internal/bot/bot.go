package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	"github.com/shopspring/decimal"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"

	"refbot/internal/config"
	"refbot/internal/ledger"
	"refbot/internal/logging"
	"refbot/internal/membership"
	"refbot/internal/menu"
	"refbot/internal/models"
	"refbot/internal/settings"
)

// Bot routes Telegram updates into the ledger. Membership is checked on
// /start and on the "I have joined" button only.
type Bot struct {
	Instance    *telego.Bot
	Ledger      *ledger.Ledger
	Withdrawals *ledger.WithdrawalLog
	Settings    *settings.Store
	Gate        membership.Gate
	Config      *config.Config
	Log         *zap.Logger
	UserStates  map[int64]string
	StatesMu    sync.RWMutex
	username    string
}

func NewBot(instance *telego.Bot, l *ledger.Ledger, w *ledger.WithdrawalLog, s *settings.Store, gate membership.Gate, cfg *config.Config, log *zap.Logger) *Bot {
	return &Bot{
		Instance:    instance,
		Ledger:      l,
		Withdrawals: w,
		Settings:    s,
		Gate:        gate,
		Config:      cfg,
		Log:         logging.OrNop(log),
		UserStates:  make(map[int64]string),
	}
}

// Notify sends a plain message; used by the payout worker.
func (b *Bot) Notify(ctx context.Context, userID int64, text string) error {
	_, err := b.Instance.SendMessage(ctx, tu.Message(tu.ID(userID), text))
	return err
}

// Start long-polls until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if me, err := b.Instance.GetMe(ctx); err == nil {
		b.username = me.Username
	} else {
		b.Log.Warn("Failed to fetch bot profile", zap.Error(err))
	}

	updates, err := b.Instance.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.Instance, updates)
	if err != nil {
		return fmt.Errorf("failed to create bot handler: %w", err)
	}

	handler.Handle(b.handleStart, th.CommandEqual("start"))
	handler.Handle(b.handleSet, th.CommandEqual("set"))
	handler.Handle(b.handleCheckJoin, th.CallbackDataEqual(cbCheckJoin))
	handler.Handle(b.handleProfile, th.CallbackDataEqual(string(menu.Profile)))
	handler.Handle(b.handleBalance, th.CallbackDataEqual(string(menu.Balance)))
	handler.Handle(b.handleRefer, th.CallbackDataEqual(string(menu.Refer)))
	handler.Handle(b.handleWithdraw, th.CallbackDataEqual(string(menu.Withdraw)))
	handler.Handle(b.handleLeaderboard, th.CallbackDataEqual(string(menu.Leaderboard)))
	handler.Handle(b.handleStats, th.CallbackDataEqual(string(menu.Stats)))
	handler.Handle(b.handleCreateBot, th.CallbackDataEqual(string(menu.CreateBot)))
	handler.Handle(b.handleVersions, th.CallbackDataEqual(cbMenuVersions))
	handler.Handle(b.handleSetVersion, th.CallbackDataPrefix(prefixVersion))
	handler.Handle(b.handleBack, th.CallbackDataEqual(cbBack))
	handler.Handle(b.handleAdminPanel, th.CallbackDataEqual(cbAdminPanel))
	handler.Handle(b.handleAdminPending, th.CallbackDataEqual(cbAdminPending))
	handler.Handle(b.handleReview, th.Or(th.CallbackDataPrefix(prefixApprove), th.CallbackDataPrefix(prefixReject)))
	handler.Handle(b.handleText, th.AnyMessageWithText())

	b.Log.Info("Bot started", zap.String("username", b.username))
	return handler.Start()
}

func (b *Bot) send(ctx context.Context, userID int64, text string, markup telego.ReplyMarkup) {
	msg := tu.Message(tu.ID(userID), text)
	if markup != nil {
		msg = msg.WithReplyMarkup(markup)
	}
	if _, err := b.Instance.SendMessage(ctx, msg); err != nil {
		b.Log.Warn("Failed to send message", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (b *Bot) answer(ctx context.Context, q *telego.CallbackQuery) {
	_ = b.Instance.AnswerCallbackQuery(ctx, tu.CallbackQuery(q.ID))
}

func (b *Bot) sendMainMenu(ctx context.Context, userID int64) {
	version := menu.DefaultVersion
	if acc, err := b.Ledger.GetAccount(ctx, userID); err == nil {
		version = acc.MenuVersion
	}
	tier := menu.ResolveOrDefault(version)
	b.send(ctx, userID, "📌 Main Menu:", mainMenu(tier, b.Config.IsAdmin(userID)))
}

func (b *Bot) limits(ctx context.Context) (settings.Limits, error) {
	l, err := b.Settings.Limits(ctx)
	if err != nil {
		b.Log.Error("Failed to read settings", zap.Error(err))
	}
	return l, err
}

func (b *Bot) setting(ctx context.Context, key string) (decimal.Decimal, error) {
	d, err := b.Settings.Decimal(ctx, key)
	if err != nil {
		b.Log.Error("Failed to read setting", zap.String("key", key), zap.Error(err))
	}
	return d, err
}

func (b *Bot) sendError(ctx context.Context, userID int64, err error) {
	b.send(ctx, userID, userMessage(err, settings.Limits{}, b.Config.Currency), nil)
}

func (b *Bot) handleStart(ctx *th.Context, update telego.Update) error {
	message := update.Message
	from := message.From

	_, err := b.Ledger.Register(ctx, ledger.Registration{
		UserID:      from.ID,
		Username:    from.Username,
		DisplayName: from.FirstName,
		ReferredBy:  parseReferrer(message.Text),
	})
	if err != nil {
		b.Log.Error("Failed to register user", zap.Int64("user_id", from.ID), zap.Error(err))
		b.sendError(ctx, from.ID, err)
		return nil
	}

	if !b.Gate.IsMember(ctx, from.ID, b.Config.Channels) {
		b.send(ctx, from.ID, "Please join required channels:", joinPrompt(b.Config.Channels))
		return nil
	}
	b.sendMainMenu(ctx, from.ID)
	return nil
}

func (b *Bot) handleCheckJoin(ctx *th.Context, update telego.Update) error {
	q := update.CallbackQuery
	if !b.Gate.IsMember(ctx, q.From.ID, b.Config.Channels) {
		_ = b.Instance.AnswerCallbackQuery(ctx, tu.CallbackQuery(q.ID).WithText("Still not joined.").WithShowAlert())
		return nil
	}
	b.answer(ctx, q)
	b.sendMainMenu(ctx, q.From.ID)
	return nil
}

func (b *Bot) handleProfile(ctx *th.Context, update telego.Update) error {
	q := update.CallbackQuery
	defer b.answer(ctx, q)

	acc, err := b.Ledger.GetAccount(ctx, q.From.ID)
	if err != nil {
		b.sendError(ctx, q.From.ID, err)
		return nil
	}
	tier := menu.ResolveOrDefault(acc.MenuVersion)
	msg := fmt.Sprintf("👤 Profile\n\nID: %d\nName: %s\nBalance: %s %s\nReferrals: %d\nMenu: v%d %s",
		acc.UserID, acc.DisplayName, acc.Balance.StringFixed(2), b.Config.Currency, acc.ReferralCount, tier.Version, tier.Name)
	b.send(ctx, q.From.ID, msg, nil)
	return nil
}

func (b *Bot) handleBalance(ctx *th.Context, update telego.Update) error {
	q := update.CallbackQuery
	defer b.answer(ctx, q)

	acc, err := b.Ledger.GetAccount(ctx, q.From.ID)
	if err != nil {
		b.sendError(ctx, q.From.ID, err)
		return nil
	}
	msg := fmt.Sprintf("💰 Balance: %s %s", acc.Balance.StringFixed(2), b.Config.Currency)

	history, err := b.Withdrawals.ListByUser(ctx, q.From.ID)
	if err != nil {
		b.Log.Error("Failed to list withdrawals", zap.Int64("user_id", q.From.ID), zap.Error(err))
	}
	if len(history) > 0 {
		var sb strings.Builder
		sb.WriteString(msg)
		sb.WriteString("\n\nWithdrawals:")
		for _, w := range history {
			fmt.Fprintf(&sb, "\n#%d %s %s - %s", w.ID, w.Amount.StringFixed(2), b.Config.Currency, w.Status)
		}
		msg = sb.String()
	}
	b.send(ctx, q.From.ID, msg, nil)
	return nil
}

func (b *Bot) handleRefer(ctx *th.Context, update telego.Update) error {
	q := update.CallbackQuery
	defer b.answer(ctx, q)

	bonus, err := b.setting(ctx, settings.KeyPerReferBonus)
	if err != nil {
		b.sendError(ctx, q.From.ID, err)
		return nil
	}
	msg := fmt.Sprintf("🔗 Invite friends and earn %s %s for each one!\n\nYour link:\n%s",
		bonus.String(), b.Config.Currency, referralLink(b.username, q.From.ID))
	b.send(ctx, q.From.ID, msg, nil)
	return nil
}

func (b *Bot) handleWithdraw(ctx *th.Context, update telego.Update) error {
	q := update.CallbackQuery
	defer b.answer(ctx, q)

	l, err := b.limits(ctx)
	if err != nil {
		b.sendError(ctx, q.From.ID, err)
		return nil
	}
	b.StatesMu.Lock()
	b.UserStates[q.From.ID] = stateWithdrawAmount
	b.StatesMu.Unlock()

	b.send(ctx, q.From.ID, fmt.Sprintf("💸 Enter amount to withdraw (%s - %s %s). Tax: %s%%",
		l.MinWithdraw, l.MaxWithdraw, b.Config.Currency, l.WithdrawTax), nil)
	return nil
}

func (b *Bot) handleLeaderboard(ctx *th.Context, update telego.Update) error {
	q := update.CallbackQuery
	defer b.answer(ctx, q)

	top, err := b.Ledger.TopReferrers(ctx, 10)
	if err != nil {
		b.sendError(ctx, q.From.ID, err)
		return nil
	}
	var sb strings.Builder
	sb.WriteString("🏆 Top referrers")
	for i, acc := range top {
		name := acc.DisplayName
		if acc.Username != "" {
			name = "@" + acc.Username
		}
		fmt.Fprintf(&sb, "\n%d. %s - %d", i+1, name, acc.ReferralCount)
	}
	if len(top) == 0 {
		sb.WriteString("\nNo referrals yet.")
	}
	b.send(ctx, q.From.ID, sb.String(), nil)
	return nil
}

func (b *Bot) handleStats(ctx *th.Context, update telego.Update) error {
	q := update.CallbackQuery
	defer b.answer(ctx, q)

	stats, err := b.Ledger.AggregateStats(ctx)
	if err != nil {
		b.sendError(ctx, q.From.ID, err)
		return nil
	}
	b.send(ctx, q.From.ID, fmt.Sprintf("📊 Users: %d\nTotal balance: %s %s",
		stats.TotalUsers, stats.TotalBalance.StringFixed(2), b.Config.Currency), nil)
	return nil
}

func (b *Bot) handleCreateBot(ctx *th.Context, update telego.Update) error {
	q := update.CallbackQuery
	defer b.answer(ctx, q)
	b.send(ctx, q.From.ID, "🤖 Bot creation is coming soon...", nil)
	return nil
}

func (b *Bot) handleVersions(ctx *th.Context, update telego.Update) error {
	q := update.CallbackQuery
	defer b.answer(ctx, q)

	current := menu.DefaultVersion
	if acc, err := b.Ledger.GetAccount(ctx, q.From.ID); err == nil {
		current = acc.MenuVersion
	}
	b.send(ctx, q.From.ID, "🎛 Choose menu version:", versionMenu(current))
	return nil
}

func (b *Bot) handleSetVersion(ctx *th.Context, update telego.Update) error {
	q := update.CallbackQuery
	defer b.answer(ctx, q)

	v, ok := parseID(q.Data, prefixVersion)
	if !ok {
		return nil
	}
	if _, err := b.Ledger.SetMenuVersion(ctx, q.From.ID, int(v)); err != nil {
		b.sendError(ctx, q.From.ID, err)
		return nil
	}
	b.sendMainMenu(ctx, q.From.ID)
	return nil
}

func (b *Bot) handleBack(ctx *th.Context, update telego.Update) error {
	q := update.CallbackQuery
	defer b.answer(ctx, q)
	b.sendMainMenu(ctx, q.From.ID)
	return nil
}

func (b *Bot) handleAdminPanel(ctx *th.Context, update telego.Update) error {
	q := update.CallbackQuery
	defer b.answer(ctx, q)
	if !b.Config.IsAdmin(q.From.ID) {
		return nil
	}

	stats, err := b.Ledger.AggregateStats(ctx)
	if err != nil {
		b.sendError(ctx, q.From.ID, err)
		return nil
	}
	pending, err := b.Withdrawals.ListByStatus(ctx, models.WithdrawalPending)
	if err != nil {
		b.Log.Error("Failed to list pending withdrawals", zap.Error(err))
		b.sendError(ctx, q.From.ID, err)
		return nil
	}
	l, err := b.limits(ctx)
	if err != nil {
		b.sendError(ctx, q.From.ID, err)
		return nil
	}

	msg := fmt.Sprintf("⚙️ Admin Panel\n\nUsers: %d\nTotal balance: %s %s\nPending withdrawals: %d\n\n"+
		"min_withdraw=%s\nmax_withdraw=%s\nwithdraw_tax=%s\nper_refer_bonus=%s\n\nChange with /set <key> <value>",
		stats.TotalUsers, stats.TotalBalance.StringFixed(2), b.Config.Currency, len(pending),
		l.MinWithdraw, l.MaxWithdraw, l.WithdrawTax, l.PerReferBonus)
	keyboard := tu.InlineKeyboard(tu.InlineKeyboardRow(
		tu.InlineKeyboardButton("📋 Pending withdrawals").WithCallbackData(cbAdminPending),
	))
	b.send(ctx, q.From.ID, msg, keyboard)
	return nil
}

func (b *Bot) handleAdminPending(ctx *th.Context, update telego.Update) error {
	q := update.CallbackQuery
	defer b.answer(ctx, q)
	if !b.Config.IsAdmin(q.From.ID) {
		return nil
	}

	pending, err := b.Withdrawals.ListByStatus(ctx, models.WithdrawalPending)
	if err != nil {
		b.sendError(ctx, q.From.ID, err)
		return nil
	}
	if len(pending) == 0 {
		b.send(ctx, q.From.ID, "No pending withdrawals.", nil)
		return nil
	}

	tax, err := b.setting(ctx, settings.KeyWithdrawTax)
	if err != nil {
		b.sendError(ctx, q.From.ID, err)
		return nil
	}
	for _, w := range pending {
		msg := fmt.Sprintf("#%d user %d\nAmount: %s %s\nNet after tax: %s %s",
			w.ID, w.UserID, w.Amount.StringFixed(2), b.Config.Currency,
			settings.NetAmount(w.Amount.Decimal, tax).StringFixed(2), b.Config.Currency)
		b.send(ctx, q.From.ID, msg, reviewButtons(w.ID))
	}
	return nil
}

func (b *Bot) handleReview(ctx *th.Context, update telego.Update) error {
	q := update.CallbackQuery
	defer b.answer(ctx, q)
	if !b.Config.IsAdmin(q.From.ID) {
		return nil
	}

	status := models.WithdrawalApproved
	id, ok := parseID(q.Data, prefixApprove)
	if !ok {
		status = models.WithdrawalRejected
		if id, ok = parseID(q.Data, prefixReject); !ok {
			return nil
		}
	}

	req, err := b.Withdrawals.Transition(ctx, id, status)
	if err != nil {
		b.Log.Warn("Withdrawal review failed", zap.Uint("request_id", id), zap.Error(err))
		b.sendError(ctx, q.From.ID, err)
		return nil
	}

	b.send(ctx, q.From.ID, fmt.Sprintf("Request #%d %s.", req.ID, req.Status), nil)
	text := fmt.Sprintf("✅ Your withdrawal #%d of %s %s was approved.", req.ID, req.Amount.StringFixed(2), b.Config.Currency)
	if status == models.WithdrawalRejected {
		text = fmt.Sprintf("❌ Your withdrawal #%d was rejected, %s %s returned to your balance.",
			req.ID, req.Amount.StringFixed(2), b.Config.Currency)
	}
	b.send(ctx, req.UserID, text, nil)
	return nil
}

func (b *Bot) handleSet(ctx *th.Context, update telego.Update) error {
	from := update.Message.From
	if !b.Config.IsAdmin(from.ID) {
		return nil
	}

	parts := strings.Fields(update.Message.Text)
	if len(parts) != 3 {
		b.send(ctx, from.ID, "Usage: /set <key> <value>", nil)
		return nil
	}
	if err := b.Settings.Set(ctx, parts[1], parts[2]); err != nil {
		b.send(ctx, from.ID, "❌ "+err.Error(), nil)
		return nil
	}
	b.Log.Info("Setting changed", zap.Int64("admin_id", from.ID), zap.String("key", parts[1]), zap.String("value", parts[2]))
	b.send(ctx, from.ID, fmt.Sprintf("✅ %s = %s", parts[1], parts[2]), nil)
	return nil
}

func (b *Bot) handleText(ctx *th.Context, update telego.Update) error {
	userID := update.Message.From.ID

	b.StatesMu.RLock()
	state, ok := b.UserStates[userID]
	b.StatesMu.RUnlock()

	if !ok || state != stateWithdrawAmount {
		return nil
	}

	b.StatesMu.Lock()
	delete(b.UserStates, userID)
	b.StatesMu.Unlock()

	amount, err := parseAmount(update.Message.Text)
	if err != nil {
		b.send(ctx, userID, "❌ Please enter a number.", nil)
		return nil
	}

	req, err := b.Withdrawals.Create(ctx, userID, amount)
	if err != nil {
		if ledger.IsStorage(err) {
			b.Log.Error("Failed to create withdrawal", zap.Int64("user_id", userID), zap.Error(err))
		}
		l, lerr := b.limits(ctx)
		if lerr != nil {
			err = lerr
		}
		b.send(ctx, userID, userMessage(err, l, b.Config.Currency), nil)
		return nil
	}

	msg := fmt.Sprintf("✅ Withdrawal #%d of %s %s requested.", req.ID, req.Amount.StringFixed(2), b.Config.Currency)
	if tax, err := b.setting(ctx, settings.KeyWithdrawTax); err == nil {
		msg += fmt.Sprintf("\nYou will receive %s %s after tax.", settings.NetAmount(req.Amount.Decimal, tax).StringFixed(2), b.Config.Currency)
	}
	b.send(ctx, userID, msg, nil)

	for _, admin := range b.Config.AdminIDs {
		b.send(ctx, admin, fmt.Sprintf("🆕 Withdrawal #%d from %d: %s %s",
			req.ID, userID, req.Amount.StringFixed(2), b.Config.Currency), reviewButtons(req.ID))
	}
	return nil
}
