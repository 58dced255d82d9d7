package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/shopspring/decimal"

	"refbot/internal/ledger"
	"refbot/internal/menu"
	"refbot/internal/settings"
)

const (
	cbCheckJoin    = "check_join"
	cbAdminPanel   = "admin_panel"
	cbAdminPending = "admin_pending"
	cbMenuVersions = "menu_versions"
	cbBack         = "start_back"

	prefixVersion = "version_"
	prefixApprove = "wd_approve_"
	prefixReject  = "wd_reject_"

	stateWithdrawAmount = "WAITING_WITHDRAW_AMOUNT"
)

var labels = map[menu.Capability]string{
	menu.Profile:     "👤 Profile",
	menu.Balance:     "💰 Balance",
	menu.Refer:       "🔗 Refer",
	menu.Withdraw:    "💸 Withdraw",
	menu.CheckJoin:   "✅ Verify membership",
	menu.Leaderboard: "🏆 Leaderboard",
	menu.Stats:       "📊 Stats",
	menu.CreateBot:   "🤖 Create your own bot",
}

// mainMenu renders one button per capability of tier. Callback data is the
// capability tag itself.
func mainMenu(tier menu.Tier, admin bool) *telego.InlineKeyboardMarkup {
	var rows [][]telego.InlineKeyboardButton
	for _, c := range tier.Capabilities {
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(labels[c]).WithCallbackData(string(c)),
		))
	}
	rows = append(rows, tu.InlineKeyboardRow(
		tu.InlineKeyboardButton("🎛 Menu version").WithCallbackData(cbMenuVersions),
	))
	if admin {
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("⚙️ Admin Panel").WithCallbackData(cbAdminPanel),
		))
	}
	return tu.InlineKeyboard(rows...)
}

func joinPrompt(channels []string) *telego.InlineKeyboardMarkup {
	var rows [][]telego.InlineKeyboardButton
	for _, ch := range channels {
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("Join "+ch).WithURL(joinURL(ch)),
		))
	}
	rows = append(rows, tu.InlineKeyboardRow(
		tu.InlineKeyboardButton("✅ I Have Joined").WithCallbackData(cbCheckJoin),
	))
	return tu.InlineKeyboard(rows...)
}

func versionMenu(current int) *telego.InlineKeyboardMarkup {
	var rows [][]telego.InlineKeyboardButton
	for _, v := range menu.Versions() {
		tier, _ := menu.Resolve(v)
		text := fmt.Sprintf("v%d %s", v, tier.Name)
		if v == current {
			text = "• " + text
		}
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(text).WithCallbackData(prefixVersion+strconv.Itoa(v)),
		))
	}
	rows = append(rows, tu.InlineKeyboardRow(
		tu.InlineKeyboardButton("« Back").WithCallbackData(cbBack),
	))
	return tu.InlineKeyboard(rows...)
}

func reviewButtons(id uint) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(tu.InlineKeyboardRow(
		tu.InlineKeyboardButton("✅ Approve").WithCallbackData(fmt.Sprintf("%s%d", prefixApprove, id)),
		tu.InlineKeyboardButton("❌ Reject").WithCallbackData(fmt.Sprintf("%s%d", prefixReject, id)),
	))
}

// joinURL turns "@name" into a t.me link. Numeric ids have no public link.
func joinURL(channel string) string {
	return "https://t.me/" + strings.TrimPrefix(strings.TrimSpace(channel), "@")
}

func referralLink(botUsername string, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botUsername, userID)
}

// parseReferrer reads the /start payload. Only all-digit payloads count.
func parseReferrer(text string) int64 {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return 0
	}
	arg := parts[1]
	for _, r := range arg {
		if r < '0' || r > '9' {
			return 0
		}
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func parseAmount(text string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(strings.ReplaceAll(text, ",", ".")))
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number: %q", text)
	}
	return d, nil
}

func parseID(data, prefix string) (uint, bool) {
	if !strings.HasPrefix(data, prefix) {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// userMessage maps core errors onto chat replies. Storage failures get a
// generic text.
func userMessage(err error, limits settings.Limits, currency string) string {
	switch {
	case errors.Is(err, ledger.ErrBelowMinimum):
		return fmt.Sprintf("❌ Minimum withdrawal is %s %s.", limits.MinWithdraw, currency)
	case errors.Is(err, ledger.ErrAboveMaximum):
		return fmt.Sprintf("❌ Maximum withdrawal is %s %s.", limits.MaxWithdraw, currency)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "❌ Insufficient balance."
	case errors.Is(err, ledger.ErrTooPrecise):
		return "❌ Use at most 8 decimal places."
	case errors.Is(err, ledger.ErrNotFound):
		return "❌ Account not found. Send /start first."
	case errors.Is(err, ledger.ErrInvalidTransition):
		return "⚠️ This request was already processed."
	case errors.Is(err, menu.ErrUnknownVersion):
		return "❌ Unknown menu version."
	default:
		return "❌ Something went wrong, please try again later."
	}
}
