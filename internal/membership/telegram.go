package membership

import (
	"context"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// TelegramLookup resolves statuses with getChatMember. The bot must be an
// administrator of each channel.
type TelegramLookup struct {
	Bot *telego.Bot
}

func NewTelegramLookup(bot *telego.Bot) *TelegramLookup {
	return &TelegramLookup{Bot: bot}
}

func (l *TelegramLookup) MemberStatus(ctx context.Context, channel string, userID int64) (Status, error) {
	member, err := l.Bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: ChatID(channel),
		UserID: userID,
	})
	if err != nil {
		return StatusUnknown, err
	}
	return statusOf(member), nil
}

// ChatID accepts "@channel", "channel" or a numeric chat id.
func ChatID(channel string) telego.ChatID {
	channel = strings.TrimSpace(channel)
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		return tu.ID(id)
	}
	if !strings.HasPrefix(channel, "@") {
		channel = "@" + channel
	}
	return tu.Username(channel)
}

func statusOf(member telego.ChatMember) Status {
	if restricted, ok := member.(*telego.ChatMemberRestricted); ok {
		if restricted.IsMember {
			return StatusActive
		}
		return StatusLeft
	}
	return mapStatus(member.MemberStatus())
}

func mapStatus(s string) Status {
	switch s {
	case "creator", "administrator", "member":
		return StatusActive
	case "left":
		return StatusLeft
	case "kicked":
		return StatusKicked
	default:
		return StatusUnknown
	}
}
