package messagingsvc

import (
	"context"
	"net/mail"
	"strings"

	"github.com/trezcool/halaqat/core"
)

// Router sends email targets through one messenger and everything else (chat ids) through another.
type Router struct {
	Email core.Messenger
	Chat  core.Messenger
}

var _ core.Messenger = (*Router)(nil)

func (r Router) Send(ctx context.Context, target, text string) error {
	if isEmail(target) {
		return r.Email.Send(ctx, target, text)
	}
	return r.Chat.Send(ctx, target, text)
}

func isEmail(target string) bool {
	if !strings.Contains(target, "@") {
		return false
	}
	_, err := mail.ParseAddress(target)
	return err == nil
}

// New builds the messenger for the configuration: console in debug/test mode or without credentials.
func New(conf *core.Config) core.Messenger {
	console := NewConsoleMessenger()
	r := Router{Email: console, Chat: console}
	if conf.Debug || conf.TestMode {
		return r
	}
	if conf.Messaging.SendgridApiKey != "" {
		r.Email = NewSendgridMessenger(conf)
	}
	if conf.Messaging.TelegramBotToken != "" {
		r.Chat = NewTelegramMessenger(conf, nil)
	}
	return r
}
