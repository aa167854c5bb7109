package notify

import (
	"context"

	"github.com/ManuelReschke/StripeHooks/app/models"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/mail"
	"github.com/ManuelReschke/StripeHooks/internal/pkg/telegram"
)

// EmailSender sends through SMTP with a fixed config.
type EmailSender struct {
	Config mail.Config
}

func (s EmailSender) Send(ctx context.Context, destination string, msg Message) error {
	return mail.SendMail(ctx, s.Config, destination, msg.Subject, msg.Body)
}

// TelegramSender posts the message body to a chat.
type TelegramSender struct {
	Token string
}

func (s TelegramSender) Send(ctx context.Context, destination string, msg Message) error {
	sender, err := telegram.NewSender(s.Token)
	if err != nil {
		return err
	}
	return sender.Send(ctx, destination, msg.Body)
}

// SendersFromSettings builds one sender per channel from a snapshot. Missing
// credentials surface as ErrNotConfigured from the sender at send time.
func SendersFromSettings(s models.SettingsSnapshot) map[models.RuleChannel]Sender {
	return map[models.RuleChannel]Sender{
		models.ChannelEmail:    EmailSender{Config: mail.ConfigFromSettings(s)},
		models.ChannelTelegram: TelegramSender{Token: s.TelegramBotToken()},
	}
}
