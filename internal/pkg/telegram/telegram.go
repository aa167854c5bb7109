package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	tele "gopkg.in/telebot.v3"

	"github.com/ManuelReschke/StripeHooks/internal/pkg/env"
)

// ErrNotConfigured is returned when no bot token is set.
var ErrNotConfigured = errors.New("telegram bot token not configured")

const (
	defaultAPIURL  = "https://api.telegram.org"
	requestTimeout = 10 * time.Second
)

// BotInfo is what getMe tells us about a token, cached in settings.
type BotInfo struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	Link      string `json:"link"`
}

// chatRecipient addresses a chat by id or @channel name.
type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

func apiURL() string {
	return strings.TrimRight(env.GetEnv("TELEGRAM_API_URL", defaultAPIURL), "/")
}

func settings(token string, offline bool) tele.Settings {
	return tele.Settings{
		URL:     apiURL(),
		Token:   strings.TrimSpace(token),
		Offline: offline,
		Client:  &http.Client{Timeout: requestTimeout},
	}
}

// Sender posts plain text messages with one bot token.
type Sender struct {
	bot *tele.Bot
}

// NewSender builds an offline bot; no request is made until Send.
func NewSender(token string) (*Sender, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNotConfigured
	}
	b, err := tele.NewBot(settings(token, true))
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Sender{bot: b}, nil
}

// Send delivers text to chatID. Bot API failures keep their description,
// e.g. "Bad Request: chat not found".
func (s *Sender) Send(ctx context.Context, chatID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return errors.New("telegram: chat id is required")
	}
	if _, err := s.bot.Send(chatRecipient(chatID), text, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
		return fmt.Errorf("telegram send to %s: %w", chatID, err)
	}
	log.Infof("[Telegram] Message sent to chat %s", chatID)
	return nil
}

// Verify calls getMe for token and returns the bot identity.
func Verify(ctx context.Context, token string) (*BotInfo, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := tele.NewBot(settings(token, false))
	if err != nil {
		return nil, fmt.Errorf("telegram verify: %w", err)
	}
	if b.Me == nil {
		return nil, errors.New("telegram verify: invalid response from Telegram")
	}

	info := &BotInfo{Username: b.Me.Username, FirstName: b.Me.FirstName}
	if info.FirstName == "" {
		info.FirstName = "Bot"
	}
	if info.Username != "" {
		info.Link = "https://t.me/" + info.Username
	}
	return info, nil
}
