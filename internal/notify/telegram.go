package notify

import (
	"fmt"
	"time"

	tele "gopkg.in/telebot.v3"
)

// OpsAlerter pushes operator alerts (consistency errors, job
// summaries) into a Telegram chat.
type OpsAlerter struct {
	bot    *tele.Bot
	chatID int64
}

func NewOpsAlerter(botToken string, chatID int64) (*OpsAlerter, error) {
	if botToken == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram ops channel not configured")
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  botToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &OpsAlerter{bot: bot, chatID: chatID}, nil
}

// Alert sends a plain-text message to the ops chat.
func (a *OpsAlerter) Alert(message string) error {
	_, err := a.bot.Send(tele.ChatID(a.chatID), message)
	return err
}
