package delivery

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"audio-notes-pipeline/internal/domain/model"
	"audio-notes-pipeline/internal/domain/ports/adapter"
)

var _ adapter.Deliverer = (*TelegramSender)(nil)

type chattableSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender posts the notes of a job to a chat as a markdown document.
type TelegramSender struct {
	bot    chattableSender
	chatID int64
}

func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramSender{bot: bot, chatID: chatID}, nil
}

func (t *TelegramSender) Name() string { return "telegram" }

func (t *TelegramSender) Deliver(ctx context.Context, job *model.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(t.chatID, tgbotapi.FileBytes{
		Name:  job.SafeName() + ".md",
		Bytes: []byte(job.Notes),
	})
	doc.Caption = job.Name
	_, err := t.bot.Send(doc)
	return err
}
