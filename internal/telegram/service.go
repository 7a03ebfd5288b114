// Package telegram adapts the dialogue machine to the Telegram Bot API:
// long-polling updates in, text prompts with inline keyboards out.
package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"bookingbot/internal/dialog"
)

type Service struct {
	api     *tgbotapi.BotAPI
	machine *dialog.Machine
	log     zerolog.Logger
}

// NewService authorizes the bot with Telegram.
func NewService(token string, machine *dialog.Machine, log zerolog.Logger) (*Service, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Info().Str("username", api.Self.UserName).Msg("Authorized with Telegram")
	return &Service{api: api, machine: machine, log: log}, nil
}

// Run polls for updates until ctx is cancelled. Every update is handled in
// its own goroutine; the dialogue machine serializes turns per user.
func (s *Service) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			s.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			go s.handleUpdate(ctx, update)
		}
	}
}

func (s *Service) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		s.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		s.handleMessage(ctx, update.Message)
	}
}

func (s *Service) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Text == "" {
		return
	}

	reply := s.machine.HandleEvent(ctx, dialog.Event{
		UserID:  msg.From.ID,
		Kind:    dialog.EventText,
		Payload: msg.Text,
	})
	s.send(msg.Chat.ID, reply)
}

func (s *Service) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Ack first so the client stops showing the progress spinner.
	if _, err := s.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		s.log.Debug().Err(err).Msg("Callback ack failed")
	}
	if cb.Message == nil {
		return
	}

	reply := s.machine.HandleEvent(ctx, dialog.Event{
		UserID:  cb.From.ID,
		Kind:    dialog.EventChoice,
		Payload: cb.Data,
	})

	// Edit the prompt in place instead of stacking new messages.
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID
	if len(reply.Options) > 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, reply.Text, keyboard(reply.Options))
		if _, err := s.api.Send(edit); err != nil {
			s.log.Warn().Err(err).Int64("chat", chatID).Msg("Failed to edit prompt, sending new message")
			s.send(chatID, reply)
		}
		return
	}
	edit := tgbotapi.NewEditMessageText(chatID, msgID, reply.Text)
	if _, err := s.api.Send(edit); err != nil {
		s.log.Warn().Err(err).Int64("chat", chatID).Msg("Failed to edit prompt, sending new message")
		s.send(chatID, reply)
	}
}

func (s *Service) send(chatID int64, reply dialog.Reply) {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if len(reply.Options) > 0 {
		msg.ReplyMarkup = keyboard(reply.Options)
	}
	if _, err := s.api.Send(msg); err != nil {
		s.log.Error().Err(err).Int64("chat", chatID).Msg("Failed to send message")
	}
}

// SendText delivers a plain message outside a conversation turn (reminders).
func (s *Service) SendText(chatID int64, text string) error {
	_, err := s.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// keyboard lays choices out two buttons per row.
func keyboard(options []dialog.Option) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, o := range options {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(o.Label, o.Data))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
