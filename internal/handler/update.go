package handler

import (
	"github.com/mmeshcher/gatedmart/internal/bot"
)

type update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *message       `json:"message,omitempty"`
	CallbackQuery *callbackQuery `json:"callback_query,omitempty"`
}

type user struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username"`
}

type photoSize struct {
	FileID   string `json:"file_id"`
	FileSize int    `json:"file_size"`
}

type message struct {
	MessageID int64       `json:"message_id"`
	From      *user       `json:"from"`
	Text      string      `json:"text"`
	Caption   string      `json:"caption"`
	Photo     []photoSize `json:"photo"`
}

type callbackQuery struct {
	ID   string `json:"id"`
	From *user  `json:"from"`
	Data string `json:"data"`
}

// toEvent переводит обновление в событие бота. Второй результат false для обновлений,
// которые бот не обрабатывает.
func (u update) toEvent() (bot.Event, bool) {
	switch {
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		return bot.Event{
			Kind:       bot.EventButton,
			SenderID:   u.CallbackQuery.From.ID,
			Username:   u.CallbackQuery.From.Username,
			Data:       u.CallbackQuery.Data,
			CallbackID: u.CallbackQuery.ID,
		}, true

	case u.Message != nil && u.Message.From != nil && !u.Message.From.IsBot:
		ev := bot.Event{
			SenderID: u.Message.From.ID,
			Username: u.Message.From.Username,
		}
		if n := len(u.Message.Photo); n > 0 {
			ev.Kind = bot.EventPhoto
			ev.ImageRef = u.Message.Photo[n-1].FileID
			ev.Text = u.Message.Caption
			return ev, true
		}
		if u.Message.Text == "" {
			return bot.Event{}, false
		}
		ev.Kind = bot.EventText
		ev.Text = u.Message.Text
		return ev, true
	}

	return bot.Event{}, false
}
