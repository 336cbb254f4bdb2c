package tg

import (
	"time"

	gobot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// update mirrors the parts of a Telegram update the bot reads. It is decoded
// from the raw getUpdates result so web_app_data is available regardless of
// which Bot API fields the client library knows about.
type update struct {
	UpdateID int      `json:"update_id"`
	Message  *message `json:"message,omitempty"`
}

type message struct {
	MessageID  int         `json:"message_id"`
	From       *gobot.User `json:"from,omitempty"`
	Chat       *gobot.Chat `json:"chat"`
	Date       int         `json:"date"`
	Text       string      `json:"text,omitempty"`
	WebAppData *webAppData `json:"web_app_data,omitempty"`
}

type webAppData struct {
	Data       string `json:"data"`
	ButtonText string `json:"button_text"`
}

func (m *message) sentAt() time.Time {
	if m.Date == 0 {
		return time.Time{}
	}
	return time.Unix(int64(m.Date), 0)
}

// webAppKeyboard is a reply keyboard with a single button that opens the
// mini app.
type webAppKeyboard struct {
	Keyboard       [][]webAppButton `json:"keyboard"`
	ResizeKeyboard bool             `json:"resize_keyboard"`
}

type webAppButton struct {
	Text   string     `json:"text"`
	WebApp webAppInfo `json:"web_app"`
}

type webAppInfo struct {
	URL string `json:"url"`
}
