package tg

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	gobot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/orlandnut/voicednut/internal/metrics"
	"github.com/orlandnut/voicednut/internal/miniapp"
)

const (
	retryDelay      = 3 * time.Second
	dispatchTimeout = 30 * time.Second
)

// API is the subset of *gobot.BotAPI the bot uses.
type API interface {
	MakeRequest(endpoint string, params gobot.Params) (*gobot.APIResponse, error)
	Send(c gobot.Chattable) (gobot.Message, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, in miniapp.Inbound, r miniapp.Replier) miniapp.Outcome
}

type Options struct {
	Token       string
	MiniAppURL  string
	PollTimeout time.Duration
	MaxInFlight int
	Dispatcher  Dispatcher
	Logger      zerolog.Logger
}

type Bot struct {
	token       string
	api         API
	disp        Dispatcher
	miniAppURL  string
	pollTimeout time.Duration
	maxInFlight int
	log         zerolog.Logger
}

func NewBot(opts Options) *Bot {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 16
	}
	return &Bot{
		token:       opts.Token,
		disp:        opts.Dispatcher,
		miniAppURL:  opts.MiniAppURL,
		pollTimeout: opts.PollTimeout,
		maxInFlight: opts.MaxInFlight,
		log:         opts.Logger.With().Str("component", "telegram").Logger(),
	}
}

// Run connects to Telegram and long-polls until ctx is cancelled. In-flight
// dispatches are allowed to finish before Run returns.
func (b *Bot) Run(ctx context.Context) error {
	if b.token == "" {
		b.log.Warn().Msg("TG token empty: bot disabled")
		return nil
	}
	if b.api == nil {
		bot, err := gobot.NewBotAPI(b.token)
		if err != nil {
			return fmt.Errorf("telegram connect: %w", err)
		}
		bot.Debug = false
		b.log.Info().Str("@", bot.Self.UserName).Msg("Telegram connected")
		b.api = bot
	}
	return b.poll(ctx)
}

func (b *Bot) poll(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(b.maxInFlight)

	offset := 0
	for ctx.Err() == nil {
		updates, err := b.fetch(offset)
		if err != nil {
			b.log.Error().Err(err).Msg("get updates")
			select {
			case <-ctx.Done():
			case <-time.After(retryDelay):
			}
			continue
		}
		for _, up := range updates {
			if up.UpdateID >= offset {
				offset = up.UpdateID + 1
			}
			b.handle(ctx, &g, up)
		}
	}
	return g.Wait()
}

func (b *Bot) fetch(offset int) ([]update, error) {
	params := gobot.Params{}
	params.AddNonZero("offset", offset)
	params.AddNonZero("timeout", int(b.pollTimeout.Seconds()))
	if err := params.AddInterface("allowed_updates", []string{"message"}); err != nil {
		return nil, err
	}
	resp, err := b.api.MakeRequest("getUpdates", params)
	if err != nil {
		return nil, err
	}
	var updates []update
	if err := json.Unmarshal(resp.Result, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return updates, nil
}

func (b *Bot) handle(ctx context.Context, g *errgroup.Group, up update) {
	m := up.Message
	if m == nil {
		metrics.UpdatesReceived.WithLabelValues("other").Inc()
		return
	}
	switch {
	case m.WebAppData != nil:
		metrics.UpdatesReceived.WithLabelValues("web_app_data").Inc()
		if m.From == nil || m.Chat == nil {
			b.log.Warn().Int("update_id", up.UpdateID).Msg("web_app_data without sender")
			return
		}
		in := miniapp.Inbound{
			Data:     []byte(m.WebAppData.Data),
			SenderID: m.From.ID,
			SentAt:   m.sentAt(),
		}
		r := &chatReplier{api: b.api, chatID: m.Chat.ID}
		g.Go(func() error {
			dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
			defer cancel()
			b.disp.Dispatch(dctx, in, r)
			return nil
		})
	case m.Chat != nil && strings.HasPrefix(strings.TrimSpace(m.Text), "/start"):
		metrics.UpdatesReceived.WithLabelValues("command").Inc()
		chatID := m.Chat.ID
		g.Go(func() error {
			b.sendLauncher(chatID)
			return nil
		})
	default:
		metrics.UpdatesReceived.WithLabelValues("message").Inc()
	}
}

// sendLauncher answers /start with a keyboard button that opens the mini app.
func (b *Bot) sendLauncher(chatID int64) {
	if b.miniAppURL == "" {
		b.reply(chatID, "Mini app is not configured for this bot.")
		return
	}
	params := gobot.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonEmpty("text", "Open the mini app to place calls and send SMS.")
	kb := webAppKeyboard{
		Keyboard:       [][]webAppButton{{{Text: "Open mini app", WebApp: webAppInfo{URL: b.miniAppURL}}}},
		ResizeKeyboard: true,
	}
	if err := params.AddInterface("reply_markup", kb); err != nil {
		b.log.Error().Err(err).Msg("encode mini app keyboard")
		return
	}
	if _, err := b.api.MakeRequest("sendMessage", params); err != nil {
		metrics.ReplyErrors.Inc()
		b.log.Error().Err(err).Msg("send tg msg")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	msg := gobot.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		metrics.ReplyErrors.Inc()
		b.log.Error().Err(err).Msg("send tg msg")
	}
}

// chatReplier answers in the chat the web_app_data message came from.
type chatReplier struct {
	api    API
	chatID int64
}

func (r *chatReplier) Reply(ctx context.Context, text string, mode miniapp.ParseMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gobot.NewMessage(r.chatID, text)
	msg.ParseMode = string(mode)
	if _, err := r.api.Send(msg); err != nil {
		metrics.ReplyErrors.Inc()
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
