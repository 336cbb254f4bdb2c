package tg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	gobot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/orlandnut/voicednut/internal/initdata"
	"github.com/orlandnut/voicednut/internal/miniapp"
)

const testToken = "7000000000:AAH-test-token"

type request struct {
	endpoint string
	params   gobot.Params
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []request
	sent     []gobot.MessageConfig
	sendErr  error

	// onUpdates answers getUpdates; it receives the call index.
	onUpdates func(call int) (json.RawMessage, error)
	calls     int

	// sendMessageGate, when set, holds sendMessage until it is closed.
	sendMessageGate chan struct{}
}

func (f *fakeAPI) MakeRequest(endpoint string, params gobot.Params) (*gobot.APIResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, request{endpoint: endpoint, params: params})
	call := f.calls
	if endpoint == "getUpdates" {
		f.calls++
	}
	f.mu.Unlock()

	if endpoint == "sendMessage" && f.sendMessageGate != nil {
		<-f.sendMessageGate
	}
	if endpoint == "getUpdates" && f.onUpdates != nil {
		res, err := f.onUpdates(call)
		if err != nil {
			return nil, err
		}
		return &gobot.APIResponse{Ok: true, Result: res}, nil
	}
	return &gobot.APIResponse{Ok: true, Result: json.RawMessage(`{}`)}, nil
}

func (f *fakeAPI) Send(c gobot.Chattable) (gobot.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(gobot.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return gobot.Message{}, f.sendErr
}

func (f *fakeAPI) sentMessages() []gobot.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gobot.MessageConfig(nil), f.sent...)
}

func newTestBot(api API, miniAppURL string) *Bot {
	verifier := initdata.NewVerifier(testToken)
	b := NewBot(Options{
		Token:      testToken,
		MiniAppURL: miniAppURL,
		Dispatcher: miniapp.NewDispatcher(verifier, miniapp.DefaultRegistry(), zerolog.Nop()),
		Logger:     zerolog.Nop(),
	})
	b.api = api
	return b
}

func webAppUpdate(t *testing.T, updateID int, from int64, action, payload string) string {
	t.Helper()
	blob := initdata.NewVerifier(testToken).Encode(map[string]string{
		"auth_date": "1700000000",
		"user":      fmt.Sprintf(`{"id":%d}`, from),
	})
	data, err := json.Marshal(map[string]any{
		"action":   action,
		"initData": blob,
		"payload":  json.RawMessage(payload),
	})
	require.NoError(t, err)
	up := map[string]any{
		"update_id": updateID,
		"message": map[string]any{
			"message_id":   10,
			"date":         1700000000,
			"from":         map[string]any{"id": from, "is_bot": false, "first_name": "Ada"},
			"chat":         map[string]any{"id": 5000 + from, "type": "private"},
			"web_app_data": map[string]any{"data": string(data), "button_text": "Open"},
		},
	}
	raw, err := json.Marshal(up)
	require.NoError(t, err)
	return string(raw)
}

func TestPoll_DispatchesWebAppData(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batch := "[" + webAppUpdate(t, 7, 42, "sms_sent", `{"phoneNumber":"+15551234567"}`) + "," +
		webAppUpdate(t, 8, 42, "call_transferred", `{}`) + "]"
	api := &fakeAPI{onUpdates: func(call int) (json.RawMessage, error) {
		if call == 0 {
			return json.RawMessage(batch), nil
		}
		cancel()
		return json.RawMessage(`[]`), nil
	}}

	b := newTestBot(api, "")
	require.NoError(t, b.poll(ctx))

	sent := api.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(5042), sent[0].ChatID)
	assert.Equal(t, "MarkdownV2", sent[0].ParseMode)
	assert.Contains(t, sent[0].Text, "• To: \\+15551234567")
	assert.Contains(t, sent[0].Text, "2023\\-11\\-14T22:13:20\\.000Z")

	api.mu.Lock()
	defer api.mu.Unlock()
	require.GreaterOrEqual(t, len(api.requests), 2)
	assert.Equal(t, "9", api.requests[1].params["offset"])
	assert.Equal(t, "30", api.requests[0].params["timeout"])
	assert.Equal(t, `["message"]`, api.requests[0].params["allowed_updates"])
}

func TestPoll_SenderMismatchRejected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	up := webAppUpdate(t, 1, 42, "sms_sent", `{"phoneNumber":"1"}`)
	// The Telegram sender differs from the user inside initData.
	up = replaceSender(t, up, 99)
	api := &fakeAPI{onUpdates: func(call int) (json.RawMessage, error) {
		if call == 0 {
			return json.RawMessage("[" + up + "]"), nil
		}
		cancel()
		return json.RawMessage(`[]`), nil
	}}

	require.NoError(t, newTestBot(api, "").poll(ctx))
	sent := api.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "❌ Mini app session mismatch. Please reopen the mini app from the bot.", sent[0].Text)
	assert.Empty(t, sent[0].ParseMode)
}

func TestPoll_RetriesOnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := &fakeAPI{onUpdates: func(call int) (json.RawMessage, error) {
		cancel()
		return nil, errors.New("network down")
	}}
	require.NoError(t, newTestBot(api, "").poll(ctx))
}

func TestHandle_StartSendsLauncher(t *testing.T) {
	api := &fakeAPI{}
	b := newTestBot(api, "https://mini.example.com/app")
	var g errgroup.Group
	b.handle(context.Background(), &g, update{UpdateID: 1, Message: &message{
		Text: "/start",
		Chat: &gobot.Chat{ID: 77},
		From: &gobot.User{ID: 77},
	}})
	require.NoError(t, g.Wait())

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.requests, 1)
	req := api.requests[0]
	assert.Equal(t, "sendMessage", req.endpoint)
	assert.Equal(t, "77", req.params["chat_id"])
	assert.JSONEq(t, `{"keyboard":[[{"text":"Open mini app","web_app":{"url":"https://mini.example.com/app"}}]],"resize_keyboard":true}`, req.params["reply_markup"])
}

func TestHandle_StartDoesNotBlockPolling(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeAPI{sendMessageGate: gate}
	b := newTestBot(api, "https://mini.example.com/app")
	var g errgroup.Group

	done := make(chan struct{})
	go func() {
		b.handle(context.Background(), &g, update{Message: &message{Text: "/start", Chat: &gobot.Chat{ID: 77}}})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handle blocked on a slow sendMessage")
	}

	close(gate)
	require.NoError(t, g.Wait())
	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.requests, 1)
	assert.Equal(t, "sendMessage", api.requests[0].endpoint)
}

func TestHandle_StartWithoutMiniApp(t *testing.T) {
	api := &fakeAPI{}
	b := newTestBot(api, "")
	var g errgroup.Group
	b.handle(context.Background(), &g, update{Message: &message{Text: "/start", Chat: &gobot.Chat{ID: 77}}})
	require.NoError(t, g.Wait())
	sent := api.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Mini app is not configured for this bot.", sent[0].Text)
}

func TestHandle_WebAppDataWithoutSender(t *testing.T) {
	api := &fakeAPI{}
	b := newTestBot(api, "")
	var g errgroup.Group
	b.handle(context.Background(), &g, update{Message: &message{
		Chat:       &gobot.Chat{ID: 1},
		WebAppData: &webAppData{Data: `{}`},
	}})
	require.NoError(t, g.Wait())
	assert.Empty(t, api.sentMessages())
}

func TestChatReplier(t *testing.T) {
	api := &fakeAPI{}
	r := &chatReplier{api: api, chatID: 3}
	require.NoError(t, r.Reply(context.Background(), "hi", miniapp.MarkdownV2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Reply(ctx, "late", miniapp.PlainText), context.Canceled)

	api.sendErr = errors.New("blocked by user")
	assert.Error(t, r.Reply(context.Background(), "x", miniapp.PlainText))
	assert.Len(t, api.sentMessages(), 2)
}

func TestRun_NoToken(t *testing.T) {
	b := NewBot(Options{Logger: zerolog.Nop()})
	assert.NoError(t, b.Run(context.Background()))
}

func replaceSender(t *testing.T, raw string, sender int64) string {
	t.Helper()
	var up map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &up))
	msg := up["message"].(map[string]any)
	msg["from"].(map[string]any)["id"] = sender
	out, err := json.Marshal(up)
	require.NoError(t, err)
	return string(out)
}
