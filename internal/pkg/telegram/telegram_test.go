package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:TEST"

type fakeBotAPI struct {
	mu   sync.Mutex
	sent []map[string]any
}

func newFakeBotAPI(t *testing.T) *fakeBotAPI {
	t.Helper()
	api := &fakeBotAPI{}
	srv := httptest.NewServer(http.HandlerFunc(api.handle))
	t.Cleanup(srv.Close)
	t.Setenv("TELEGRAM_API_URL", srv.URL)
	return api
}

func (f *fakeBotAPI) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !strings.HasPrefix(r.URL.Path, "/bot"+testToken+"/") {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
		return
	}

	switch strings.TrimPrefix(r.URL.Path, "/bot"+testToken+"/") {
	case "getMe":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Shop Alerts","username":"shop_alerts_bot"}}`))
	case "sendMessage":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["chat_id"] == "404" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return
		}
		f.mu.Lock()
		f.sent = append(f.sent, body)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":1700000000,"chat":{"id":12345,"type":"private"},"text":"ok"}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
	}
}

func TestVerify(t *testing.T) {
	newFakeBotAPI(t)

	info, err := Verify(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, "shop_alerts_bot", info.Username)
	assert.Equal(t, "Shop Alerts", info.FirstName)
	assert.Equal(t, "https://t.me/shop_alerts_bot", info.Link)
}

func TestVerify_BadToken(t *testing.T) {
	newFakeBotAPI(t)

	_, err := Verify(context.Background(), "999:WRONG")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")

	_, err = Verify(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSender_Send(t *testing.T) {
	api := newFakeBotAPI(t)

	s, err := NewSender(testToken)
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), "12345", "Payment received!"))

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.sent, 1)
	assert.Equal(t, "12345", api.sent[0]["chat_id"])
	assert.Equal(t, "Payment received!", api.sent[0]["text"])
}

func TestSender_SendSurfacesDescription(t *testing.T) {
	newFakeBotAPI(t)

	s, err := NewSender(testToken)
	require.NoError(t, err)

	err = s.Send(context.Background(), "404", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestNewSender_NotConfigured(t *testing.T) {
	_, err := NewSender("")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
