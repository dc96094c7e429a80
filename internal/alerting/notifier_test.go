package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"drift-health-alerts/internal/engine"
	"drift-health-alerts/internal/summary"
)

func testNotification() Notification {
	impact := int64(-500_000)
	return Notification{
		BusinessID:     "biz-1",
		BusinessName:   "Blue Bottle Bakery",
		Cycle:          time.Now(),
		PreviousStatus: engine.StatusStable,
		Status:         engine.StatusAttention,
		Direction:      engine.DirectionDown,
		MRIScore:       40,
		Reasons: []engine.Reason{
			{Code: engine.CodeRevenueDrop25, Detail: "Net revenue is down 30% versus the baseline window."},
		},
		Summary: summary.Summary{
			Headline:  "Net revenue is down 30% versus the baseline window.",
			Impact:    summary.Impact{EstMonthlyCents: &impact},
			NextSteps: []string{"Compare this period against the same weeks last year to rule out seasonality."},
		},
		Channels: []string{"telegram"},
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Errorf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testNotification()); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	text := received["text"]
	if !strings.Contains(text, "stable -> attention") {
		t.Fatalf("text should render the status transition: %s", text)
	}
	if !strings.Contains(text, "-$5,000.00") {
		t.Fatalf("text should render the estimated impact: %s", text)
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testNotification()); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

func TestRenderMessageCapsReasons(t *testing.T) {
	note := testNotification()
	note.Reasons = []engine.Reason{
		{Code: "A", Detail: "a"},
		{Code: "B", Detail: "b"},
		{Code: "C", Detail: "c"},
		{Code: "D", Detail: "d"},
	}

	text := renderMessage(note)
	if strings.Contains(text, "- D:") {
		t.Fatalf("rendering must cap reasons at %d: %s", maxRenderedReasons, text)
	}
	if strings.Count(text, "\n- ") != maxRenderedReasons {
		t.Fatalf("expected %d rendered reasons: %s", maxRenderedReasons, text)
	}
}

func TestRenderMessageNormalizesWatch(t *testing.T) {
	note := testNotification()
	note.PreviousStatus = ""
	note.Status = engine.StatusWatch

	text := renderMessage(note)
	if strings.Contains(text, "watch") {
		t.Fatalf("watch 不允许直接透出: %s", text)
	}
	if !strings.Contains(text, "Status: softening") {
		t.Fatalf("watch should render as softening: %s", text)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
