package line

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// MaxBodyBytes bounds a webhook delivery.
const MaxBodyBytes = 1 << 20

// EventFunc handles one decoded event.
type EventFunc func(ctx context.Context, event Event)

// WebhookHandler receives webhook deliveries.
type WebhookHandler struct {
	channelSecret string

	// Strict rejects deliveries whose signature does not verify. When false
	// a bad signature is logged and the delivery is processed anyway.
	Strict bool

	// OnSignatureFailure, if set, is called for every bad signature.
	OnSignatureFailure func()

	handle EventFunc
}

// NewWebhookHandler creates a handler that passes each event to handle.
func NewWebhookHandler(channelSecret string, strict bool, handle EventFunc) *WebhookHandler {
	return &WebhookHandler{channelSecret: channelSecret, Strict: strict, handle: handle}
}

// ServeHTTP verifies the delivery, runs every event concurrently and
// answers 200 once all of them are done. Event handlers run on a context
// detached from the request.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	if !webhook.ValidateSignature(h.channelSecret, r.Header.Get("X-Line-Signature"), body) {
		if h.OnSignatureFailure != nil {
			h.OnSignatureFailure()
		}
		if h.Strict {
			slog.Warn("Rejected webhook with invalid signature", "remote_addr", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		slog.Warn("Webhook signature invalid, processing anyway", "remote_addr", r.RemoteAddr)
	}

	var cb webhook.CallbackRequest
	if err := json.Unmarshal(body, &cb); err != nil {
		slog.Warn("Failed to decode webhook body", "error", err)
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}

	slog.Debug("Webhook received", "destination", cb.Destination, "events", len(cb.Events))

	ctx := context.WithoutCancel(r.Context())
	var wg sync.WaitGroup
	for _, raw := range cb.Events {
		event := fromWebhook(raw)
		wg.Add(1)
		go func(event Event) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					slog.Error("Panic while handling event", "type", event.Type, "panic", p)
				}
			}()
			h.handle(ctx, event)
		}(event)
	}
	wg.Wait()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{}`))
}

// fromWebhook keeps what the engine needs from an SDK event. Unhandled
// event types keep only their type.
func fromWebhook(raw webhook.EventInterface) Event {
	switch e := raw.(type) {
	case webhook.MessageEvent:
		event := Event{Type: EventMessage, Source: fromSource(e.Source), ReplyToken: e.ReplyToken}
		if text, ok := e.Message.(webhook.TextMessageContent); ok {
			event.Text = text.Text
		}
		return event
	case webhook.PostbackEvent:
		event := Event{Type: EventPostback, Source: fromSource(e.Source), ReplyToken: e.ReplyToken}
		if e.Postback != nil {
			event.Postback = e.Postback.Data
		}
		return event
	}
	return Event{Type: raw.GetType()}
}

func fromSource(raw webhook.SourceInterface) Source {
	switch s := raw.(type) {
	case webhook.UserSource:
		return Source{Type: SourceUser, UserID: s.UserId}
	case webhook.GroupSource:
		return Source{Type: SourceGroup, UserID: s.UserId, GroupID: s.GroupId}
	case webhook.RoomSource:
		return Source{Type: SourceRoom, UserID: s.UserId, RoomID: s.RoomId}
	}
	return Source{}
}
