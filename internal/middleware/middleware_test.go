package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/lineledger/internal/auth"
)

type empty struct{}

type chatRequest struct{ user string }

func (r *chatRequest) ChatUser() string { return r.user }

type chatResponse struct{ command, txnID string }

func (r *chatResponse) DispatchedCommand() string  { return r.command }
func (r *chatResponse) CreatedTransaction() string { return r.txnID }

func TestAuthInterceptors(t *testing.T) {
	tokens := auth.NewJWTManager([]byte("test-secret"), time.Minute)
	valid, err := tokens.Issue("user-1", "U1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	tests := []struct {
		name        string
		header      string
		optional    bool
		wantCode    connect.Code
		wantLineID  string
		wantUserID  string
		wantReached bool
	}{
		{name: "required valid", header: "Bearer " + valid, wantLineID: "U1", wantUserID: "user-1", wantReached: true},
		{name: "required missing", wantCode: connect.CodeUnauthenticated},
		{name: "required malformed", header: "Token " + valid, wantCode: connect.CodeUnauthenticated},
		{name: "required invalid", header: "Bearer nope", wantCode: connect.CodeUnauthenticated},
		{name: "optional valid", header: "Bearer " + valid, optional: true, wantLineID: "U1", wantUserID: "user-1", wantReached: true},
		{name: "optional missing", optional: true, wantReached: true},
		{name: "optional invalid", header: "Bearer nope", optional: true, wantReached: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reached bool
			var gotLineID, gotUserID string
			next := func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
				reached = true
				gotLineID, gotUserID = GetLineUserID(ctx), GetUserID(ctx)
				return connect.NewResponse(&empty{}), nil
			}

			interceptor := RequireAuth(tokens)
			if tt.optional {
				interceptor = OptionalAuth(tokens)
			}
			req := connect.NewRequest(&empty{})
			if tt.header != "" {
				req.Header().Set("Authorization", tt.header)
			}

			_, err := interceptor(next)(context.Background(), req)
			if tt.wantCode != 0 {
				if connect.CodeOf(err) != tt.wantCode {
					t.Errorf("code = %v, want %v", connect.CodeOf(err), tt.wantCode)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if reached != tt.wantReached || gotLineID != tt.wantLineID || gotUserID != tt.wantUserID {
				t.Errorf("reached=%v line=%q user=%q", reached, gotLineID, gotUserID)
			}
		})
	}
}

func TestHTTPMiddleware(t *testing.T) {
	handler := Logging(CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/anything", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/anything", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", rec.Code)
	}
}

func TestLoggingInterceptor(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		name      string
		ctx       context.Context
		resp      *chatResponse
		err       error
		wantLevel string
		wantAttrs map[string]string
	}{
		{
			name:      "dispatched transaction",
			ctx:       context.Background(),
			resp:      &chatResponse{command: "transaction", txnID: "txn-1"},
			wantLevel: "INFO",
			wantAttrs: map[string]string{"line_user_id": "U-req", "command": "transaction", "transaction_id": "txn-1"},
		},
		{
			name:      "link token user wins",
			ctx:       withClaims(context.Background(), &auth.LinkClaims{UserID: "user-1", LineUserID: "U-token"}),
			resp:      &chatResponse{command: "list"},
			wantLevel: "INFO",
			wantAttrs: map[string]string{"line_user_id": "U-token", "command": "list"},
		},
		{
			name:      "caller mistake",
			ctx:       context.Background(),
			err:       connect.NewError(connect.CodeInvalidArgument, errors.New("text or postback required")),
			wantLevel: "WARN",
			wantAttrs: map[string]string{"code": "invalid_argument"},
		},
		{
			name:      "internal failure",
			ctx:       context.Background(),
			err:       errors.New("database is locked"),
			wantLevel: "ERROR",
			wantAttrs: map[string]string{"error": "database is locked"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			next := func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return connect.NewResponse(tt.resp), nil
			}
			LoggingInterceptor()(next)(tt.ctx, connect.NewRequest(&chatRequest{user: "U-req"}))

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("decoding log line %q: %v", buf.String(), err)
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", entry["level"], tt.wantLevel)
			}
			for k, want := range tt.wantAttrs {
				if got := entry[k]; got != want {
					t.Errorf("%s = %v, want %s", k, got, want)
				}
			}
		})
	}
}
