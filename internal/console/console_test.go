package console

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/lineledger/internal/auth"
	"github.com/mmynk/lineledger/internal/dispatch"
	"github.com/mmynk/lineledger/internal/engine"
	"github.com/mmynk/lineledger/internal/middleware"
	"github.com/mmynk/lineledger/internal/models"
)

type fakeResponder struct {
	inputs []engine.Input
	err    error
}

func (f *fakeResponder) Respond(_ context.Context, in engine.Input) (*dispatch.Result, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &dispatch.Result{
		Text:         "✅ 已記錄支出：food NT$150",
		Command:      dispatch.CommandTransaction,
		QuickActions: true,
		Created:      &models.Transaction{ID: "txn-1", Amount: decimal.NewFromInt(150)},
	}, nil
}

func setupConsole(t *testing.T, responder Responder, opts ...connect.HandlerOption) *connect.Client[SendRequest, SendResponse] {
	t.Helper()

	mux := http.NewServeMux()
	mux.Handle(NewHandler(NewService(responder), opts...))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return NewClient(http.DefaultClient, server.URL)
}

func TestSend(t *testing.T) {
	responder := &fakeResponder{}
	client := setupConsole(t, responder, connect.WithInterceptors(middleware.LoggingInterceptor()))

	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&SendRequest{
		LineUserID: "U1",
		GroupID:    "G1",
		Text:       "lunch 150",
	}))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if resp.Msg.Command != dispatch.CommandTransaction || resp.Msg.TransactionID != "txn-1" {
		t.Errorf("unexpected response: %+v", resp.Msg)
	}
	if len(resp.Msg.QuickActions) != 4 || resp.Msg.QuickActions[0].Postback != "expense_summary:week" {
		t.Errorf("unexpected quick actions: %+v", resp.Msg.QuickActions)
	}
	if len(responder.inputs) != 1 {
		t.Fatalf("expected one input, got %d", len(responder.inputs))
	}
	want := engine.Input{LineUserID: "U1", ChatID: "G1", Text: "lunch 150"}
	if responder.inputs[0] != want {
		t.Errorf("input = %+v, want %+v", responder.inputs[0], want)
	}
}

func TestSendErrors(t *testing.T) {
	tests := []struct {
		name     string
		req      *SendRequest
		err      error
		wantCode connect.Code
	}{
		{"missing user", &SendRequest{Text: "lunch 150"}, nil, connect.CodeInvalidArgument},
		{"empty input", &SendRequest{LineUserID: "U1"}, nil, connect.CodeInvalidArgument},
		{"text and postback", &SendRequest{LineUserID: "U1", Text: "x", Postback: "recent_records"}, nil, connect.CodeInvalidArgument},
		{"engine failure", &SendRequest{LineUserID: "U1", Text: "lunch 150"}, errors.New("database is locked"), connect.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := setupConsole(t, &fakeResponder{err: tt.err})
			_, err := client.CallUnary(context.Background(), connect.NewRequest(tt.req))
			if connect.CodeOf(err) != tt.wantCode {
				t.Errorf("code = %v, want %v (err %v)", connect.CodeOf(err), tt.wantCode, err)
			}
		})
	}
}

func TestSendWithLinkToken(t *testing.T) {
	tokens := auth.NewJWTManager([]byte("test-secret"), time.Minute)
	token, err := tokens.Issue("user-1", "U-linked")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	responder := &fakeResponder{}
	client := setupConsole(t, responder, connect.WithInterceptors(middleware.RequireAuth(tokens)))

	call := func(req *SendRequest, bearer string) error {
		r := connect.NewRequest(req)
		if bearer != "" {
			r.Header().Set("Authorization", "Bearer "+bearer)
		}
		_, err := client.CallUnary(context.Background(), r)
		return err
	}

	if err := call(&SendRequest{Text: "/pet"}, token); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := responder.inputs[0].LineUserID; got != "U-linked" {
		t.Errorf("LineUserID = %q, want U-linked", got)
	}

	if code := connect.CodeOf(call(&SendRequest{Text: "/pet"}, "")); code != connect.CodeUnauthenticated {
		t.Errorf("without token: code = %v", code)
	}
	if code := connect.CodeOf(call(&SendRequest{Text: "/pet"}, "forged")); code != connect.CodeUnauthenticated {
		t.Errorf("forged token: code = %v", code)
	}
	if code := connect.CodeOf(call(&SendRequest{LineUserID: "U-other", Text: "/pet"}, token)); code != connect.CodePermissionDenied {
		t.Errorf("impersonation: code = %v", code)
	}
}
