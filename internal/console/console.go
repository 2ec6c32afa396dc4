// Package console serves a developer RPC that drives the ledger engine
// without LINE: each call is handled like a chat message and the answer
// is returned instead of being sent.
package console

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/lineledger/internal/dispatch"
	"github.com/mmynk/lineledger/internal/engine"
	"github.com/mmynk/lineledger/internal/middleware"
	"github.com/mmynk/lineledger/internal/reply"
)

// ProcedureSend is the route of the Send RPC.
const ProcedureSend = "/lineledger.v1.ConsoleService/Send"

var (
	errMissingUser    = errors.New("line_user_id is required without a link token")
	errUserMismatch   = errors.New("line_user_id does not match the link token")
	errEmptyInput     = errors.New("text or postback is required")
	errAmbiguousInput = errors.New("text and postback are mutually exclusive")
)

// SendRequest is one chat input.
type SendRequest struct {
	LineUserID string `json:"line_user_id,omitempty"`
	GroupID    string `json:"group_id,omitempty"`
	Text       string `json:"text,omitempty"`
	Postback   string `json:"postback,omitempty"`
}

// ChatUser is the LINE user the request acts as.
func (r *SendRequest) ChatUser() string { return r.LineUserID }

// QuickAction is a button the chat would show under the answer.
type QuickAction struct {
	Label    string `json:"label"`
	Postback string `json:"postback"`
}

// SendResponse is the answer the chat would have shown.
type SendResponse struct {
	Text          string        `json:"text"`
	Command       string        `json:"command"`
	QuickActions  []QuickAction `json:"quick_actions,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
}

// DispatchedCommand is the command the dispatcher ran.
func (r *SendResponse) DispatchedCommand() string { return r.Command }

// CreatedTransaction is the id of the recorded transaction, if any.
func (r *SendResponse) CreatedTransaction() string { return r.TransactionID }

// Responder answers chat inputs. *engine.Engine implements it.
type Responder interface {
	Respond(ctx context.Context, in engine.Input) (*dispatch.Result, error)
}

// Service implements the console RPC.
type Service struct {
	responder Responder
}

// NewService creates a console service.
func NewService(responder Responder) *Service {
	return &Service{responder: responder}
}

// NewHandler returns the route and handler for svc. Options usually carry
// the auth and logging interceptors.
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	return ProcedureSend, connect.NewUnaryHandler(ProcedureSend, svc.Send, opts...)
}

// NewClient returns a client for the console RPC at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *connect.Client[SendRequest, SendResponse] {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return connect.NewClient[SendRequest, SendResponse](httpClient, baseURL+ProcedureSend, opts...)
}

// Send handles one input as if it had arrived from LINE. The sender is
// the link token's user when the request carries one.
func (s *Service) Send(ctx context.Context, req *connect.Request[SendRequest]) (*connect.Response[SendResponse], error) {
	msg := req.Msg
	lineUserID := middleware.GetLineUserID(ctx)
	switch {
	case lineUserID == "" && msg.LineUserID == "":
		return nil, connect.NewError(connect.CodeInvalidArgument, errMissingUser)
	case lineUserID == "":
		lineUserID = msg.LineUserID
	case msg.LineUserID != "" && msg.LineUserID != lineUserID:
		return nil, connect.NewError(connect.CodePermissionDenied, errUserMismatch)
	}
	if msg.Text == "" && msg.Postback == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errEmptyInput)
	}
	if msg.Text != "" && msg.Postback != "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errAmbiguousInput)
	}

	res, err := s.responder.Respond(ctx, engine.Input{
		LineUserID: lineUserID,
		ChatID:     msg.GroupID,
		Text:       msg.Text,
		Postback:   msg.Postback,
	})
	if err != nil {
		slog.Error("Console input failed", "line_user_id", lineUserID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	resp := &SendResponse{Text: res.Text, Command: res.Command}
	if res.Created != nil {
		resp.TransactionID = res.Created.ID
	}
	if res.QuickActions {
		for _, a := range reply.QuickActions() {
			resp.QuickActions = append(resp.QuickActions, QuickAction{Label: a.Label, Postback: a.Data})
		}
	}
	return connect.NewResponse(resp), nil
}
