package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// Dispatched is implemented by console responses that ran through the
// command dispatcher.
type Dispatched interface {
	DispatchedCommand() string
	CreatedTransaction() string
}

// Addressed is implemented by console requests that name the chat user
// they act as.
type Addressed interface {
	ChatUser() string
}

// LoggingInterceptor returns a Connect interceptor that logs every console
// call: the procedure, the LINE user it acted as, the dispatched command
// and any transaction it created. Caller mistakes (bad argument, wrong
// user) log at warn; anything else that fails logs at error.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			attrs := []any{
				"procedure", req.Spec().Procedure,
				"line_user_id", actingUser(ctx, req),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if err != nil {
				var connectErr *connect.Error
				if !errors.As(err, &connectErr) {
					slog.Error("Console call failed", append(attrs, "error", err)...)
					return resp, err
				}
				attrs = append(attrs, "code", connectErr.Code().String(), "error", connectErr.Message())
				switch connectErr.Code() {
				case connect.CodeInvalidArgument, connect.CodePermissionDenied, connect.CodeUnauthenticated:
					slog.Warn("Console call rejected", attrs...)
				default:
					slog.Error("Console call failed", attrs...)
				}
				return resp, err
			}

			if d, ok := resp.Any().(Dispatched); ok {
				attrs = append(attrs, "command", d.DispatchedCommand())
				if id := d.CreatedTransaction(); id != "" {
					attrs = append(attrs, "transaction_id", id)
				}
			}
			slog.Info("Console call", attrs...)
			return resp, err
		}
	}
}

// actingUser prefers the link token's user and falls back to the user the
// request names.
func actingUser(ctx context.Context, req connect.AnyRequest) string {
	if id := GetLineUserID(ctx); id != "" {
		return id
	}
	if a, ok := req.Any().(Addressed); ok {
		return a.ChatUser()
	}
	return ""
}
