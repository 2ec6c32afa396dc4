// Package reply delivers exactly one answer per inbound event. LINE reply
// tokens are single-use, so every answer first tries the token and falls
// back to a push message to the sender.
package reply

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mmynk/lineledger/internal/line"
)

// Delivery methods, as reported by Send.
const (
	MethodReply   = "reply"
	MethodPush    = "push"
	MethodDropped = "dropped"
)

// TokenTTL is how long a claimed reply token stays claimed. LINE tokens
// expire well before this.
const TokenTTL = 5 * time.Minute

// ErrUndeliverable is returned when both reply and push failed.
var ErrUndeliverable = errors.New("message could not be delivered")

// Messenger sends messages through the chat platform.
type Messenger interface {
	Reply(ctx context.Context, replyToken string, msgs ...line.Message) error
	Push(ctx context.Context, to string, msgs ...line.Message) error
}

// Destination says where an answer goes: the event's reply token, and the
// id to push to when the token cannot be used.
type Destination struct {
	ReplyToken string
	PushTo     string
}

// Channel sends answers with the reply-then-push policy.
type Channel struct {
	messenger Messenger
	guard     Guard

	// OnDelivery, if set, is called with the method of every Send.
	OnDelivery func(method string)
}

// NewChannel creates a Channel.
func NewChannel(messenger Messenger, guard Guard) *Channel {
	return &Channel{messenger: messenger, guard: guard}
}

// Send delivers msgs to dest. The reply token is claimed in the guard and
// used at most once; if it was already claimed, is empty, or the reply
// fails, the messages are pushed instead. When the push fails too the
// messages are dropped and ErrUndeliverable is returned.
func (c *Channel) Send(ctx context.Context, dest Destination, msgs ...line.Message) (string, error) {
	method, err := c.send(ctx, dest, msgs)
	if c.OnDelivery != nil {
		c.OnDelivery(method)
	}
	return method, err
}

func (c *Channel) send(ctx context.Context, dest Destination, msgs []line.Message) (string, error) {
	if dest.ReplyToken != "" && c.claim(ctx, dest.ReplyToken) {
		err := c.messenger.Reply(ctx, dest.ReplyToken, msgs...)
		if err == nil {
			return MethodReply, nil
		}
		slog.Warn("Reply failed, falling back to push", "push_to", dest.PushTo, "error", err)
	}

	if err := c.messenger.Push(ctx, dest.PushTo, msgs...); err != nil {
		slog.Error("Push failed, dropping message", "push_to", dest.PushTo, "error", err)
		return MethodDropped, errors.Join(ErrUndeliverable, err)
	}
	return MethodPush, nil
}

// Push sends unsolicited messages, such as alerts, to a user.
func (c *Channel) Push(ctx context.Context, to string, msgs ...line.Message) error {
	_, err := c.Send(ctx, Destination{PushTo: to}, msgs...)
	return err
}

// claim reports whether token may be used. A guard failure lets the reply
// through.
func (c *Channel) claim(ctx context.Context, token string) bool {
	ok, err := c.guard.Claim(ctx, "reply:"+token, TokenTTL)
	if err != nil {
		slog.Warn("Reply guard unavailable", "error", err)
		return true
	}
	return ok
}
