package reply

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mmynk/lineledger/internal/clock"
	"github.com/mmynk/lineledger/internal/line"
)

type call struct {
	method string
	target string
	text   string
}

type fakeMessenger struct {
	mu       sync.Mutex
	calls    []call
	replyErr error
	pushErr  error
}

func (f *fakeMessenger) Reply(_ context.Context, token string, msgs ...line.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{MethodReply, token, msgs[0].Text})
	return f.replyErr
}

func (f *fakeMessenger) Push(_ context.Context, to string, msgs ...line.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{MethodPush, to, msgs[0].Text})
	return f.pushErr
}

type brokenGuard struct{}

func (brokenGuard) Claim(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestChannelSend(t *testing.T) {
	ctx := context.Background()
	dest := Destination{ReplyToken: "tok", PushTo: "U1"}

	tests := []struct {
		name      string
		dest      Destination
		replyErr  error
		pushErr   error
		preclaim  bool
		guard     Guard
		want      string
		wantCalls []string
	}{
		{name: "reply succeeds", dest: dest, want: MethodReply, wantCalls: []string{MethodReply}},
		{name: "reply fails then push", dest: dest, replyErr: errors.New("expired"), want: MethodPush, wantCalls: []string{MethodReply, MethodPush}},
		{name: "token already used", dest: dest, preclaim: true, want: MethodPush, wantCalls: []string{MethodPush}},
		{name: "no token", dest: Destination{PushTo: "U1"}, want: MethodPush, wantCalls: []string{MethodPush}},
		{name: "both fail", dest: dest, replyErr: errors.New("expired"), pushErr: errors.New("quota"), want: MethodDropped, wantCalls: []string{MethodReply, MethodPush}},
		{name: "guard down still replies", dest: dest, guard: brokenGuard{}, want: MethodReply, wantCalls: []string{MethodReply}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMessenger{replyErr: tt.replyErr, pushErr: tt.pushErr}
			guard := tt.guard
			if guard == nil {
				guard = NewMemoryGuard(clock.NewFake(time.Unix(0, 0)))
			}
			if tt.preclaim {
				guard.Claim(ctx, "reply:"+tt.dest.ReplyToken, TokenTTL)
			}

			var delivered []string
			ch := NewChannel(m, guard)
			ch.OnDelivery = func(method string) { delivered = append(delivered, method) }

			got, err := ch.Send(ctx, tt.dest, Text("ok", true))
			if got != tt.want {
				t.Errorf("method = %s, want %s", got, tt.want)
			}
			if (tt.want == MethodDropped) != errors.Is(err, ErrUndeliverable) {
				t.Errorf("unexpected error: %v", err)
			}
			if len(m.calls) != len(tt.wantCalls) {
				t.Fatalf("calls = %+v, want %v", m.calls, tt.wantCalls)
			}
			for i, c := range m.calls {
				if c.method != tt.wantCalls[i] {
					t.Errorf("call %d = %s, want %s", i, c.method, tt.wantCalls[i])
				}
				if c.method == MethodPush && c.target != "U1" {
					t.Errorf("pushed to %s", c.target)
				}
			}
			if len(delivered) != 1 || delivered[0] != tt.want {
				t.Errorf("OnDelivery saw %v", delivered)
			}
		})
	}
}

func TestChannelUsesTokenOnce(t *testing.T) {
	ctx := context.Background()
	m := &fakeMessenger{}
	ch := NewChannel(m, NewMemoryGuard(clock.NewFake(time.Unix(0, 0))))
	dest := Destination{ReplyToken: "tok", PushTo: "U1"}

	for i := 0; i < 3; i++ {
		if _, err := ch.Send(ctx, dest, Text("ok", false)); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}
	replies := 0
	for _, c := range m.calls {
		if c.method == MethodReply {
			replies++
		}
	}
	if replies != 1 || len(m.calls) != 3 {
		t.Errorf("replies %d calls %d", replies, len(m.calls))
	}
}

func TestMemoryGuardExpiry(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Unix(0, 0))
	g := NewMemoryGuard(clk)

	steps := []struct {
		advance time.Duration
		want    bool
	}{
		{0, true},
		{time.Second, false},
		{time.Minute, true},
		{0, false},
	}
	for i, step := range steps {
		clk.Advance(step.advance)
		got, err := g.Claim(ctx, "k", 30*time.Second)
		if err != nil {
			t.Fatalf("Claim failed: %v", err)
		}
		if got != step.want {
			t.Errorf("step %d: Claim = %v, want %v", i, got, step.want)
		}
	}
}

func TestQuickActions(t *testing.T) {
	msg := Text("hi", true)
	if len(msg.QuickActions) != 4 {
		t.Fatalf("expected four quick actions, got %+v", msg.QuickActions)
	}
	if data := msg.QuickActions[2].Data; data != PostbackRecent {
		t.Errorf("third action = %s", data)
	}
	if Text("hi", false).QuickActions != nil {
		t.Error("plain text should carry no quick actions")
	}
}

func TestConnectRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := ConnectRedis(ctx, "redis://127.0.0.1:1/0"); err == nil {
		t.Error("expected connection error")
	}
}
