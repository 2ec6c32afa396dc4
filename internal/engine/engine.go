// Package engine wires one inbound chat event through user resolution,
// dispatch, the reply channel and the background side effects.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/lineledger/internal/calculator"
	"github.com/mmynk/lineledger/internal/clock"
	"github.com/mmynk/lineledger/internal/dispatch"
	"github.com/mmynk/lineledger/internal/line"
	"github.com/mmynk/lineledger/internal/metrics"
	"github.com/mmynk/lineledger/internal/models"
	"github.com/mmynk/lineledger/internal/reply"
	"github.com/mmynk/lineledger/internal/storage"
)

const (
	// DefaultBreachDelay is how long the breach check waits after an
	// expense is persisted.
	DefaultBreachDelay = 100 * time.Millisecond

	// DefaultWorkers bounds concurrent background tasks.
	DefaultWorkers = 8

	// AlertTTL keeps a usage alert claimed for longer than any month.
	AlertTTL = 32 * 24 * time.Hour

	failureText = "❌ 處理指令時發生錯誤，請稍後再試。"
)

// Background task names.
const (
	TaskPet         = "pet"
	TaskBudgetAlert = "budget_alert"
	TaskGoals       = "goals"
)

// Options configures an Engine. Store, Dispatcher, Services, Channel and
// Guard are required.
type Options struct {
	Store      storage.Store
	Dispatcher *dispatch.Dispatcher
	Services   dispatch.Services
	Channel    *reply.Channel
	Guard      reply.Guard
	Clock      clock.Clock
	Metrics    *metrics.Metrics

	// BreachDelay defaults to DefaultBreachDelay. Negative disables the wait.
	BreachDelay time.Duration

	// Workers defaults to DefaultWorkers.
	Workers int
}

// Engine handles chat events.
type Engine struct {
	store       storage.Store
	dispatcher  *dispatch.Dispatcher
	svc         dispatch.Services
	channel     *reply.Channel
	guard       reply.Guard
	clock       clock.Clock
	metrics     *metrics.Metrics
	breachDelay time.Duration

	// Background runs the side effects of handled events.
	Background *Background
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.Real(time.Local)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(false)
	}
	if opts.BreachDelay == 0 {
		opts.BreachDelay = DefaultBreachDelay
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	e := &Engine{
		store:       opts.Store,
		dispatcher:  opts.Dispatcher,
		svc:         opts.Services,
		channel:     opts.Channel,
		guard:       opts.Guard,
		clock:       opts.Clock,
		metrics:     opts.Metrics,
		breachDelay: opts.BreachDelay,
		Background:  NewBackground(opts.Workers),
	}
	e.Background.OnDone = func(task, outcome string) {
		e.metrics.BackgroundTasks.WithLabelValues(task, outcome).Inc()
	}
	return e
}

// Input is one text or postback from a chat user.
type Input struct {
	LineUserID string
	ChatID     string // group or room id, empty in a one-to-one chat
	Text       string
	Postback   string
}

// HandleEvent answers a webhook event with exactly one message. Events
// other than text messages and postbacks are ignored.
func (e *Engine) HandleEvent(ctx context.Context, ev line.Event) {
	e.metrics.EventsReceived.WithLabelValues(ev.Type).Inc()

	in := Input{
		LineUserID: ev.Source.UserID,
		ChatID:     ev.Source.GroupID,
		Text:       ev.Text,
		Postback:   ev.Postback,
	}
	if in.ChatID == "" {
		in.ChatID = ev.Source.RoomID
	}
	if in.LineUserID == "" || (in.Text == "" && in.Postback == "") {
		slog.Debug("Ignoring event", "type", ev.Type, "source", ev.Source.Type)
		return
	}

	msg := line.NewTextMessage(failureText)
	user, res, err := e.respond(ctx, in)
	if err != nil {
		slog.Error("Failed to handle event", "line_user_id", in.LineUserID, "error", err)
	} else {
		msg = reply.Text(res.Text, res.QuickActions)
	}

	dest := reply.Destination{ReplyToken: ev.ReplyToken, PushTo: in.LineUserID}
	if _, err := e.channel.Send(ctx, dest, msg); err != nil {
		slog.Error("Failed to deliver answer", "line_user_id", in.LineUserID, "error", err)
	}
	if res != nil {
		e.schedule(ctx, user, res)
	}
}

// Respond runs one input through the dispatcher and schedules its side
// effects. The returned text already carries any budget breach warning.
// Nothing is sent to the chat platform for the answer itself.
func (e *Engine) Respond(ctx context.Context, in Input) (*dispatch.Result, error) {
	user, res, err := e.respond(ctx, in)
	if err != nil {
		return nil, err
	}
	e.schedule(ctx, user, res)
	return res, nil
}

func (e *Engine) respond(ctx context.Context, in Input) (*models.User, *dispatch.Result, error) {
	if in.LineUserID == "" {
		return nil, nil, errors.New("input has no user id")
	}
	user, err := e.store.GetOrCreateUser(ctx, in.LineUserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	start := time.Now()
	res := e.dispatcher.Process(ctx, &dispatch.Request{
		OwnerID:    user.ID,
		LineUserID: in.LineUserID,
		GroupID:    in.ChatID,
		Text:       in.Text,
		Postback:   in.Postback,
	})
	e.metrics.CommandsHandled.WithLabelValues(res.Command, outcome(res.Err)).Inc()
	slog.Info("Input handled",
		"user_id", user.ID,
		"command", res.Command,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if txn := res.Created; txn != nil {
		e.metrics.TransactionsRecorded.WithLabelValues(string(txn.Kind)).Inc()
		if txn.Kind == models.KindExpense {
			for _, w := range e.breachWarnings(ctx, user.ID, txn.Category) {
				res.Text += "\n\n" + w
			}
		}
	}

	return user, res, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case dispatch.IsUserError(err):
		return "rejected"
	default:
		return "error"
	}
}

// breachWarnings reports the overall and the category breach for an
// expense just recorded. Check failures only skip the warning.
func (e *Engine) breachWarnings(ctx context.Context, ownerID, category string) []string {
	if e.breachDelay > 0 {
		e.clock.Sleep(e.breachDelay)
	}

	var warnings []string
	breach, err := e.svc.Budgets.CheckBudgetExceeded(ctx, ownerID)
	if err != nil {
		slog.Warn("Budget check failed", "user_id", ownerID, "error", err)
	} else if breach != nil {
		warnings = append(warnings, dispatch.BreachWarning(breach))
	}

	breach, err = e.svc.Budgets.CheckCategoryBudgetExceeded(ctx, ownerID, category)
	if err != nil {
		slog.Warn("Category budget check failed", "user_id", ownerID, "error", err)
	} else if breach != nil {
		warnings = append(warnings, dispatch.BreachWarning(breach))
	}
	return warnings
}

func (e *Engine) schedule(ctx context.Context, user *models.User, res *dispatch.Result) {
	if txn := res.Created; txn != nil {
		e.Background.Go(ctx, TaskPet, func(ctx context.Context) error {
			return e.feedPet(ctx, txn)
		})
		if txn.Kind == models.KindExpense {
			e.Background.Go(ctx, TaskBudgetAlert, func(ctx context.Context) error {
				return e.alertUsage(ctx, user)
			})
		}
	}
	for _, ownerID := range res.LedgerChanged {
		e.Background.Go(ctx, TaskGoals, func(ctx context.Context) error {
			return e.recomputeGoals(ctx, ownerID)
		})
	}
}

// feedPet feeds the owner's pet and, for expenses, lets the month's budget
// usage affect its health.
func (e *Engine) feedPet(ctx context.Context, txn *models.Transaction) error {
	if _, err := e.svc.Pets.Feed(ctx, txn.OwnerID, txn.Amount); err != nil {
		return err
	}
	if txn.Kind != models.KindExpense {
		return nil
	}
	usage, err := e.svc.Budgets.Usage(ctx, txn.OwnerID)
	if err != nil || usage == nil {
		return err
	}
	return e.svc.Pets.ApplyBudgetUsage(ctx, txn.OwnerID, usage.Percent)
}

// alertUsage pushes a usage notification the first time a level is
// reached in a month.
func (e *Engine) alertUsage(ctx context.Context, user *models.User) error {
	usage, err := e.svc.Budgets.Usage(ctx, user.ID)
	if err != nil || usage == nil || usage.Level == 0 {
		return err
	}

	key := fmt.Sprintf("alert:%s:%s:%d", user.ID, calculator.MonthKey(e.clock.Now()), usage.Level)
	claimed, err := e.guard.Claim(ctx, key, AlertTTL)
	if err != nil {
		return fmt.Errorf("failed to claim usage alert: %w", err)
	}
	if !claimed {
		return nil
	}

	slog.Info("Budget usage alert", "user_id", user.ID, "level", usage.Level)
	return e.channel.Push(ctx, user.LineUserID, line.NewTextMessage(dispatch.UsageAlert(usage)))
}

// recomputeGoals refreshes goal progress and congratulates on goals that
// completed just now.
func (e *Engine) recomputeGoals(ctx context.Context, ownerID string) error {
	completed, err := e.svc.Goals.Recompute(ctx, ownerID)
	if err != nil || len(completed) == 0 {
		return err
	}

	user, err := e.store.GetUser(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to load goal owner: %w", err)
	}
	msgs := make([]line.Message, 0, len(completed))
	for _, g := range completed {
		slog.Info("Savings goal completed", "user_id", ownerID, "goal_id", g.ID)
		msgs = append(msgs, line.NewTextMessage(dispatch.GoalCompleted(g)))
	}
	if len(msgs) > line.MaxMessages {
		msgs = msgs[:line.MaxMessages]
	}
	return e.channel.Push(ctx, user.LineUserID, msgs...)
}
