// Package dispatch turns one chat input into one answer. It normalizes
// natural-language commands, routes explicit commands through a verb
// table, and otherwise tries the goal, budget and transaction parsers in
// that order.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/mmynk/lineledger/internal/clock"
	"github.com/mmynk/lineledger/internal/models"
	"github.com/mmynk/lineledger/internal/parser"
	"github.com/mmynk/lineledger/internal/service"
)

// Commands that are not verbs, as reported in Result.Command.
const (
	CommandTransaction = "transaction"
	CommandGoal        = "goal"
	CommandBudgetSet   = "budget_set"
	CommandUnparsed    = "unparsed"
	CommandUnknown     = "unknown"
	CommandPostback    = "postback"
)

// Request is one inbound input.
type Request struct {
	// OwnerID is the internal user id the ledger is keyed by.
	OwnerID string

	// LineUserID is the sender's platform id.
	LineUserID string

	// GroupID is set when the input came from a group chat.
	GroupID string

	Text     string
	Postback string
}

// Result is the answer to a Request.
type Result struct {
	Text string

	// QuickActions asks for the quick action buttons under the answer.
	QuickActions bool

	// Command is the canonical command that handled the input.
	Command string

	// Err is the error the handler failed with, already rendered into Text.
	Err error

	// Created is the transaction recorded from free text, if any.
	Created *models.Transaction

	// LedgerChanged lists the owners whose ledger was modified.
	LedgerChanged []string
}

// Services are the business operations the dispatcher drives.
type Services struct {
	Ledger  *service.LedgerService
	Budgets *service.BudgetService
	Goals   *service.GoalService
	Groups  *service.GroupService
	Pets    *service.PetService
}

// LinkIssuer issues account link tokens for the myid command.
type LinkIssuer interface {
	Issue(userID, lineUserID string) (string, error)
}

// NameResolver looks up display names of group members.
type NameResolver interface {
	DisplayName(ctx context.Context, groupID, userID string) string
}

type handlerFunc func(ctx context.Context, req *Request, args []string) (*Result, error)

// Dispatcher routes inputs to handlers.
type Dispatcher struct {
	svc      Services
	parser   *parser.Chain
	clock    clock.Clock
	location *time.Location
	handlers map[string]handlerFunc
	aliases  map[string]string

	// Links issues link tokens; without it myid only shows the user id.
	Links LinkIssuer

	// Names resolves participant names; without it ids are shown.
	Names NameResolver
}

// New creates a Dispatcher. Dates are shown and parsed in the location of
// the clock's times.
func New(svc Services, chain *parser.Chain, clk clock.Clock) *Dispatcher {
	d := &Dispatcher{svc: svc, parser: chain, clock: clk, location: clk.Now().Location()}
	d.registerCommands()
	return d
}

// register adds a handler under its canonical verb and aliases.
func (d *Dispatcher) register(verb string, h handlerFunc, aliases ...string) {
	if d.handlers == nil {
		d.handlers = make(map[string]handlerFunc)
		d.aliases = make(map[string]string)
	}
	d.handlers[verb] = h
	d.aliases[verb] = verb
	for _, a := range aliases {
		d.aliases[a] = verb
	}
}

// Process handles one input and always returns a Result. Handler errors
// and panics are turned into a reply.
func (d *Dispatcher) Process(ctx context.Context, req *Request) (res *Result) {
	command := CommandUnparsed
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Panic while dispatching",
				"command", command,
				"owner_id", req.OwnerID,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			err := fmt.Errorf("panic: %v", p)
			res = &Result{Command: command, Err: err, Text: errorText(err)}
		}
	}()

	var err error
	if req.Postback != "" {
		command = CommandPostback
		res, err = d.postback(ctx, req)
	} else {
		text := Normalize(req.Text)
		if strings.HasPrefix(text, CommandMarker) {
			verb, args := splitCommand(text)
			h, ok := d.lookup(verb)
			if !ok {
				command = CommandUnknown
				return &Result{
					Command: command,
					Text:    fmt.Sprintf("❌ 未知指令：%s\n輸入 /help 查看可用指令。", verb),
				}
			}
			command = d.aliases[strings.ToLower(verb)]
			res, err = h(ctx, req, args)
		} else {
			res, err = d.free(ctx, req, text, &command)
		}
	}

	if err != nil {
		logHandlerError(command, req, err)
		return &Result{Command: command, Err: err, Text: errorText(err)}
	}
	if res.Command == "" {
		res.Command = command
	}
	return res
}

func (d *Dispatcher) lookup(verb string) (handlerFunc, bool) {
	canonical, ok := d.aliases[strings.ToLower(verb)]
	if !ok {
		return nil, false
	}
	return d.handlers[canonical], true
}

func splitCommand(text string) (string, []string) {
	fields := strings.Fields(strings.TrimPrefix(text, CommandMarker))
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// free handles text that is not a command: goal, then budget, then a
// transaction. The first parser to match wins.
func (d *Dispatcher) free(ctx context.Context, req *Request, text string, command *string) (*Result, error) {
	if goal := parser.ParseGoal(text, d.location); goal != nil {
		*command = CommandGoal
		return d.createGoal(ctx, req, goal)
	}
	if th := parser.ParseBudget(text); th != nil {
		*command = CommandBudgetSet
		return d.setBudget(ctx, req, th)
	}
	if candidate := d.parser.Parse(ctx, text); candidate != nil {
		*command = CommandTransaction
		return d.record(ctx, req, candidate)
	}
	return &Result{Text: unparsedText}, nil
}

func (d *Dispatcher) record(ctx context.Context, req *Request, c *parser.Candidate) (*Result, error) {
	txn, err := d.svc.Ledger.Record(ctx, req.OwnerID, c)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:          fmt.Sprintf("✅ 已記錄%s：%s NT$%s", kindLabel(txn.Kind), txn.Category, money(txn.Amount)),
		QuickActions:  true,
		Created:       txn,
		LedgerChanged: []string{req.OwnerID},
	}, nil
}

func (d *Dispatcher) createGoal(ctx context.Context, req *Request, goal *parser.GoalRequest) (*Result, error) {
	g, err := d.svc.Goals.Create(ctx, req.OwnerID, *goal)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	b.WriteString("✅ 已設定儲蓄目標\n\n")
	renderGoal(&b, g, d.clock.Now(), d.location)
	return &Result{Text: b.String()}, nil
}

func (d *Dispatcher) setBudget(ctx context.Context, req *Request, th *parser.BudgetThresholds) (*Result, error) {
	b, err := d.svc.Budgets.SetThresholds(ctx, req.OwnerID, *th)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text: fmt.Sprintf("✅ 已設定 %s 預算\n\n單日預算：%s 元\n單週預算：%s 元\n單月預算：%s 元",
			b.Month, money(th.Daily), money(th.Weekly), money(th.Monthly)),
		QuickActions: true,
	}, nil
}

// errorText maps an error onto the reply the user sees.
func errorText(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		return "❌ 請輸入有效的金額（0.01 至 1,000,000,000,000）"
	case errors.Is(err, service.ErrMissingArgument):
		return "❌ 缺少參數，輸入 /help 查看用法"
	case errors.Is(err, service.ErrInvalidRef):
		return "❌ 找不到該筆記錄，請使用 /list 查看記錄編號"
	case errors.Is(err, service.ErrImmutable):
		return "❌ 此記錄來自已結算的群組分帳，無法修改或刪除"
	case errors.Is(err, service.ErrNotCreator):
		return "❌ 只有建立分帳的人可以結算"
	case errors.Is(err, service.ErrGroupOnly):
		return "❌ 此功能僅在群組中使用，請在群組中輸入指令"
	case errors.Is(err, service.ErrAlreadySettled):
		return "❌ 這筆分帳已經結算，請使用 /group new 建立新的分帳"
	case errors.Is(err, service.ErrSharesUnset):
		return "❌ 請確保所有參與者都設定了分攤金額（使用 /group split）"
	case errors.Is(err, service.ErrNoOpenExpense):
		return "❌ 請先使用 /group new 建立分帳"
	case errors.Is(err, service.ErrNotParticipant):
		return "❌ 請先使用 /group add [金額] 添加您的出資"
	default:
		return "❌ 處理指令時發生錯誤，請稍後再試。"
	}
}

// IsUserError reports whether err is a validation, authorization or
// precondition failure rather than an infrastructure fault.
func IsUserError(err error) bool {
	for _, target := range []error{
		service.ErrInvalidAmount,
		service.ErrMissingArgument,
		service.ErrInvalidRef,
		service.ErrImmutable,
		service.ErrNotCreator,
		service.ErrGroupOnly,
		service.ErrAlreadySettled,
		service.ErrSharesUnset,
		service.ErrNoOpenExpense,
		service.ErrNotParticipant,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func logHandlerError(command string, req *Request, err error) {
	if IsUserError(err) {
		slog.Info("Command rejected", "command", command, "owner_id", req.OwnerID, "reason", err)
		return
	}
	slog.Error("Command failed", "command", command, "owner_id", req.OwnerID, "error", err)
}
