package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmynk/lineledger/internal/parser"
	"github.com/mmynk/lineledger/internal/reply"
	"github.com/mmynk/lineledger/internal/service"
)

// postback answers a tapped quick action.
func (d *Dispatcher) postback(ctx context.Context, req *Request) (*Result, error) {
	data := strings.TrimSpace(req.Postback)
	switch {
	case strings.HasPrefix(data, reply.PostbackSummaryBase):
		return d.periodSummary(ctx, req, strings.TrimPrefix(data, reply.PostbackSummaryBase))
	case data == reply.PostbackRecent:
		return d.recentRecords(ctx, req)
	case data == reply.PostbackSetBudget:
		return &Result{
			Text:         "請按照以下格式輸入您的預算：\n\n" + parser.BudgetTemplate + "\n\n請複製貼上並修改金額",
			QuickActions: true,
		}, nil
	default:
		slog.Warn("Unknown postback data", "owner_id", req.OwnerID, "data", data)
		return &Result{Text: "❌ 無法識別的請求"}, nil
	}
}

func (d *Dispatcher) periodSummary(ctx context.Context, req *Request, period string) (*Result, error) {
	label, ok := periodLabels[period]
	if !ok {
		return &Result{Text: "❌ 無效的請求參數"}, nil
	}
	report, err := d.svc.Ledger.PeriodReport(ctx, req.OwnerID, period)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s支出明細：\n", label)
	if len(report.Days) == 0 {
		b.WriteString("\n尚無支出記錄")
		return &Result{Text: b.String(), QuickActions: true}, nil
	}
	for _, day := range report.Days {
		fmt.Fprintf(&b, "\n%s  %s 元", strings.ReplaceAll(day.Day, "-", "/"), money(day.Amount))
	}
	b.WriteString("\n━━━━━━━━━━━━━━")
	fmt.Fprintf(&b, "\n💸 總支出：%s 元", money(report.Total))
	for _, c := range report.Categories {
		fmt.Fprintf(&b, "\n• %s：%s 元", c.Category, money(c.Amount))
	}
	return &Result{Text: b.String(), QuickActions: true}, nil
}

func (d *Dispatcher) recentRecords(ctx context.Context, req *Request) (*Result, error) {
	txns, err := d.svc.Ledger.Recent(ctx, req.OwnerID, service.DefaultListSize)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return &Result{Text: "📝 目前沒有任何記帳記錄。", QuickActions: true}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📝 最近 %d 筆記錄：\n", len(txns))
	for i, t := range txns {
		fmt.Fprintf(&b, "\n%d. %s | %s | %s 元 | %s", i+1, t.Category, kindLabel(t.Kind), money(t.Amount), date(t.Date, d.location))
	}
	return &Result{Text: b.String(), QuickActions: true}, nil
}
