package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerBalance totals a customer's open receivables
type CustomerBalance struct {
	TotalAmount      decimal.Decimal
	TotalPaid        decimal.Decimal
	TotalRemaining   decimal.Decimal
	OverdueAmount    decimal.Decimal
	ReceivablesCount int
	OverdueCount     int
}

// BuildCustomerBalance sums open receivables; closed ones are ignored
func BuildCustomerBalance(receivables []Receivable, now time.Time) CustomerBalance {
	b := CustomerBalance{
		TotalAmount:    decimal.Zero,
		TotalPaid:      decimal.Zero,
		TotalRemaining: decimal.Zero,
		OverdueAmount:  decimal.Zero,
	}
	for i := range receivables {
		r := &receivables[i]
		if !r.Status.IsOpen() {
			continue
		}
		b.ReceivablesCount++
		b.TotalAmount = b.TotalAmount.Add(r.Amount)
		b.TotalPaid = b.TotalPaid.Add(r.PaidAmount)
		b.TotalRemaining = b.TotalRemaining.Add(r.RemainingAmount)
		if r.IsOverdue(now) {
			b.OverdueCount++
			b.OverdueAmount = b.OverdueAmount.Add(r.RemainingAmount)
		}
	}
	return b
}

// ReceivableStats summarises collection performance across all receivables
type ReceivableStats struct {
	TotalAmount          decimal.Decimal
	TotalPaid            decimal.Decimal
	TotalRemaining       decimal.Decimal
	OverdueAmount        decimal.Decimal
	CollectionRate       decimal.Decimal // percent of billed amount collected
	AverageDaysToCollect decimal.Decimal // over paid receivables
}

// BuildReceivableStats computes collection figures
func BuildReceivableStats(receivables []Receivable, now time.Time) ReceivableStats {
	s := ReceivableStats{
		TotalAmount:          decimal.Zero,
		TotalPaid:            decimal.Zero,
		TotalRemaining:       decimal.Zero,
		OverdueAmount:        decimal.Zero,
		CollectionRate:       decimal.Zero,
		AverageDaysToCollect: decimal.Zero,
	}
	paidCount, collectDays := 0, 0
	for i := range receivables {
		r := &receivables[i]
		s.TotalAmount = s.TotalAmount.Add(r.Amount)
		s.TotalPaid = s.TotalPaid.Add(r.PaidAmount)
		s.TotalRemaining = s.TotalRemaining.Add(r.RemainingAmount)
		if r.IsOverdue(now) {
			s.OverdueAmount = s.OverdueAmount.Add(r.RemainingAmount)
		}
		if r.Status == ReceivableStatusPaid && r.LastPaymentDate != nil {
			paidCount++
			collectDays += daysBetween(r.CreatedAt, *r.LastPaymentDate)
		}
	}
	if s.TotalAmount.IsPositive() {
		s.CollectionRate = s.TotalPaid.Div(s.TotalAmount).Mul(decimal.NewFromInt(100)).Round(2)
	}
	if paidCount > 0 {
		s.AverageDaysToCollect = decimal.NewFromInt(int64(collectDays)).Div(decimal.NewFromInt(int64(paidCount))).Round(1)
	}
	return s
}
