package finance

import (
	"time"

	"github.com/erp/distribution/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateReceivableRequest bills a customer. A nil DueDate falls back to the
// customer's payment terms.
type CreateReceivableRequest struct {
	CustomerID uuid.UUID       `json:"customer_id" validate:"required"`
	OrderID    *uuid.UUID      `json:"order_id"`
	DeliveryID *uuid.UUID      `json:"delivery_id"`
	Amount     decimal.Decimal `json:"amount" validate:"gt=0"`
	DueDate    *time.Time      `json:"due_date"`
	Notes      string          `json:"notes" validate:"max=1000"`
}

// RecordPaymentRequest records money received against a receivable.
// Reference makes the call safe to retry.
type RecordPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Method      string          `json:"method" validate:"required,oneof=cash bank_transfer check other"`
	PaymentDate *time.Time      `json:"payment_date"`
	Reference   string          `json:"reference" validate:"max=100"`
	CollectedBy *uuid.UUID      `json:"collected_by"`
	Notes       string          `json:"notes" validate:"max=1000"`
	Latitude    *float64        `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64        `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

// ReceivableListFilter represents filter options for receivable list
type ReceivableListFilter struct {
	CustomerID *uuid.UUID `json:"customer_id"`
	Status     string     `json:"status" validate:"omitempty,oneof=pending partial paid written_off"`
	OpenOnly   bool       `json:"open_only"`
	Page       int        `json:"page" validate:"gte=0"`
	PageSize   int        `json:"page_size" validate:"gte=0,lte=100"`
}

// ReceivableResponse represents a receivable in API responses
type ReceivableResponse struct {
	ID               uuid.UUID                `json:"id"`
	TenantID         uuid.UUID                `json:"tenant_id"`
	ReceivableNumber string                   `json:"receivable_number"`
	CustomerID       uuid.UUID                `json:"customer_id"`
	OrderID          *uuid.UUID               `json:"order_id,omitempty"`
	DeliveryID       *uuid.UUID               `json:"delivery_id,omitempty"`
	Amount           decimal.Decimal          `json:"amount"`
	PaidAmount       decimal.Decimal          `json:"paid_amount"`
	RemainingAmount  decimal.Decimal          `json:"remaining_amount"`
	DueDate          time.Time                `json:"due_date"`
	Status           finance.ReceivableStatus `json:"status"`
	LastPaymentDate  *time.Time               `json:"last_payment_date,omitempty"`
	Notes            string                   `json:"notes,omitempty"`
	WriteOffReason   string                   `json:"write_off_reason,omitempty"`
	WrittenOffAt     *time.Time               `json:"written_off_at,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
	Version          int                      `json:"version"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID            uuid.UUID             `json:"id"`
	PaymentNumber string                `json:"payment_number"`
	ReceivableID  uuid.UUID             `json:"receivable_id"`
	Amount        decimal.Decimal       `json:"amount"`
	Method        finance.PaymentMethod `json:"method"`
	PaymentDate   time.Time             `json:"payment_date"`
	Reference     *string               `json:"reference,omitempty"`
	CollectedBy   *uuid.UUID            `json:"collected_by,omitempty"`
	Notes         string                `json:"notes,omitempty"`
	Latitude      *float64              `json:"latitude,omitempty"`
	Longitude     *float64              `json:"longitude,omitempty"`
	CreatedBy     *uuid.UUID            `json:"created_by,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// PaymentResult is the outcome of RecordPayment. Replayed is true when the
// reference had already been recorded and nothing changed.
type PaymentResult struct {
	Payment    PaymentResponse    `json:"payment"`
	Receivable ReceivableResponse `json:"receivable"`
	Replayed   bool               `json:"replayed"`
}

// CustomerBalanceResponse totals a customer's open receivables
type CustomerBalanceResponse struct {
	CustomerID       uuid.UUID       `json:"customer_id"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalRemaining   decimal.Decimal `json:"total_remaining"`
	OverdueAmount    decimal.Decimal `json:"overdue_amount"`
	ReceivablesCount int             `json:"receivables_count"`
	OverdueCount     int             `json:"overdue_count"`
}

// AgingBucketResponse is one age range of the open balance
type AgingBucketResponse struct {
	Bucket finance.AgingBucket `json:"bucket"`
	Amount decimal.Decimal     `json:"amount"`
	Count  int                 `json:"count"`
}

// AgingReportResponse lists buckets from youngest to oldest
type AgingReportResponse struct {
	AsOf       time.Time             `json:"as_of"`
	CustomerID *uuid.UUID            `json:"customer_id,omitempty"`
	Buckets    []AgingBucketResponse `json:"buckets"`
	Total      decimal.Decimal       `json:"total"`
}

// ReceivableStatsResponse summarises collection performance
type ReceivableStatsResponse struct {
	TotalAmount          decimal.Decimal `json:"total_amount"`
	TotalPaid            decimal.Decimal `json:"total_paid"`
	TotalRemaining       decimal.Decimal `json:"total_remaining"`
	OverdueAmount        decimal.Decimal `json:"overdue_amount"`
	CollectionRate       decimal.Decimal `json:"collection_rate"`
	AverageDaysToCollect decimal.Decimal `json:"average_days_to_collect"`
}

// ToReceivableResponse converts a domain receivable to a response
func ToReceivableResponse(r *finance.Receivable) ReceivableResponse {
	return ReceivableResponse{
		ID:               r.ID,
		TenantID:         r.TenantID,
		ReceivableNumber: r.ReceivableNumber,
		CustomerID:       r.CustomerID,
		OrderID:          r.OrderID,
		DeliveryID:       r.DeliveryID,
		Amount:           r.Amount,
		PaidAmount:       r.PaidAmount,
		RemainingAmount:  r.RemainingAmount,
		DueDate:          r.DueDate,
		Status:           r.Status,
		LastPaymentDate:  r.LastPaymentDate,
		Notes:            r.Notes,
		WriteOffReason:   r.WriteOffReason,
		WrittenOffAt:     r.WrittenOffAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		Version:          r.Version,
	}
}

// ToReceivableResponses converts a slice of receivables
func ToReceivableResponses(rs []finance.Receivable) []ReceivableResponse {
	out := make([]ReceivableResponse, len(rs))
	for i := range rs {
		out[i] = ToReceivableResponse(&rs[i])
	}
	return out
}

// ToPaymentResponse converts a domain payment to a response
func ToPaymentResponse(p *finance.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		PaymentNumber: p.PaymentNumber,
		ReceivableID:  p.ReceivableID,
		Amount:        p.Amount,
		Method:        p.Method,
		PaymentDate:   p.PaymentDate,
		Reference:     p.Reference,
		CollectedBy:   p.CollectedBy,
		Notes:         p.Notes,
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		CreatedBy:     p.CreatedBy,
		CreatedAt:     p.CreatedAt,
	}
}

func toAgingReportResponse(report finance.AgingReport, customerID *uuid.UUID) AgingReportResponse {
	resp := AgingReportResponse{
		AsOf:       report.AsOf,
		CustomerID: customerID,
		Buckets:    make([]AgingBucketResponse, len(finance.AgingBuckets)),
		Total:      report.Total,
	}
	for i, b := range finance.AgingBuckets {
		resp.Buckets[i] = AgingBucketResponse{Bucket: b, Amount: report.Buckets[b], Count: report.Counts[b]}
	}
	return resp
}
