package trade

import (
	"time"

	"github.com/erp/distribution/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLineRequest is one requested line. A nil unit price takes the
// product's current base price.
type OrderLineRequest struct {
	ProductID       uuid.UUID        `json:"product_id" validate:"required"`
	Quantity        decimal.Decimal  `json:"quantity" validate:"gt=0"`
	UnitPrice       *decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal  `json:"discount_percent" validate:"gte=0,lte=100"`
	Notes           string           `json:"notes" validate:"max=500"`
}

// CreateOrderRequest represents a request to create a sales order
type CreateOrderRequest struct {
	CustomerID           uuid.UUID          `json:"customer_id" validate:"required"`
	Lines                []OrderLineRequest `json:"lines" validate:"required,min=1,dive"`
	TaxTotal             *decimal.Decimal   `json:"tax_total"`
	ExpectedDeliveryDate *time.Time         `json:"expected_delivery_date"`
	ShippingAddress      string             `json:"shipping_address" validate:"max=500"`
	Notes                string             `json:"notes"`
}

// UpdateItemsRequest replaces every line of a draft or pending order
type UpdateItemsRequest struct {
	Lines    []OrderLineRequest `json:"lines" validate:"required,min=1,dive"`
	TaxTotal *decimal.Decimal   `json:"tax_total"`
}

// OrderListFilter represents filter options for order list
type OrderListFilter struct {
	Search     string     `json:"search"`
	CustomerID *uuid.UUID `json:"customer_id"`
	Status     string     `json:"status" validate:"omitempty,oneof=draft pending approved processing shipped delivered cancelled"`
	From       *time.Time `json:"from"`
	To         *time.Time `json:"to"`
	OrderBy    string     `json:"order_by"`
	OrderDir   string     `json:"order_dir" validate:"omitempty,oneof=asc desc"`
	Page       int        `json:"page" validate:"gte=0"`
	PageSize   int        `json:"page_size" validate:"gte=0,lte=100"`
}

// OrderLineResponse represents an order line in API responses
type OrderLineResponse struct {
	ID              uuid.UUID       `json:"id"`
	LineNumber      int             `json:"line_number"`
	ProductID       uuid.UUID       `json:"product_id"`
	ProductName     string          `json:"product_name"`
	ProductSKU      string          `json:"product_sku"`
	Unit            string          `json:"unit"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	LineTotal       decimal.Decimal `json:"line_total"`
	Notes           string          `json:"notes,omitempty"`

	AllocatedQuantity decimal.Decimal `json:"allocated_quantity"`
	DeliveredQuantity decimal.Decimal `json:"delivered_quantity"`
	BilledAmount      decimal.Decimal `json:"billed_amount"`
}

// OrderResponse represents a sales order in API responses
type OrderResponse struct {
	ID                   uuid.UUID           `json:"id"`
	TenantID             uuid.UUID           `json:"tenant_id"`
	OrderNumber          string              `json:"order_number"`
	CustomerID           uuid.UUID           `json:"customer_id"`
	CustomerCode         string              `json:"customer_code"`
	CustomerName         string              `json:"customer_name"`
	Status               trade.OrderStatus   `json:"status"`
	OrderDate            time.Time           `json:"order_date"`
	ExpectedDeliveryDate *time.Time          `json:"expected_delivery_date,omitempty"`
	ShippingAddress      string              `json:"shipping_address,omitempty"`
	Notes                string              `json:"notes,omitempty"`
	Subtotal             decimal.Decimal     `json:"subtotal"`
	DiscountTotal        decimal.Decimal     `json:"discount_total"`
	TaxTotal             decimal.Decimal     `json:"tax_total"`
	TotalAmount          decimal.Decimal     `json:"total_amount"`
	PaidAmount           decimal.Decimal     `json:"paid_amount"`
	ItemCount            int                 `json:"item_count"`
	Lines                []OrderLineResponse `json:"lines,omitempty"`
	BilledAmount         decimal.Decimal     `json:"billed_amount"`
	FullyDelivered       bool                `json:"fully_delivered"`
	ApprovedBy           *uuid.UUID          `json:"approved_by,omitempty"`
	ApprovedAt           *time.Time          `json:"approved_at,omitempty"`
	CancelReason         string              `json:"cancel_reason,omitempty"`
	CancelledAt          *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
	Version              int                 `json:"version"`
}

// OrderStats summarises orders placed in a date range. Revenue and the
// average exclude cancelled orders.
type OrderStats struct {
	Total             int                       `json:"total"`
	ByStatus          map[trade.OrderStatus]int `json:"by_status"`
	TotalRevenue      decimal.Decimal           `json:"total_revenue"`
	AverageOrderValue decimal.Decimal           `json:"average_order_value"`
}

// ToOrderResponse converts a domain order to a response
func ToOrderResponse(o *trade.SalesOrder) OrderResponse {
	resp := OrderResponse{
		ID:                   o.ID,
		TenantID:             o.TenantID,
		OrderNumber:          o.OrderNumber,
		CustomerID:           o.CustomerID,
		CustomerCode:         o.CustomerCode,
		CustomerName:         o.CustomerName,
		Status:               o.Status,
		OrderDate:            o.OrderDate,
		ExpectedDeliveryDate: o.ExpectedDeliveryDate,
		ShippingAddress:      o.ShippingAddress,
		Notes:                o.Notes,
		Subtotal:             o.Subtotal,
		DiscountTotal:        o.DiscountTotal,
		TaxTotal:             o.TaxTotal,
		TotalAmount:          o.TotalAmount,
		PaidAmount:           o.PaidAmount,
		ItemCount:            o.ItemCount,
		BilledAmount:         o.BilledTotal(),
		FullyDelivered:       o.IsFullyDelivered(),
		ApprovedBy:           o.ApprovedBy,
		ApprovedAt:           o.ApprovedAt,
		CancelReason:         o.CancelReason,
		CancelledAt:          o.CancelledAt,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
		Version:              o.Version,
	}
	if len(o.Lines) > 0 {
		resp.Lines = make([]OrderLineResponse, len(o.Lines))
		for i, l := range o.Lines {
			resp.Lines[i] = OrderLineResponse{
				ID:              l.ID,
				LineNumber:      l.LineNumber,
				ProductID:       l.ProductID,
				ProductName:     l.ProductName,
				ProductSKU:      l.ProductSKU,
				Unit:            l.Unit,
				Quantity:        l.Quantity,
				UnitPrice:       l.UnitPrice,
				DiscountPercent: l.DiscountPercent,
				DiscountAmount:  l.DiscountAmount,
				LineTotal:       l.LineTotal,
				Notes:           l.Notes,

				AllocatedQuantity: l.AllocatedQuantity,
				DeliveredQuantity: l.DeliveredQuantity,
				BilledAmount:      l.BilledAmount,
			}
		}
	}
	return resp
}
