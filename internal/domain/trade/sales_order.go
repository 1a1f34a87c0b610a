package trade

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of a sales order
type OrderStatus string

const (
	OrderStatusDraft      OrderStatus = "draft"
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusApproved   OrderStatus = "approved"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// AllOrderStatuses lists every status in lifecycle order
var AllOrderStatuses = []OrderStatus{
	OrderStatusDraft,
	OrderStatusPending,
	OrderStatusApproved,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	for _, v := range AllOrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is allowed
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo checks if the status can transition to the target status
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if target == OrderStatusCancelled {
		return !s.IsTerminal()
	}
	switch s {
	case OrderStatusDraft:
		return target == OrderStatusPending
	case OrderStatusPending:
		return target == OrderStatusApproved
	case OrderStatusApproved:
		return target == OrderStatusProcessing
	case OrderStatusProcessing:
		return target == OrderStatusShipped
	case OrderStatusShipped:
		return target == OrderStatusDelivered
	}
	return false
}

// AllowsLineChanges reports whether lines may still be replaced
func (s OrderStatus) AllowsLineChanges() bool {
	return s == OrderStatusDraft || s == OrderStatusPending
}

// SalesOrderLine is one product line on an order. Line figures are derived
// from quantity, price and discount percent and are never set directly.
// The fulfilment columns satisfy
// DeliveredQuantity <= AllocatedQuantity <= Quantity.
type SalesOrderLine struct {
	shared.BaseEntity
	OrderID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNumber      int             `gorm:"not null"`
	ProductID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductName     string          `gorm:"type:varchar(200);not null"`
	ProductSKU      string          `gorm:"column:product_sku;type:varchar(50)"`
	Unit            string          `gorm:"type:varchar(20)"`
	Quantity        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DiscountPercent decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LineTotal       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Notes           string          `gorm:"type:varchar(500)"`

	AllocatedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // on open or delivered deliveries
	DeliveredQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	BilledAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (SalesOrderLine) TableName() string {
	return "sales_order_lines"
}

// LineInput describes a requested order line with its product snapshot
type LineInput struct {
	ProductID       uuid.UUID
	ProductName     string
	ProductSKU      string
	Unit            string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	Notes           string
}

var hundred = decimal.NewFromInt(100)

// NewSalesOrderLine builds a line and derives its amounts
func NewSalesOrderLine(orderID uuid.UUID, lineNumber int, in LineInput) (*SalesOrderLine, error) {
	if in.ProductID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if strings.TrimSpace(in.ProductName) == "" {
		return nil, shared.NewValidationError("INVALID_PRODUCT_NAME", "Product name cannot be empty")
	}
	if !in.Quantity.IsPositive() {
		return nil, shared.NewValidationError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if in.UnitPrice.IsNegative() {
		return nil, shared.NewValidationError("INVALID_PRICE", "Unit price cannot be negative")
	}
	if in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(hundred) {
		return nil, shared.NewValidationError("INVALID_DISCOUNT", "Discount percent must be between 0 and 100")
	}

	gross := in.Quantity.Mul(in.UnitPrice)
	discount := gross.Mul(in.DiscountPercent).Div(hundred).Round(4)

	return &SalesOrderLine{
		BaseEntity:      shared.NewBaseEntity(),
		OrderID:         orderID,
		LineNumber:      lineNumber,
		ProductID:       in.ProductID,
		ProductName:     in.ProductName,
		ProductSKU:      in.ProductSKU,
		Unit:            in.Unit,
		Quantity:        in.Quantity,
		UnitPrice:       in.UnitPrice,
		DiscountPercent: in.DiscountPercent,
		DiscountAmount:  discount,
		LineTotal:       gross.Sub(discount),
		Notes:           in.Notes,

		AllocatedQuantity: decimal.Zero,
		DeliveredQuantity: decimal.Zero,
		BilledAmount:      decimal.Zero,
	}, nil
}

// GrossAmount returns quantity times unit price
func (l *SalesOrderLine) GrossAmount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// UnallocatedQuantity is the part of the line no delivery has claimed
func (l *SalesOrderLine) UnallocatedQuantity() decimal.Decimal {
	return l.Quantity.Sub(l.AllocatedQuantity)
}

// InFlightQuantity is claimed by deliveries that have not completed yet
func (l *SalesOrderLine) InFlightQuantity() decimal.Decimal {
	return l.AllocatedQuantity.Sub(l.DeliveredQuantity)
}

// NetUnitPrice is the discounted price of one unit, for display
func (l *SalesOrderLine) NetUnitPrice() decimal.Decimal {
	if !l.Quantity.IsPositive() {
		return l.UnitPrice
	}
	return l.LineTotal.Div(l.Quantity).Round(4)
}

// SalesOrder is the aggregate root for an order. Header amounts are a
// function of Lines and TaxTotal and are recomputed on every change.
type SalesOrder struct {
	shared.TenantAggregateRoot
	OrderNumber          string      `gorm:"type:varchar(50);not null;index"`
	CustomerID           uuid.UUID   `gorm:"type:uuid;not null;index"`
	CustomerName         string      `gorm:"type:varchar(200)"`
	CustomerCode         string      `gorm:"type:varchar(50)"`
	Status               OrderStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	OrderDate            time.Time   `gorm:"not null"`
	ExpectedDeliveryDate *time.Time
	ShippingAddress      string           `gorm:"type:varchar(500)"`
	Notes                string           `gorm:"type:text"`
	Subtotal             decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountTotal        decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	TaxTotal             decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmount          decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	PaidAmount           decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	ItemCount            int              `gorm:"not null;default:0"`
	Lines                []SalesOrderLine `gorm:"foreignKey:OrderID;references:ID"`
	ApprovedBy           *uuid.UUID       `gorm:"type:uuid"`
	ApprovedAt           *time.Time
	CancelReason         string `gorm:"type:varchar(500)"`
	CancelledAt          *time.Time
}

// TableName returns the table name for GORM
func (SalesOrder) TableName() string {
	return "sales_orders"
}

// CustomerSnapshot carries the customer fields copied onto an order
type CustomerSnapshot struct {
	ID   uuid.UUID
	Code string
	Name string
}

// NewSalesOrder creates a draft order with the given lines
func NewSalesOrder(tenantID uuid.UUID, orderNumber string, customer CustomerSnapshot, lines []LineInput) (*SalesOrder, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if orderNumber == "" {
		return nil, shared.NewValidationError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if customer.ID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}

	order := &SalesOrder{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		OrderNumber:         orderNumber,
		CustomerID:          customer.ID,
		CustomerName:        customer.Name,
		CustomerCode:        customer.Code,
		Status:              OrderStatusDraft,
		OrderDate:           time.Now(),
		TaxTotal:            decimal.Zero,
		PaidAmount:          decimal.Zero,
	}
	built, err := order.buildLines(lines)
	if err != nil {
		return nil, err
	}
	order.Lines = built
	order.recalculateTotals()

	order.AddDomainEvent(NewSalesOrderCreatedEvent(order))
	return order, nil
}

func (o *SalesOrder) buildLines(inputs []LineInput) ([]SalesOrderLine, error) {
	if len(inputs) == 0 {
		return nil, shared.NewValidationError("NO_ITEMS", "Order must have at least one item")
	}
	lines := make([]SalesOrderLine, 0, len(inputs))
	for i, in := range inputs {
		line, err := NewSalesOrderLine(o.ID, i+1, in)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *line)
	}
	return lines, nil
}

// ReplaceLines swaps all lines for the given ones and recomputes the header
func (o *SalesOrder) ReplaceLines(inputs []LineInput) error {
	if !o.Status.AllowsLineChanges() {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot modify items of an order in %s status", o.Status))
	}
	lines, err := o.buildLines(inputs)
	if err != nil {
		return err
	}
	o.Lines = lines
	o.recalculateTotals()
	o.touch()

	o.AddDomainEvent(NewSalesOrderItemsUpdatedEvent(o))
	return nil
}

// SetTaxTotal sets the tax amount and recomputes the total
func (o *SalesOrder) SetTaxTotal(tax decimal.Decimal) error {
	if tax.IsNegative() {
		return shared.NewValidationError("INVALID_TAX", "Tax cannot be negative")
	}
	if !o.Status.AllowsLineChanges() {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot change tax of an order in %s status", o.Status))
	}
	o.TaxTotal = tax
	o.recalculateTotals()
	o.touch()
	return nil
}

// SetDeliveryDetails sets optional shipping fields
func (o *SalesOrder) SetDeliveryDetails(expected *time.Time, address, notes string) {
	o.ExpectedDeliveryDate = expected
	o.ShippingAddress = address
	o.Notes = notes
}

// Submit moves the order from draft to pending
func (o *SalesOrder) Submit() error {
	if err := o.transition(OrderStatusPending); err != nil {
		return err
	}
	o.AddDomainEvent(NewSalesOrderStatusChangedEvent(o, OrderStatusDraft))
	return nil
}

// Approve moves the order from pending to approved and stamps the approver
func (o *SalesOrder) Approve(approverID uuid.UUID) error {
	if approverID == uuid.Nil {
		return shared.NewValidationError("INVALID_APPROVER", "Approver ID is required")
	}
	if err := o.transition(OrderStatusApproved); err != nil {
		return err
	}
	now := time.Now()
	o.ApprovedBy = &approverID
	o.ApprovedAt = &now

	o.AddDomainEvent(NewSalesOrderApprovedEvent(o))
	return nil
}

// StartProcessing moves an approved order to processing
func (o *SalesOrder) StartProcessing() error {
	if err := o.transition(OrderStatusProcessing); err != nil {
		return err
	}
	o.AddDomainEvent(NewSalesOrderStatusChangedEvent(o, OrderStatusApproved))
	return nil
}

// MarkShipped moves a processing order to shipped
func (o *SalesOrder) MarkShipped() error {
	if err := o.transition(OrderStatusShipped); err != nil {
		return err
	}
	o.AddDomainEvent(NewSalesOrderStatusChangedEvent(o, OrderStatusProcessing))
	return nil
}

// MarkDelivered moves a shipped order to delivered
func (o *SalesOrder) MarkDelivered() error {
	if err := o.transition(OrderStatusDelivered); err != nil {
		return err
	}
	o.AddDomainEvent(NewSalesOrderStatusChangedEvent(o, OrderStatusShipped))
	return nil
}

// Cancel cancels the order. Cancelling a cancelled order is a no-op.
func (o *SalesOrder) Cancel(reason string) error {
	if o.Status == OrderStatusCancelled {
		return nil
	}
	from := o.Status
	if err := o.transition(OrderStatusCancelled); err != nil {
		return err
	}
	now := time.Now()
	o.CancelReason = strings.TrimSpace(reason)
	o.CancelledAt = &now

	o.AddDomainEvent(NewSalesOrderCancelledEvent(o, from))
	return nil
}

// transition checks legality first so a rejected move leaves every field as it was
func (o *SalesOrder) transition(target OrderStatus) error {
	if !o.Status.CanTransitionTo(target) {
		return shared.NewInvalidTransitionError("sales order", o.Status, target)
	}
	o.Status = target
	o.touch()
	return nil
}

func (o *SalesOrder) touch() {
	o.UpdatedAt = time.Now()
	o.IncrementVersion()
}

func (o *SalesOrder) recalculateTotals() {
	subtotal := decimal.Zero
	discount := decimal.Zero
	for _, l := range o.Lines {
		subtotal = subtotal.Add(l.GrossAmount())
		discount = discount.Add(l.DiscountAmount)
	}
	o.Subtotal = subtotal
	o.DiscountTotal = discount
	o.TotalAmount = subtotal.Sub(discount).Add(o.TaxTotal)
	o.ItemCount = len(o.Lines)
}

// LinesTotal returns the sum of line totals
func (o *SalesOrder) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.LineTotal)
	}
	return total
}

// GetLine returns the line with the given ID, or nil
func (o *SalesOrder) GetLine(lineID uuid.UUID) *SalesOrderLine {
	for i := range o.Lines {
		if o.Lines[i].ID == lineID {
			return &o.Lines[i]
		}
	}
	return nil
}

// IsCancelled reports whether the order was cancelled
func (o *SalesOrder) IsCancelled() bool {
	return o.Status == OrderStatusCancelled
}

// CanShip reports whether a delivery may be created for the order. A
// shipped order can still ship whatever earlier deliveries left behind.
func (o *SalesOrder) CanShip() bool {
	switch o.Status {
	case OrderStatusApproved, OrderStatusProcessing, OrderStatusShipped:
		return true
	}
	return false
}

// Allocation is the part of one order line handed to a new delivery
type Allocation struct {
	Line     *SalesOrderLine
	Quantity decimal.Decimal
}

// Allocate claims the unallocated remainder of every line for a new
// delivery. Lines already fully claimed are skipped.
func (o *SalesOrder) Allocate() ([]Allocation, error) {
	if !o.CanShip() {
		return nil, shared.NewValidationError("ORDER_NOT_SHIPPABLE",
			fmt.Sprintf("Order %s is %s; only approved, processing or shipped orders can be shipped", o.OrderNumber, o.Status))
	}
	var out []Allocation
	for i := range o.Lines {
		l := &o.Lines[i]
		remaining := l.UnallocatedQuantity()
		if !remaining.IsPositive() {
			continue
		}
		out = append(out, Allocation{Line: l, Quantity: remaining})
	}
	if len(out) == 0 {
		return nil, shared.NewValidationError("NOTHING_TO_SHIP",
			"Every line of order "+o.OrderNumber+" is already on a delivery")
	}
	for _, a := range out {
		a.Line.AllocatedQuantity = a.Line.Quantity
	}
	o.touch()
	return out, nil
}

// Release hands back quantity claimed by a delivery that failed or came back
func (o *SalesOrder) Release(lineID uuid.UUID, quantity decimal.Decimal) error {
	l, err := o.fulfilmentLine(lineID)
	if err != nil {
		return err
	}
	if quantity.IsNegative() || quantity.GreaterThan(l.InFlightQuantity()) {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot release %s of %s: only %s is in flight",
			quantity, l.ProductName, l.InFlightQuantity()))
	}
	l.AllocatedQuantity = l.AllocatedQuantity.Sub(quantity)
	o.touch()
	return nil
}

// ValueDelivered books delivered units of a line that a delivery carried
// shipped units of, and returns the amount to bill for them. Undelivered
// units go back to the line's unallocated remainder. Billing is cumulative:
// once a line is fully delivered its billed amount is exactly its share of
// TotalAmount, tax included, whatever the delivery split.
func (o *SalesOrder) ValueDelivered(lineID uuid.UUID, shipped, delivered decimal.Decimal) (decimal.Decimal, error) {
	if o.IsCancelled() {
		return decimal.Zero, shared.NewInvalidStateError("Order " + o.OrderNumber + " was cancelled; its deliveries cannot complete")
	}
	l, err := o.fulfilmentLine(lineID)
	if err != nil {
		return decimal.Zero, err
	}
	if delivered.IsNegative() || delivered.GreaterThan(shipped) || shipped.GreaterThan(l.InFlightQuantity()) {
		return decimal.Zero, shared.NewInvalidStateError(fmt.Sprintf("Delivery of %s/%s %s does not match the %s in flight",
			delivered, shipped, l.ProductName, l.InFlightQuantity()))
	}

	billable := o.billableAmount(l)
	deliveredAfter := l.DeliveredQuantity.Add(delivered)
	billedAfter := prorate(billable, deliveredAfter, l.Quantity)
	amount := billedAfter.Sub(l.BilledAmount)

	l.DeliveredQuantity = deliveredAfter
	l.BilledAmount = billedAfter
	l.AllocatedQuantity = l.AllocatedQuantity.Sub(shipped.Sub(delivered))
	o.touch()
	return amount, nil
}

// IsFullyDelivered reports whether every ordered unit was handed over
func (o *SalesOrder) IsFullyDelivered() bool {
	if len(o.Lines) == 0 {
		return false
	}
	for i := range o.Lines {
		if o.Lines[i].DeliveredQuantity.LessThan(o.Lines[i].Quantity) {
			return false
		}
	}
	return true
}

// BilledTotal sums what deliveries have billed so far
func (o *SalesOrder) BilledTotal() decimal.Decimal {
	total := decimal.Zero
	for i := range o.Lines {
		total = total.Add(o.Lines[i].BilledAmount)
	}
	return total
}

// BillableAmounts splits TotalAmount over the lines: each line's total plus
// a share of TaxTotal proportional to it. The last line takes the rounding
// remainder, so the amounts always add up to TotalAmount.
func (o *SalesOrder) BillableAmounts() []decimal.Decimal {
	out := make([]decimal.Decimal, len(o.Lines))
	if len(o.Lines) == 0 {
		return out
	}
	linesTotal := o.LinesTotal()
	taxLeft := o.TaxTotal
	last := len(o.Lines) - 1
	for i := range o.Lines {
		share := taxLeft
		if i < last && linesTotal.IsPositive() {
			share = o.TaxTotal.Mul(o.Lines[i].LineTotal).Div(linesTotal).Round(4)
		} else if i < last {
			share = decimal.Zero
		}
		taxLeft = taxLeft.Sub(share)
		out[i] = o.Lines[i].LineTotal.Add(share)
	}
	return out
}

func (o *SalesOrder) billableAmount(l *SalesOrderLine) decimal.Decimal {
	amounts := o.BillableAmounts()
	for i := range o.Lines {
		if o.Lines[i].ID == l.ID {
			return amounts[i]
		}
	}
	return l.LineTotal
}

func (o *SalesOrder) fulfilmentLine(lineID uuid.UUID) (*SalesOrderLine, error) {
	l := o.GetLine(lineID)
	if l == nil {
		return nil, shared.NewValidationError("INVALID_ORDER_LINE",
			fmt.Sprintf("Line %s is not on order %s", lineID, o.OrderNumber))
	}
	return l, nil
}

// prorate returns amount * part / whole to 4 places, and amount itself once
// part reaches whole
func prorate(amount, part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() || part.GreaterThanOrEqual(whole) {
		return amount
	}
	return amount.Mul(part).Div(whole).Round(4)
}
