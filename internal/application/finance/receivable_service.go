package finance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/erp/distribution/internal/application/txscope"
	"github.com/erp/distribution/internal/application/validate"
	"github.com/erp/distribution/internal/domain/finance"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/domain/trade"
	"github.com/erp/distribution/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	serviceName = "receivable"

	defaultPaymentLockTTL = 30 * time.Second
)

// ReceivableService bills customers and reconciles their payments
type ReceivableService struct {
	scope           txscope.Scope
	receivableRepo  finance.ReceivableRepository
	paymentRepo     finance.PaymentRepository
	customers       trade.CustomerReader
	receivablePfx   string
	paymentPfx      string
	defaultTermDays int
	clock           shared.Clock
	locker          shared.Locker
	lockTTL         time.Duration
	eventPublisher  shared.EventPublisher
	metrics         *telemetry.BusinessMetrics
	logger          *zap.Logger
}

// NewReceivableService creates a new ReceivableService
func NewReceivableService(
	scope txscope.Scope,
	receivableRepo finance.ReceivableRepository,
	paymentRepo finance.PaymentRepository,
	customers trade.CustomerReader,
	receivablePrefix, paymentPrefix string,
	defaultTermDays int,
	logger *zap.Logger,
) *ReceivableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if receivablePrefix == "" {
		receivablePrefix = "CN"
	}
	if paymentPrefix == "" {
		paymentPrefix = "TT"
	}
	return &ReceivableService{
		scope:           scope,
		receivableRepo:  receivableRepo,
		paymentRepo:     paymentRepo,
		customers:       customers,
		receivablePfx:   receivablePrefix,
		paymentPfx:      paymentPrefix,
		defaultTermDays: defaultTermDays,
		clock:           shared.SystemClock{},
		lockTTL:         defaultPaymentLockTTL,
		logger:          logger.Named("receivable_service"),
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ReceivableService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the business metrics recorder
func (s *ReceivableService) SetMetrics(metrics *telemetry.BusinessMetrics) {
	s.metrics = metrics
}

// SetClock replaces the clock used for due dates and aging
func (s *ReceivableService) SetClock(clock shared.Clock) {
	if clock != nil {
		s.clock = clock
	}
}

// SetLocker serialises payments sharing a reference across processes
func (s *ReceivableService) SetLocker(locker shared.Locker, ttl time.Duration) {
	s.locker = locker
	if ttl > 0 {
		s.lockTTL = ttl
	}
}

// Create bills a customer. A delivery can be billed only once.
func (s *ReceivableService) Create(ctx context.Context, tenantID uuid.UUID, req CreateReceivableRequest) (resp *ReceivableResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "create", tenantID,
		telemetry.WithAttribute("customer_id", req.CustomerID),
	)
	defer func() { telemetry.End(span, err) }()

	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	dueDate, err := s.dueDate(ctx, tenantID, req.CustomerID, req.DueDate)
	if err != nil {
		return nil, err
	}
	if req.DeliveryID != nil {
		existing, err := s.receivableRepo.FindByDelivery(ctx, tenantID, *req.DeliveryID)
		switch {
		case err == nil:
			return nil, duplicateDelivery(existing)
		case !errors.Is(err, shared.ErrNotFound):
			return nil, err
		}
	}

	var receivable *finance.Receivable
	err = s.scope.Execute(ctx, func(repos txscope.Repositories) error {
		number, err := shared.NextDocumentNumber(ctx, repos.Sequences(), tenantID, s.receivablePfx, s.clock.Now())
		if err != nil {
			return err
		}
		receivable, err = finance.NewReceivable(tenantID, number, req.CustomerID, req.Amount, dueDate)
		if err != nil {
			return err
		}
		receivable.LinkSource(req.OrderID, req.DeliveryID)
		receivable.Notes = strings.TrimSpace(req.Notes)
		return repos.Receivables().Save(ctx, receivable)
	})
	if err != nil {
		if req.DeliveryID != nil && shared.IsKind(err, shared.KindConcurrencyConflict) {
			err = duplicateDelivery(nil)
		}
		s.logger.Warn("receivable creation rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.String("customer_id", req.CustomerID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("receivable created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("receivable_id", receivable.ID.String()),
		zap.String("receivable_number", receivable.ReceivableNumber),
		zap.String("amount", receivable.Amount.String()),
		zap.Time("due_date", receivable.DueDate),
	)
	s.publish(ctx, receivable)

	out := ToReceivableResponse(receivable)
	return &out, nil
}

func (s *ReceivableService) dueDate(ctx context.Context, tenantID, customerID uuid.UUID, requested *time.Time) (time.Time, error) {
	if s.customers == nil {
		if requested != nil {
			return *requested, nil
		}
		return s.clock.Now().AddDate(0, 0, s.defaultTermDays), nil
	}
	customer, err := s.customers.GetCustomer(ctx, tenantID, customerID)
	if err != nil {
		return time.Time{}, err
	}
	if requested != nil {
		return *requested, nil
	}
	return customer.DueDateFrom(s.clock.Now(), s.defaultTermDays), nil
}

func duplicateDelivery(existing *finance.Receivable) error {
	msg := "Delivery already has a receivable"
	if existing != nil {
		msg = "Delivery already billed by " + existing.ReceivableNumber
	}
	return shared.NewValidationError("DUPLICATE_DELIVERY", msg)
}

// IsDuplicateDelivery reports whether err rejects a second receivable for a delivery
func IsDuplicateDelivery(err error) bool {
	var de *shared.DomainError
	return errors.As(err, &de) && de.Code == "DUPLICATE_DELIVERY"
}

// RecordPayment applies a payment to an open receivable. The payment row and
// the receivable update commit together. A reference already recorded for
// the receivable returns the original payment and changes nothing.
func (s *ReceivableService) RecordPayment(
	ctx context.Context,
	tenantID, actorID, receivableID uuid.UUID,
	req RecordPaymentRequest,
) (result *PaymentResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "record_payment", tenantID,
		telemetry.WithAttribute("receivable_id", receivableID),
		telemetry.WithAttribute("payment_method", req.Method),
	)
	defer func() { telemetry.End(span, err) }()

	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	reference := strings.TrimSpace(req.Reference)
	if reference != "" {
		release, err := s.lockReference(ctx, tenantID, receivableID, reference)
		if err != nil {
			return nil, err
		}
		defer release()

		replay, err := s.replay(ctx, tenantID, receivableID, reference, req.Method)
		if err != nil || replay != nil {
			return replay, err
		}
	}

	receivable, err := s.load(ctx, tenantID, receivableID)
	if err != nil {
		return nil, err
	}
	paidAt := s.clock.Now()
	if req.PaymentDate != nil {
		paidAt = *req.PaymentDate
	}
	if err := receivable.ApplyPayment(req.Amount, paidAt); err != nil {
		s.metrics.RecordPayment(ctx, tenantID, req.Method, telemetry.PaymentRejected, req.Amount)
		s.logger.Warn("payment rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.String("receivable_id", receivableID.String()),
			zap.String("amount", req.Amount.String()),
			zap.Error(err),
		)
		return nil, err
	}

	var payment *finance.Payment
	err = s.scope.Execute(ctx, func(repos txscope.Repositories) error {
		number, err := shared.NextDocumentNumber(ctx, repos.Sequences(), tenantID, s.paymentPfx, s.clock.Now())
		if err != nil {
			return err
		}
		payment, err = finance.NewPayment(tenantID, number, receivable.ID, req.Amount, finance.PaymentMethod(req.Method), paidAt)
		if err != nil {
			return err
		}
		collector := uuid.Nil
		if req.CollectedBy != nil {
			collector = *req.CollectedBy
		}
		payment.WithReference(reference).WithCollector(collector, req.Latitude, req.Longitude)
		payment.Notes = strings.TrimSpace(req.Notes)
		if actorID != uuid.Nil {
			payment.CreatedBy = &actorID
		}
		if err := repos.Payments().Create(ctx, payment); err != nil {
			return err
		}
		return repos.Receivables().SaveWithLock(ctx, receivable)
	})
	if err != nil {
		// A concurrent request carrying the same reference won the insert.
		if reference != "" && shared.IsKind(err, shared.KindConcurrencyConflict) {
			if replay, rerr := s.replay(ctx, tenantID, receivableID, reference, req.Method); rerr == nil && replay != nil {
				return replay, nil
			}
			s.metrics.RecordLockConflict(ctx, tenantID, finance.AggregateTypeReceivable)
		}
		s.metrics.RecordPayment(ctx, tenantID, req.Method, telemetry.PaymentRejected, req.Amount)
		s.logger.Warn("payment not recorded",
			zap.String("tenant_id", tenantID.String()),
			zap.String("receivable_id", receivableID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordPayment(ctx, tenantID, req.Method, telemetry.PaymentRecorded, req.Amount)
	s.logger.Info("payment recorded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("receivable_id", receivable.ID.String()),
		zap.String("payment_number", payment.PaymentNumber),
		zap.String("amount", payment.Amount.String()),
		zap.String("remaining", receivable.RemainingAmount.String()),
		zap.String("status", receivable.Status.String()),
	)
	s.publish(ctx, receivable)

	return &PaymentResult{
		Payment:    ToPaymentResponse(payment),
		Receivable: ToReceivableResponse(receivable),
	}, nil
}

func (s *ReceivableService) lockReference(ctx context.Context, tenantID, receivableID uuid.UUID, reference string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	key := "payment:" + tenantID.String() + ":" + receivableID.String() + ":" + reference
	lock, err := s.locker.Obtain(ctx, key, s.lockTTL)
	if err != nil {
		if errors.Is(err, shared.ErrLockNotObtained) {
			return nil, shared.NewConcurrencyConflictError("payment " + reference)
		}
		return nil, shared.NewUpstreamUnavailableError(err)
	}
	return func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("release payment lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// replay returns the stored result for a reference, or nil when the
// reference is new
func (s *ReceivableService) replay(ctx context.Context, tenantID, receivableID uuid.UUID, reference, method string) (*PaymentResult, error) {
	payment, err := s.paymentRepo.FindByReference(ctx, tenantID, receivableID, reference)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	receivable, err := s.load(ctx, tenantID, receivableID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPayment(ctx, tenantID, method, telemetry.PaymentReplayed, payment.Amount)
	s.logger.Info("payment replayed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("receivable_id", receivableID.String()),
		zap.String("payment_number", payment.PaymentNumber),
		zap.String("reference", reference),
	)
	return &PaymentResult{
		Payment:    ToPaymentResponse(payment),
		Receivable: ToReceivableResponse(receivable),
		Replayed:   true,
	}, nil
}

// WriteOff closes an open receivable as uncollectable
func (s *ReceivableService) WriteOff(ctx context.Context, tenantID, receivableID uuid.UUID, reason string) (resp *ReceivableResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "write_off", tenantID,
		telemetry.WithAttribute("receivable_id", receivableID),
	)
	defer func() { telemetry.End(span, err) }()

	receivable, err := s.load(ctx, tenantID, receivableID)
	if err != nil {
		return nil, err
	}
	if err := receivable.WriteOff(reason); err != nil {
		return nil, err
	}
	err = s.scope.Execute(ctx, func(repos txscope.Repositories) error {
		return repos.Receivables().SaveWithLock(ctx, receivable)
	})
	if err != nil {
		if shared.IsKind(err, shared.KindConcurrencyConflict) {
			s.metrics.RecordLockConflict(ctx, tenantID, finance.AggregateTypeReceivable)
		}
		return nil, err
	}

	s.logger.Info("receivable written off",
		zap.String("tenant_id", tenantID.String()),
		zap.String("receivable_id", receivableID.String()),
		zap.String("remaining", receivable.RemainingAmount.String()),
		zap.String("reason", receivable.WriteOffReason),
	)
	s.publish(ctx, receivable)

	out := ToReceivableResponse(receivable)
	return &out, nil
}

// GetByID retrieves a receivable
func (s *ReceivableService) GetByID(ctx context.Context, tenantID, receivableID uuid.UUID) (*ReceivableResponse, error) {
	receivable, err := s.load(ctx, tenantID, receivableID)
	if err != nil {
		return nil, err
	}
	out := ToReceivableResponse(receivable)
	return &out, nil
}

// List returns receivables ordered by due date
func (s *ReceivableService) List(ctx context.Context, tenantID uuid.UUID, filter ReceivableListFilter) ([]ReceivableResponse, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validate.Struct(filter); err != nil {
		return nil, err
	}
	f := finance.ReceivableFilter{CustomerID: filter.CustomerID, Page: filter.Page, PageSize: filter.PageSize}
	switch {
	case filter.Status != "":
		f.Statuses = []finance.ReceivableStatus{finance.ReceivableStatus(filter.Status)}
	case filter.OpenOnly:
		f.Statuses = finance.OpenReceivableStatuses
	}
	receivables, err := s.receivableRepo.FindAllForTenant(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}
	return ToReceivableResponses(receivables), nil
}

// ListPayments returns a receivable's payments in the order they were recorded
func (s *ReceivableService) ListPayments(ctx context.Context, tenantID, receivableID uuid.UUID) ([]PaymentResponse, error) {
	if _, err := s.load(ctx, tenantID, receivableID); err != nil {
		return nil, err
	}
	payments, err := s.paymentRepo.FindByReceivable(ctx, tenantID, receivableID)
	if err != nil {
		return nil, err
	}
	out := make([]PaymentResponse, len(payments))
	for i := range payments {
		out[i] = ToPaymentResponse(&payments[i])
	}
	return out, nil
}

// GetCustomerBalance totals a customer's open receivables
func (s *ReceivableService) GetCustomerBalance(ctx context.Context, tenantID, customerID uuid.UUID) (*CustomerBalanceResponse, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	receivables, err := s.receivableRepo.FindAllForTenant(ctx, tenantID, finance.ReceivableFilter{
		CustomerID: &customerID,
		Statuses:   finance.OpenReceivableStatuses,
	})
	if err != nil {
		return nil, err
	}

	b := finance.BuildCustomerBalance(receivables, s.clock.Now())
	s.metrics.RecordOutstanding(ctx, tenantID, b.TotalRemaining)
	return &CustomerBalanceResponse{
		CustomerID:       customerID,
		TotalAmount:      b.TotalAmount,
		TotalPaid:        b.TotalPaid,
		TotalRemaining:   b.TotalRemaining,
		OverdueAmount:    b.OverdueAmount,
		ReceivablesCount: b.ReceivablesCount,
		OverdueCount:     b.OverdueCount,
	}, nil
}

// GetAgingReport buckets open balances by days past due as of the
// service clock. customerID narrows the report to one customer.
func (s *ReceivableService) GetAgingReport(ctx context.Context, tenantID uuid.UUID, customerID *uuid.UUID) (*AgingReportResponse, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	receivables, err := s.receivableRepo.FindAllForTenant(ctx, tenantID, finance.ReceivableFilter{
		CustomerID: customerID,
		Statuses:   finance.OpenReceivableStatuses,
	})
	if err != nil {
		return nil, err
	}
	out := toAgingReportResponse(finance.BuildAgingReport(receivables, s.clock.Now()), customerID)
	return &out, nil
}

// GetStats summarises collection over every receivable of the tenant
func (s *ReceivableService) GetStats(ctx context.Context, tenantID uuid.UUID) (*ReceivableStatsResponse, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	receivables, err := s.receivableRepo.FindAllForTenant(ctx, tenantID, finance.ReceivableFilter{})
	if err != nil {
		return nil, err
	}
	st := finance.BuildReceivableStats(receivables, s.clock.Now())
	return &ReceivableStatsResponse{
		TotalAmount:          st.TotalAmount,
		TotalPaid:            st.TotalPaid,
		TotalRemaining:       st.TotalRemaining,
		OverdueAmount:        st.OverdueAmount,
		CollectionRate:       st.CollectionRate,
		AverageDaysToCollect: st.AverageDaysToCollect,
	}, nil
}

func (s *ReceivableService) load(ctx context.Context, tenantID, receivableID uuid.UUID) (*finance.Receivable, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	receivable, err := s.receivableRepo.FindByIDForTenant(ctx, tenantID, receivableID)
	if err != nil {
		return nil, err
	}
	if err := receivable.BelongsTo(tenantID); err != nil {
		return nil, err
	}
	return receivable, nil
}

func (s *ReceivableService) publish(ctx context.Context, receivable *finance.Receivable) {
	if err := shared.PublishAndClear(ctx, s.eventPublisher, receivable); err != nil {
		s.logger.Warn("publish receivable events",
			zap.String("receivable_id", receivable.ID.String()),
			zap.Error(err),
		)
	}
}
