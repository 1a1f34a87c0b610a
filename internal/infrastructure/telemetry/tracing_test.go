package telemetry

import (
	"context"
	"testing"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer installs an in-memory recorder as the global provider for
// the duration of the test.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(attrs []attribute.KeyValue) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)
	tenantID := uuid.New()
	orderID := uuid.New()

	ctx, span := StartServiceSpan(context.Background(), "sales_order", "approve", tenantID,
		WithAttribute(SpanAttrOrderID, orderID))
	assert.NotEmpty(t, GetTraceID(ctx))
	End(span, nil)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "sales_order.approve", spans[0].Name())
	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, tenantID.String(), attrs[SpanAttrTenantID])
	assert.Equal(t, orderID.String(), attrs[SpanAttrOrderID])
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestEnd_RecordsDomainErrorKind(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := StartSpan(context.Background(), "inventory.adjust")
	End(span, shared.NewInsufficientStockError("only 3 on hand"))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", attrMap(spans[0].Attributes())[SpanAttrErrorKind])
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestSetAttributesAndEvents(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := StartSpan(context.Background(), "delivery.complete")
	SetAttributes(span,
		SpanAttrQuantity, decimal.RequireFromString("12.5"),
		SpanAttrAmount, 1500,
		42, "ignored non-string key",
		"dangling",
	)
	AddEvent(span, "ledger_posted", "lines", int64(3), "settled", true)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "12.5", attrs[SpanAttrQuantity])
	assert.Equal(t, "1500", attrs[SpanAttrAmount])
	assert.NotContains(t, attrs, "dangling")

	events := spans[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "ledger_posted", events[0].Name)
	assert.Equal(t, "3", attrMap(events[0].Attributes)["lines"])
}

func TestHelpersTolerateNil(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordError(nil, assert.AnError)
		SetAttributes(nil, "k", "v")
		AddEvent(nil, "e")
	})
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestToAttribute(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		value any
		want  string
	}{
		{"x", "x"},
		{7, "7"},
		{int64(8), "8"},
		{1.5, "1.5"},
		{true, "true"},
		{id, id.String()},
		{decimal.NewFromInt(99), "99"},
		{[]string{"a", "b"}, `["a","b"]`},
		{struct{ A int }{1}, "{1}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toAttribute("k", tt.value).Value.Emit())
	}
}
