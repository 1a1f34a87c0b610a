package telemetry

import (
	"context"
	"testing"

	"github.com/erp/distribution/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func TestSetup_Disabled(t *testing.T) {
	ctx := context.Background()
	p, err := Setup(ctx, config.TelemetryConfig{Enabled: false, ServiceName: "erp-test"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, p.Tracer.IsEnabled())
	assert.False(t, p.Meter.IsEnabled())
	assert.False(t, p.Logs.IsEnabled())
	require.NotNil(t, p.Business)
	assert.NotPanics(t, func() {
		p.Business.RecordOrderCreated(ctx, uuid.New(), decimal.NewFromInt(1))
	})

	db := openTestDB(t)
	require.NoError(t, p.InstrumentDB(db))
	require.NoError(t, db.Create(&widget{Name: "bolt"}).Error)

	assert.NoError(t, p.Shutdown(ctx))
}

func TestSetup_NilLogger(t *testing.T) {
	p, err := Setup(context.Background(), config.TelemetryConfig{}, nil)
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestLoggerProvider_ZapCoreDisabled(t *testing.T) {
	var nilProvider *LoggerProvider
	core := nilProvider.ZapCore()
	assert.False(t, core.Enabled(zapcore.ErrorLevel))

	lp, err := NewLoggerProvider(context.Background(), LogsConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, lp.ZapCore().Enabled(zapcore.ErrorLevel))
	assert.NoError(t, lp.ForceFlush(context.Background()))
}

func TestLevelFilterCore(t *testing.T) {
	inner := zapcore.NewCore(
		zapcore.NewJSONEncoder(zapcore.EncoderConfig{}),
		zapcore.AddSync(&discard{}),
		zapcore.DebugLevel,
	)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.WarnLevel))
	assert.Nil(t, core.Check(zapcore.Entry{Level: zapcore.InfoLevel}, nil))
	assert.NotNil(t, core.Check(zapcore.Entry{Level: zapcore.ErrorLevel}, nil))

	child, ok := core.With(nil).(*levelFilterCore)
	require.True(t, ok)
	assert.Equal(t, zapcore.WarnLevel, child.minLevel)
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOn")
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOff")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}

type discard struct{}

func (*discard) Write(p []byte) (int, error) { return len(p), nil }
