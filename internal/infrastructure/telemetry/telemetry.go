package telemetry

import (
	"context"
	"errors"

	"github.com/erp/distribution/internal/infrastructure/config"
	"github.com/erp/distribution/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Providers bundles the tracer, meter and logger providers with the
// business metrics built on them.
type Providers struct {
	Tracer   *TracerProvider
	Meter    *MeterProvider
	Logs     *LoggerProvider
	Business *BusinessMetrics

	cfg       config.TelemetryConfig
	dbMetrics *DBMetrics
	logger    *zap.Logger
}

// Setup builds every provider from cfg. With cfg.Enabled false all three
// providers are no-ops and BusinessMetrics records into the global no-op meter.
func Setup(ctx context.Context, cfg config.TelemetryConfig, log *zap.Logger) (*Providers, error) {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Providers{cfg: cfg, logger: log}

	var err error
	p.Tracer, err = NewTracerProvider(ctx, Config{
		Enabled:           cfg.Enabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		SamplingRatio:     cfg.SamplingRatio,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}
	p.Meter, err = NewMeterProvider(ctx, MetricsConfig{
		Enabled:           cfg.Enabled && cfg.MetricsEnabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ExportInterval:    cfg.MetricsInterval,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}, log)
	if err != nil {
		return nil, errors.Join(err, p.Tracer.Shutdown(ctx))
	}
	p.Logs, err = NewLoggerProvider(ctx, LogsConfig{
		Enabled:           cfg.Enabled && cfg.LogsEnabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
		Level:             logger.ParseLevel(cfg.LogsLevel),
	}, log)
	if err != nil {
		return nil, errors.Join(err, p.Meter.Shutdown(ctx), p.Tracer.Shutdown(ctx))
	}
	p.Business, err = NewBusinessMetrics(p.Meter.Meter(TracerName))
	if err != nil {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}
	return p, nil
}

// InstrumentDB installs query tracing and database metrics on db
func (p *Providers) InstrumentDB(db *gorm.DB) error {
	tracing := NewDBTracingPlugin(DBTracingConfig{
		Enabled:         p.cfg.Enabled && p.cfg.DBTraceEnabled,
		LogFullSQL:      p.cfg.DBLogFullSQL,
		SlowQueryThresh: p.cfg.DBSlowQueryThresh,
	}, p.logger)
	if err := tracing.Register(db); err != nil {
		return err
	}
	m, err := RegisterDBMetrics(db, p.Meter, DBMetricsConfig{
		Enabled:            p.cfg.MetricsEnabled,
		SlowQueryThreshold: p.cfg.DBSlowQueryThresh,
	}, p.logger)
	if err != nil {
		return err
	}
	p.dbMetrics = m
	return nil
}

// Shutdown flushes and stops every provider
func (p *Providers) Shutdown(ctx context.Context) error {
	if p.dbMetrics != nil {
		p.dbMetrics.Stop()
	}
	return errors.Join(
		p.Logs.Shutdown(ctx),
		p.Meter.Shutdown(ctx),
		p.Tracer.Shutdown(ctx),
	)
}
