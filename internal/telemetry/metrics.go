package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/stocktide/stocktide"

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Resolution metrics
	ResolutionsTotal      metric.Int64Counter
	ResolutionErrorsTotal metric.Int64Counter
	ResolutionDuration    metric.Float64Histogram
	FallbacksTotal        metric.Int64Counter

	// Heal metrics
	HealsTotal         metric.Int64Counter
	HealConflictsTotal metric.Int64Counter

	// Migration metrics
	MigrationsTotal        metric.Int64Counter
	MigrationsPartialTotal metric.Int64Counter

	// Reconciliation metrics
	ReconciliationsTotal metric.Int64Counter
	OrphansRemovedTotal  metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.ResolutionsTotal, _ = meter.Int64Counter(
		"stocktide.identity.resolutions.total",
		metric.WithDescription("Total number of session resolutions completed"),
		metric.WithUnit("{resolution}"),
	)

	m.ResolutionErrorsTotal, _ = meter.Int64Counter(
		"stocktide.identity.resolution.errors.total",
		metric.WithDescription("Total number of resolutions surfaced as errors"),
		metric.WithUnit("{error}"),
	)

	m.ResolutionDuration, _ = meter.Float64Histogram(
		"stocktide.identity.resolution.duration",
		metric.WithDescription("Duration of session resolutions"),
		metric.WithUnit("ms"),
	)

	m.FallbacksTotal, _ = meter.Int64Counter(
		"stocktide.identity.fallbacks.total",
		metric.WithDescription("Total number of degraded fallback identities built"),
		metric.WithUnit("{identity}"),
	)

	m.HealsTotal, _ = meter.Int64Counter(
		"stocktide.identity.heals.total",
		metric.WithDescription("Total number of successful profile heals"),
		metric.WithUnit("{heal}"),
	)

	m.HealConflictsTotal, _ = meter.Int64Counter(
		"stocktide.identity.heal.conflicts.total",
		metric.WithDescription("Total number of heals that lost a write race and re-read"),
		metric.WithUnit("{conflict}"),
	)

	m.MigrationsTotal, _ = meter.Int64Counter(
		"stocktide.identity.migrations.total",
		metric.WithDescription("Total number of completed legacy identifier migrations"),
		metric.WithUnit("{migration}"),
	)

	m.MigrationsPartialTotal, _ = meter.Int64Counter(
		"stocktide.identity.migrations.partial.total",
		metric.WithDescription("Total number of migrations left partially completed"),
		metric.WithUnit("{migration}"),
	)

	m.ReconciliationsTotal, _ = meter.Int64Counter(
		"stocktide.identity.reconciliations.total",
		metric.WithDescription("Total number of reconciliation passes run"),
		metric.WithUnit("{pass}"),
	)

	m.OrphansRemovedTotal, _ = meter.Int64Counter(
		"stocktide.identity.orphans.removed.total",
		metric.WithDescription("Total number of duplicate tenant records removed"),
		metric.WithUnit("{tenant}"),
	)

	return m
}
