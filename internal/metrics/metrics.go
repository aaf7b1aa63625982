// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TestResolutions counts test name resolutions by match method.
	TestResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "psych_report_test_resolutions_total",
		Help: "Test name resolutions by match method.",
	}, []string{"method"})

	// DescriptorSources counts resolved descriptors by cascade tier.
	DescriptorSources = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "psych_report_descriptor_resolutions_total",
		Help: "Resolved score descriptors by cascade tier.",
	}, []string{"source"})

	ReportsRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "psych_report_sections_rendered_total",
		Help: "Report sections rendered from a template.",
	})

	MissingTemplates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "psych_report_missing_templates_total",
		Help: "Tests rendered without a matching template.",
	})

	// LearningOutcomes counts learning runs per test group by outcome:
	// created, merged, unchanged, conflict or failed.
	LearningOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "psych_report_learning_outcomes_total",
		Help: "Test bank learning outcomes per test group.",
	}, []string{"outcome"})

	RenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "psych_report_render_duration_seconds",
		Help:    "Time spent composing a full report.",
		Buckets: prometheus.DefBuckets,
	})
)
