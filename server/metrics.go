// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of gateway requests by vendor, operation, and outcome",
		},
		[]string{"vendor", "operation", "status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Gateway request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)
	promTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_llm_tokens_total",
			Help: "Total tokens metered, split by prompt and completion",
		},
		[]string{"model", "kind"},
	)
	promCostCentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_usage_cost_cents_total",
			Help: "Total metered cost in integer cents",
		},
		[]string{"model"},
	)
	promEstimationFallback = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_estimation_fallback_total",
			Help: "Requests whose token usage had to be estimated heuristically",
		},
		[]string{"model"},
	)
	promRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_rate_limited_total",
			Help: "Requests rejected by the per-key rate limiter",
		},
	)
	promBudgetRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_budget_rejections_total",
			Help: "Requests rejected because the key's budget window was exhausted",
		},
	)
)

func init() {
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promTokensTotal)
	prometheus.MustRegister(promCostCentsTotal)
	prometheus.MustRegister(promEstimationFallback)
	prometheus.MustRegister(promRateLimited)
	prometheus.MustRegister(promBudgetRejections)
}
