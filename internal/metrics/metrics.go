// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storeledger_sales_recorded_total",
		Help: "Sales committed",
	})

	UnitsSold = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storeledger_units_sold_total",
		Help: "Units removed from stock by sales",
	})

	StockOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storeledger_stock_operations_total",
		Help: "Inventory operations committed, by type",
	}, []string{"type"})

	// StockRejections counts stock changes refused because they would drive a
	// quantity below zero.
	StockRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storeledger_stock_rejections_total",
		Help: "Stock changes rejected for insufficient stock, by source",
	}, []string{"source"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storeledger_http_requests_total",
		Help: "HTTP requests by method and status",
	}, []string{"method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storeledger_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"method"})
)
