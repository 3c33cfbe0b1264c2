package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	PurchasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_total",
			Help: "Purchases committed, by platform",
		},
		[]string{"platform"},
	)
	PurchasesFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "purchases_failed_total",
			Help: "Purchase claims rejected or conflicted",
		},
	)
	PurchaseReplays = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "purchase_replays_total",
			Help: "Duplicate submissions answered from the ledger",
		},
	)

	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(PurchasesTotal)
	prometheus.MustRegister(PurchasesFailed)
	prometheus.MustRegister(PurchaseReplays)
	prometheus.MustRegister(WorkerQueueDepth)
}
