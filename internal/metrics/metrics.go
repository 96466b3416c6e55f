// Package metrics owns the process's prometheus registry. Collectors are package-level so
// that pure packages (the AMM solvers) can record without plumbing a registerer through.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	KindLabel    = "kind"
	OutcomeLabel = "outcome"
	SolverLabel  = "solver"
	MethodLabel  = "method"
	StatusLabel  = "status"
)

// Registry is the registry served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liquidator_cycles_total",
			Help: "Number of agent cycles by kind and outcome",
		},
		[]string{KindLabel, OutcomeLabel},
	)
	AccountsScanned = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "liquidator_accounts_scanned",
		Help: "Accounts valued in the latest liquidation cycle",
	})
	LiquidatableAccounts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "liquidator_liquidatable_accounts",
		Help: "Accounts with a discount at or above the minimum in the latest cycle",
	})
	PlanProfit = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "liquidator_plan_profit_usd",
		Help:    "Priced profit of accepted liquidation plans",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000, 5000},
	})
	NewtonNonConverged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amm_newton_nonconverged_total",
			Help: "StableSwap Newton solves that hit the iteration cap",
		},
		[]string{SolverLabel},
	)
	RPCRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "near_rpc_requests_total",
			Help: "NEAR RPC view calls by contract method and status",
		},
		[]string{MethodLabel, StatusLabel},
	)
	RPCDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "near_rpc_request_duration_seconds",
			Help: "NEAR RPC view call latency",
		},
		[]string{MethodLabel},
	)
)

func init() {
	Registry.MustRegister(
		CyclesTotal,
		AccountsScanned,
		LiquidatableAccounts,
		PlanProfit,
		NewtonNonConverged,
		RPCRequests,
		RPCDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveRPC records one RPC call. status is "ok" or "error".
func ObserveRPC(method string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	RPCRequests.With(prometheus.Labels{MethodLabel: method, StatusLabel: status}).Inc()
	RPCDuration.With(prometheus.Labels{MethodLabel: method}).Observe(elapsed.Seconds())
}

// ObserveCycle records a finished agent cycle.
func ObserveCycle(kind, outcome string) {
	CyclesTotal.With(prometheus.Labels{KindLabel: kind, OutcomeLabel: outcome}).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
