package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики защитного движка
// ============================================================
//
// Ключевой сигнал здесь не латентность, а исходы защитных
// последовательностей: сколько позиций получили защиту нативно,
// сколько через fallback, сколько ушло в аварийное закрытие.

// ProtectionOutcomes - исходы защитных последовательностей
var ProtectionOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradeterm",
		Subsystem: "protection",
		Name:      "outcomes_total",
		Help:      "Protection sequence outcomes by terminal state",
	},
	[]string{"symbol", "outcome"}, // native, trading_stop, failed, order_rejected
)

// EmergencyCloses - аварийные закрытия незащищённых позиций
var EmergencyCloses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradeterm",
		Subsystem: "protection",
		Name:      "emergency_closes_total",
		Help:      "Emergency market closes by result",
	},
	[]string{"symbol", "result"}, // closed, failed
)

// ReconcileCycles - циклы фоновой сверки позиций
var ReconcileCycles = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "tradeterm",
		Subsystem: "reconcile",
		Name:      "cycles_total",
		Help:      "Total reconciliation cycles executed",
	},
)

// NakedPositionsFound - незащищённые позиции, найденные сверкой
var NakedPositionsFound = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradeterm",
		Subsystem: "reconcile",
		Name:      "naked_positions_total",
		Help:      "Naked positions detected by the reconciliation loop",
	},
	[]string{"symbol"},
)

// OrderExecutionLatency - время исполнения ордера на бирже
var OrderExecutionLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "tradeterm",
		Subsystem: "orders",
		Name:      "execution_latency_ms",
		Help:      "Order round-trip latency in milliseconds",
		Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	},
	[]string{"symbol"},
)

// SignalsEvaluated - решения конфлюэнс-движка
var SignalsEvaluated = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradeterm",
		Subsystem: "signals",
		Name:      "evaluated_total",
		Help:      "Confluence evaluations by resulting strength",
	},
	[]string{"symbol", "strength"}, // strong, good, weak, none
)

// OpenPositions - текущее количество открытых позиций
var OpenPositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradeterm",
		Subsystem: "positions",
		Name:      "open",
		Help:      "Current number of open positions",
	},
)
