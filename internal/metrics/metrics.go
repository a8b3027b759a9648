package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_transactions_total",
		Help: "Total number of transactions processed, by type",
	}, []string{"type"})

	TransactionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_transactions_rejected_total",
		Help: "Total number of rejected transaction attempts, by reason",
	}, []string{"reason"})

	StockAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_stock_adjustments_total",
		Help: "Total number of stock ledger entries written, by entry type",
	}, []string{"entry_type"})

	InsufficientStockTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_insufficient_stock_total",
		Help: "Total number of stock changes rejected for insufficient quantity",
	})

	SessionsStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sessions_started_total",
		Help: "Total number of sessions started, by trigger",
	}, []string{"trigger"})

	SessionsEndedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sessions_ended_total",
		Help: "Total number of sessions ended, by trigger",
	}, []string{"trigger"})

	SchedulerTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_scheduler_ticks_total",
		Help: "Total number of scheduler poll ticks, by scheduler",
	}, []string{"scheduler"})

	BackupRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_backup_runs_total",
		Help: "Total number of scheduled backup runs, by outcome",
	}, []string{"outcome"})
)
