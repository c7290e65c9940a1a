package database

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var historyRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "scheduler_history_rows_total",
	Help: "Total number of history rows appended, by entity and reason",
}, []string{"entity", "reason"})
