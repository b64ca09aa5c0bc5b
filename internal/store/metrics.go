package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasksync_store_mutations_total",
			Help: "Task store mutations by operation and result",
		},
		[]string{"op", "result"},
	)
	TaskCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tasksync_store_tasks",
			Help: "Number of tasks currently held in memory",
		},
	)
)

func init() {
	prometheus.MustRegister(Mutations)
	prometheus.MustRegister(TaskCount)
}
