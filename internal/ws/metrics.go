package ws

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tasksync_hub_subscribers",
			Help: "Currently registered push subscribers",
		},
	)
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasksync_hub_deliveries_total",
			Help: "Push deliveries by event kind and result",
		},
		[]string{"event", "result"},
	)
	Dropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tasksync_hub_events_dropped_total",
			Help: "Events dropped because the hub queue was full or closed",
		},
	)
)

func init() {
	prometheus.MustRegister(Subscribers)
	prometheus.MustRegister(Deliveries)
	prometheus.MustRegister(Dropped)
}
