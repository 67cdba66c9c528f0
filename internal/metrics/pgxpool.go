package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterPgxPoolMetrics exposes pgx connection pool statistics as gauges.
func RegisterPgxPoolMetrics(pool *pgxpool.Pool) {
	stat := func(f func(*pgxpool.Stat) int32) func() float64 {
		return func() float64 { return float64(f(pool.Stat())) }
	}
	prometheus.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "maestro",
			Name:      "db_acquired_conns",
			Help:      "Connections currently acquired from the pool",
		}, stat((*pgxpool.Stat).AcquiredConns)),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "maestro",
			Name:      "db_idle_conns",
			Help:      "Idle connections in the pool",
		}, stat((*pgxpool.Stat).IdleConns)),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "maestro",
			Name:      "db_total_conns",
			Help:      "Total connections in the pool",
		}, stat((*pgxpool.Stat).TotalConns)),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "maestro",
			Name:      "db_max_conns",
			Help:      "Configured pool size",
		}, stat((*pgxpool.Stat).MaxConns)),
	)
}
