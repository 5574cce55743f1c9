package obs

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	AcquireTotal *prometheus.CounterVec // result=granted|queued|refresh|error
	ReleaseTotal *prometheus.CounterVec // result=success|error
	RefreshTotal *prometheus.CounterVec // result=success|error

	OpLatencyMS *prometheus.HistogramVec // op=acquire|release|refresh|status

	QueueDepth   prometheus.Histogram // queue length observed on acquire
	LeasesLive   prometheus.Gauge
	ExpiredTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		AcquireTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lease_acquire_total",
				Help: "Total acquire attempts by result",
			},
			[]string{"result"},
		),
		ReleaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lease_release_total",
				Help: "Total release attempts by result",
			},
			[]string{"result"},
		),
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lease_refresh_total",
				Help: "Total heartbeat refresh attempts by result",
			},
			[]string{"result"},
		),
		OpLatencyMS: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lease_op_latency_ms",
				Help:    "Latency of lease operations (ms)",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms .. ~2048ms
			},
			[]string{"op"},
		),
		QueueDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lease_queue_depth",
			Help:    "Queue length observed when a caller acquires",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		LeasesLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leases_live",
			Help: "Number of currently live (unexpired) lease records",
		}),
		ExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lease_expired_total",
			Help: "Total number of lease records reclaimed after heartbeat silence",
		}),
	}

	prometheus.MustRegister(
		m.AcquireTotal,
		m.ReleaseTotal,
		m.RefreshTotal,
		m.OpLatencyMS,
		m.QueueDepth,
		m.LeasesLive,
		m.ExpiredTotal,
	)

	return m
}
