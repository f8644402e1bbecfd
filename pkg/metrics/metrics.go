package metrics

import "github.com/prometheus/client_golang/prometheus"

// scan(counter, latency) -> forward(rows counter, records counter, latency) -> state commit(counter)

var ScanRowsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sqlship",
	Subsystem: "fetch",
	Name:      "rows_counter",
	Help:      "Number of rows returned by table scans",
}, []string{"server", "db", "table"})

var ScanHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "sqlship",
	Subsystem: "fetch",
	Name:      "latency",
	Help:      "Latency of one full table scan in seconds.",
	Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 18), // ~ 1min
}, []string{"server", "db", "table"})

var RowsShippedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sqlship",
	Subsystem: "forward",
	Name:      "rows_shipped_counter",
	Help:      "Number of new rows shipped to the syslog sink",
}, []string{"server", "db", "table"})

var RecordsEmittedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sqlship",
	Subsystem: "forward",
	Name:      "records_counter",
	Help:      "Number of syslog records emitted, summary lines included",
}, []string{"server", "db", "table"})

var ForwardHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "sqlship",
	Subsystem: "forward",
	Name:      "latency",
	Help:      "Latency of forwarding one table's new rows in seconds.",
	Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 18), // ~ 1min
}, []string{"server", "db", "table"})

var JobCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sqlship",
	Subsystem: "run",
	Name:      "job_counter",
	Help:      "Number of processed jobs by result",
}, []string{"result"})

var StateCommitCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sqlship",
	Subsystem: "state",
	Name:      "commit_counter",
	Help:      "Number of offset commits to the state file",
}, []string{"table"})

func init() {
	prometheus.MustRegister(
		ScanRowsCounter,
		ScanHistogram,
		RowsShippedCounter,
		RecordsEmittedCounter,
		ForwardHistogram,
		JobCounter,
		StateCommitCounter)
}
