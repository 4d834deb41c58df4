package archive

import "github.com/prometheus/client_golang/prometheus"

var (
	archiveRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feza_archive_runs_total",
			Help: "Total number of interaction-log archive runs by status.",
		},
		[]string{"status"},
	)
	archiveEntriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feza_archive_entries_total",
			Help: "Total number of interaction-log entries moved to object storage.",
		},
	)
	archiveBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feza_archive_bytes_written_total",
			Help: "Total parquet bytes uploaded by archive runs.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		archiveRunsTotal,
		archiveEntriesTotal,
		archiveBytesTotal,
	)
}
