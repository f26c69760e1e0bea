package metrics

import "github.com/prometheus/client_golang/prometheus"

// Keys for outcome labels.
const (
	Fail = "fail"
	Ok   = "ok"
)

// Collectors for the photo sync.
var (
	SyncPassesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photoframe_sync_passes_total",
		Help: "Cumulative number of sync passes, by outcome.",
	}, []string{"outcome"})
	SyncDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "photoframe_sync_duration_seconds",
		Help:    "Duration of sync passes.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})
	DownloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photoframe_downloads_total",
		Help: "Cumulative number of photo downloads, by outcome.",
	}, []string{"outcome"})
	DownloadBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photoframe_download_bytes_total",
		Help: "Cumulative number of bytes written to the cache by downloads.",
	})
	DeletesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photoframe_deletes_total",
		Help: "Cumulative number of cache deletions, by outcome.",
	}, []string{"outcome"})
	IngestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photoframe_ingests_total",
		Help: "Cumulative number of ingested photos, by outcome.",
	}, []string{"outcome"})
	PurgedFilesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photoframe_purged_files_total",
		Help: "Cumulative number of cache files removed by age.",
	})
	ManifestEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "photoframe_manifest_entries",
		Help: "Number of entries in the last persisted manifest.",
	})
)

// Collectors returns every photoframe collector for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		SyncPassesTotal,
		SyncDurationSeconds,
		DownloadsTotal,
		DownloadBytesTotal,
		DeletesTotal,
		IngestsTotal,
		PurgedFilesTotal,
		ManifestEntries,
	}
}
