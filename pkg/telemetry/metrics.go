package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine counters exposed on /metrics. Labels stay low-cardinality: group
// ids are bounded by configuration, frame types by the protocol.
var (
	ConnectionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hubsync_connections_open",
		Help: "Number of push-channel connections currently open.",
	})
	ReconnectsScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubsync_reconnects_scheduled_total",
		Help: "Reconnection attempts scheduled after non-manual closes.",
	})
	FramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubsync_frames_received_total",
		Help: "Inbound push frames by type; unrecognized types count as other.",
	}, []string{"type"})
	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubsync_frames_dropped_total",
		Help: "Inbound push frames dropped because the payload was malformed.",
	})
	Merges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubsync_timeline_merges_total",
		Help: "Timeline merges by mode (replace, prepend, append).",
	}, []string{"mode"})
	HistoryFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubsync_history_fetches_total",
		Help: "History fetches by outcome (ok, error, deduped).",
	}, []string{"outcome"})
	Sends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubsync_sends_total",
		Help: "Message sends by outcome (ok, error, busy).",
	}, []string{"outcome"})
	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubsync_uploads_total",
		Help: "Attachment uploads by outcome (ok, error).",
	}, []string{"outcome"})
	UploadRecordsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hubsync_upload_records_swept_total",
		Help: "Terminal upload records removed by the retention sweep.",
	})
)
