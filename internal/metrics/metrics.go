// Package metrics exposes Prometheus instrumentation for frame I/O, codec
// errors, and BCM period management. cankit never listens on a port itself;
// an embedding application mounts Handler() wherever it already serves
// metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cankit_frames_sent_total",
		Help: "Total CAN frames written to the bus.",
	})
	FramesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cankit_frames_received_total",
		Help: "Total CAN frames read from the bus.",
	})
	Timeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cankit_recv_timeouts_total",
		Help: "Total recv_next_signals/recv_next_frame calls that hit their deadline.",
	})
	BCMSetups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cankit_bcm_setups_total",
		Help: "Total TX_SETUP/RX_SETUP messages sent to the kernel BCM socket.",
	})
	BCMDeletes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cankit_bcm_deletes_total",
		Help: "Total TX_DELETE/RX_DELETE messages sent to the kernel BCM socket.",
	})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cankit_errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrRawRead   = "raw_read"
	ErrRawWrite  = "raw_write"
	ErrRawFilter = "raw_filter"
	ErrBCMWrite  = "bcm_write"
	ErrBCMRead   = "bcm_read"
	ErrCodec     = "codec"
)

// IncError increments the error counter for the given subsystem label.
func IncError(where string) { Errors.WithLabelValues(where).Inc() }

// Handler returns the Prometheus scrape handler. The caller mounts it on
// whatever mux their process already serves (cankit has no HTTP server of
// its own, per spec.md §6's "library has no process-level side effects").
func Handler() http.Handler { return promhttp.Handler() }
