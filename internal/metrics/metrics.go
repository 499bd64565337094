package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/canlog/tpmerge/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	FramesIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tp_frames_in_total",
		Help: "Total raw frames fed into the transport-protocol combiner.",
	})
	FramesPassthrough = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tp_frames_passthrough_total",
		Help: "Total frames not belonging to any watched identifier, passed through unchanged.",
	})
	FramesSynthesized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tp_frames_synthesized_total",
		Help: "Total synthesized frames spliced into the output table.",
	})
	SequencesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tp_sequences_started_total",
		Help: "Total multi-frame sequences opened by a first frame.",
	})
	ForcedFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tp_forced_flushes_total",
		Help: "Total sequences flushed without a terminating condition (possibly truncated payloads).",
	})
	CounterGaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tp_counter_gaps_total",
		Help: "Total consecutive-frame rolling-counter gaps observed in strict mode.",
	})
	DecodeGroups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decode_groups_total",
		Help: "Total fixed-length frame groups forwarded to the downstream decoder.",
	})
	SignalsDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decode_signals_total",
		Help: "Total physical-value rows returned by the downstream decoder.",
	})
	MalformedLines = promauto.NewCounter(prometheus.CounterOpts{
		Name: "log_malformed_lines_total",
		Help: "Total unparseable lines skipped while reading a frame log.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrLogRead  = "log_read"
	ErrStorage  = "storage"
	ErrSnapshot = "snapshot"
	ErrDecode   = "decode"
	ErrSink     = "sink"
)

// StartHTTP serves Prometheus metrics at /metrics on the given address.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localFramesIn    uint64
	localPassthrough uint64
	localSynthesized uint64
	localSequences   uint64
	localForced      uint64
	localGaps        uint64
	localGroups      uint64
	localSignals     uint64
	localMalformed   uint64
	localErrors      uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	FramesIn      uint64
	Passthrough   uint64
	Synthesized   uint64
	Sequences     uint64
	ForcedFlushes uint64
	CounterGaps   uint64
	DecodeGroups  uint64
	Signals       uint64
	Malformed     uint64
	Errors        uint64 // sum across error labels
}

func Snap() Snapshot {
	return Snapshot{
		FramesIn:      atomic.LoadUint64(&localFramesIn),
		Passthrough:   atomic.LoadUint64(&localPassthrough),
		Synthesized:   atomic.LoadUint64(&localSynthesized),
		Sequences:     atomic.LoadUint64(&localSequences),
		ForcedFlushes: atomic.LoadUint64(&localForced),
		CounterGaps:   atomic.LoadUint64(&localGaps),
		DecodeGroups:  atomic.LoadUint64(&localGroups),
		Signals:       atomic.LoadUint64(&localSignals),
		Malformed:     atomic.LoadUint64(&localMalformed),
		Errors:        atomic.LoadUint64(&localErrors),
	}
}

// Wrapper helpers to keep call sites simple.
func AddFramesIn(n int) {
	FramesIn.Add(float64(n))
	atomic.AddUint64(&localFramesIn, uint64(n))
}

func AddPassthrough(n int) {
	FramesPassthrough.Add(float64(n))
	atomic.AddUint64(&localPassthrough, uint64(n))
}

func AddSynthesized(n int) {
	FramesSynthesized.Add(float64(n))
	atomic.AddUint64(&localSynthesized, uint64(n))
}

func AddSequences(n int) {
	SequencesStarted.Add(float64(n))
	atomic.AddUint64(&localSequences, uint64(n))
}

func AddForcedFlushes(n int) {
	ForcedFlushes.Add(float64(n))
	atomic.AddUint64(&localForced, uint64(n))
}

func AddCounterGaps(n int) {
	CounterGaps.Add(float64(n))
	atomic.AddUint64(&localGaps, uint64(n))
}

func IncDecodeGroup() {
	DecodeGroups.Inc()
	atomic.AddUint64(&localGroups, 1)
}

func AddSignals(n int) {
	SignalsDecoded.Add(float64(n))
	atomic.AddUint64(&localSignals, uint64(n))
}

func IncMalformedLine() {
	MalformedLines.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register common error label series so first error does not log a registration latency.
	for _, lbl := range []string{ErrLogRead, ErrStorage, ErrSnapshot, ErrDecode, ErrSink} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}
