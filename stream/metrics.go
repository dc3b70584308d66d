package stream

import "github.com/prometheus/client_golang/prometheus"

// Metrics wraps the Prometheus instruments a StreamBuffer and its TopEnd
// report to. It is a pure side channel: nothing in stream/buffer or
// stream/topend consults a Metrics value to decide behavior, only to
// record it. A nil *Metrics is valid everywhere and records nothing.
type Metrics struct {
	rowsAppended   prometheus.Counter
	rollbacks      prometheus.Counter
	generationCuts prometheus.Counter
	blocksPushed   prometheus.Counter
	bytesPushed    prometheus.Counter
	allocatedBytes prometheus.Gauge
	queuedExport   prometheus.Gauge
}

// NewMetrics registers the export stream instrument set against reg and
// returns the wrapper. partitionLabel is attached to every instrument so
// a process hosting more than one partition's StreamBuffer can
// distinguish them in a single registry. A nil reg is valid: the
// instruments are still built and usable, just never registered anywhere.
func NewMetrics(reg prometheus.Registerer, partitionLabel string) (*Metrics, error) {
	labels := prometheus.Labels{"partition": partitionLabel}

	m := &Metrics{
		rowsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "export",
			Name:        "rows_appended_total",
			Help:        "Rows appended to the current stream block.",
			ConstLabels: labels,
		}),
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "export",
			Name:        "rollbacks_total",
			Help:        "Calls to RollbackTo that discarded an uncommitted tail.",
			ConstLabels: labels,
		}),
		generationCuts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "export",
			Name:        "generation_cuts_total",
			Help:        "Blocks cut because of a generation change.",
			ConstLabels: labels,
		}),
		blocksPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "export",
			Name:        "blocks_pushed_total",
			Help:        "Blocks handed off to the TopEnd.",
			ConstLabels: labels,
		}),
		bytesPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "export",
			Name:        "bytes_pushed_total",
			Help:        "Bytes handed off to the TopEnd.",
			ConstLabels: labels,
		}),
		allocatedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "export",
			Name:        "allocated_bytes",
			Help:        "Bytes held by blocks created but not yet pushed.",
			ConstLabels: labels,
		}),
		queuedExport: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "export",
			Name:        "queued_bytes",
			Help:        "Bytes queued at the TopEnd, informational only.",
			ConstLabels: labels,
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.rowsAppended, m.rollbacks, m.generationCuts,
		m.blocksPushed, m.bytesPushed, m.allocatedBytes, m.queuedExport,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RowAppended records a row append. A nil receiver is a no-op, so
// StreamBuffer can unconditionally call into an optional Metrics value.
func (m *Metrics) RowAppended() {
	if m == nil {
		return
	}
	m.rowsAppended.Inc()
}

// RolledBack records a call to RollbackTo that discarded an uncommitted tail.
func (m *Metrics) RolledBack() {
	if m == nil {
		return
	}
	m.rollbacks.Inc()
}

// GenerationCut records a block cut forced by a generation change.
func (m *Metrics) GenerationCut() {
	if m == nil {
		return
	}
	m.generationCuts.Inc()
}

// BlockPushed records a block handed off to the TopEnd.
func (m *Metrics) BlockPushed(size int) {
	if m == nil {
		return
	}
	m.blocksPushed.Inc()
	m.bytesPushed.Add(float64(size))
}

// SetAllocatedBytes reports the current allocated_byte_count.
func (m *Metrics) SetAllocatedBytes(n int64) {
	if m == nil {
		return
	}
	m.allocatedBytes.Set(float64(n))
}

// SetQueuedExportBytes reports the TopEnd's queued-byte depth.
func (m *Metrics) SetQueuedExportBytes(n int64) {
	if m == nil {
		return
	}
	m.queuedExport.Set(float64(n))
}
