package smpplink

import (
	"time"

	"github.com/rcrowley/go-metrics"
)

// Stats keeps per-host SMPP counters. Safe for concurrent use by many sessions.
type Stats struct {
	Registry metrics.Registry

	TxPDU metrics.Counter
	RxPDU metrics.Counter

	Submit        metrics.Meter
	SubmitFailed  metrics.Counter
	SubmitLatency metrics.Timer
	Timeout       metrics.Counter

	MO  metrics.Meter
	DLR metrics.Meter

	Malformed metrics.Counter
	Anomaly   metrics.Counter

	Sessions metrics.Gauge
}

// NewStats registers SMPP metrics in r, a new registry is allocated when r is nil
func NewStats(r metrics.Registry) *Stats {
	if r == nil {
		r = metrics.NewRegistry()
	}
	st := &Stats{
		Registry:      r,
		TxPDU:         metrics.NewCounter(),
		RxPDU:         metrics.NewCounter(),
		Submit:        metrics.NewMeter(),
		SubmitFailed:  metrics.NewCounter(),
		SubmitLatency: metrics.NewTimer(),
		Timeout:       metrics.NewCounter(),
		MO:            metrics.NewMeter(),
		DLR:           metrics.NewMeter(),
		Malformed:     metrics.NewCounter(),
		Anomaly:       metrics.NewCounter(),
		Sessions:      metrics.NewGauge(),
	}

	r.Register("pdu.tx", st.TxPDU)
	r.Register("pdu.rx", st.RxPDU)
	r.Register("submit.rate", st.Submit)
	r.Register("submit.failed", st.SubmitFailed)
	r.Register("submit.latency", st.SubmitLatency)
	r.Register("resp.timeout", st.Timeout)
	r.Register("deliver.mo", st.MO)
	r.Register("deliver.dlr", st.DLR)
	r.Register("pdu.malformed", st.Malformed)
	r.Register("pdu.anomaly", st.Anomaly)
	r.Register("sessions.active", st.Sessions)
	return st
}

func (st *Stats) recordSubmit(start time.Time, err error) {
	st.Submit.Mark(1)
	st.SubmitLatency.UpdateSince(start)
	if err != nil {
		st.SubmitFailed.Inc(1)
	}
}

// Snapshot returns current values in a JSON friendly form
func (st *Stats) Snapshot() map[string]interface{} {
	tm := st.SubmitLatency.Snapshot()
	return map[string]interface{}{
		"pdu.tx":              st.TxPDU.Count(),
		"pdu.rx":              st.RxPDU.Count(),
		"pdu.malformed":       st.Malformed.Count(),
		"pdu.anomaly":         st.Anomaly.Count(),
		"submit.count":        st.Submit.Count(),
		"submit.rate1":        st.Submit.Rate1(),
		"submit.failed":       st.SubmitFailed.Count(),
		"submit.latency.mean": time.Duration(tm.Mean()).String(),
		"submit.latency.p99":  time.Duration(tm.Percentile(0.99)).String(),
		"resp.timeout":        st.Timeout.Count(),
		"deliver.mo":          st.MO.Count(),
		"deliver.dlr":         st.DLR.Count(),
		"sessions.active":     st.Sessions.Value(),
	}
}
