package observability

import "time"

// ObserveUpstreamCall records one Gemini round trip. The caller already
// knows the outcome bucket, so unlike ObserveDB there is no error
// classification here.
func (p *Prom) ObserveUpstreamCall(model, outcome string, d time.Duration) {
	p.UpstreamTotal.WithLabelValues(model, outcome).Inc()
	p.UpstreamDuration.WithLabelValues(model, outcome).Observe(d.Seconds())
}
