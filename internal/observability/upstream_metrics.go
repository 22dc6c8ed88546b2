package observability

import (
	"context"
	"errors"
	"time"
)

// ObserveUpstream times an outbound call. A nil receiver just runs fn.
func (p *Prom) ObserveUpstream(target string, fn func() error) error {
	if p == nil {
		return fn()
	}

	start := time.Now()
	err := fn()

	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		p.UpstreamErrorsTotal.WithLabelValues(target).Inc()
	}
	p.UpstreamDuration.WithLabelValues(target, status).Observe(time.Since(start).Seconds())
	return err
}

func (p *Prom) CountMetadataCache(result string) {
	if p == nil {
		return
	}
	p.MetadataCacheTotal.WithLabelValues(result).Inc()
}
