package app

import (
	"context"
	"time"

	"xdao.co/carpin/metrics"
	"xdao.co/carpin/pinning"
)

// Instrument records the duration of every call to p. A nil m returns p.
func Instrument(p pinning.Pinner, m *metrics.Metrics) pinning.Pinner {
	if m == nil {
		return p
	}
	return &instrumentedPinner{next: p, m: m}
}

type instrumentedPinner struct {
	next pinning.Pinner
	m    *metrics.Metrics
}

func (p *instrumentedPinner) Add(ctx context.Context, data []byte, opts pinning.AddOptions) (pinning.AddResult, error) {
	start := time.Now()
	r, err := p.next.Add(ctx, data, opts)
	p.m.ObserveCall("pin_add", time.Since(start), err)
	return r, err
}

func (p *instrumentedPinner) AddCar(ctx context.Context, carBytes []byte, opts pinning.AddOptions) (pinning.AddResult, error) {
	start := time.Now()
	r, err := p.next.AddCar(ctx, carBytes, opts)
	p.m.ObserveCall("pin_add_car", time.Since(start), err)
	return r, err
}
