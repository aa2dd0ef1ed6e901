// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-2020 Datadog, Inc.

package profiler

import (
	"time"

	"github.com/DataDog/dd-calltree-go/internal/log"
)

// reportMetrics queues a host metrics reading whenever the ticker fires.
// A reading that fails is logged and skipped.
func (p *Profiler) reportMetrics(ticker <-chan time.Time) {
	for {
		select {
		case <-ticker:
			m, err := p.cfg.collectMetrics(p.ctx)
			if err != nil {
				if p.ctx.Err() != nil {
					return
				}
				log.Error("Error collecting host metrics: %v; skipping.", err)
				p.cfg.statsd.Count("calltree.metrics_error", 1, p.cfg.tags, 1)
				continue
			}
			p.enqueue(delivery{payload: m, kind: KindMetrics})
		case <-p.ctx.Done():
			return
		}
	}
}
