// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package profiler builds a call tree of the running application from
// sampled goroutine stacks, periodically publishes it, and reports panics
// which escape the application as stack trace events.
package profiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/DataDog/dd-calltree-go/internal/calltree"
	"github.com/DataDog/dd-calltree-go/internal/hostinfo"
	"github.com/DataDog/dd-calltree-go/internal/log"
	"github.com/DataDog/dd-calltree-go/internal/stacktrace"
)

// outChannelSize specifies the size of the payload output channel.
const outChannelSize = 5

// stopTimeout bounds how long Stop waits for queued payloads to be delivered.
var stopTimeout = 10 * time.Second // replaced in tests

// ErrStopped is returned when using a profiler which has been stopped.
var ErrStopped = errors.New("profiler is stopped")

var (
	mu             sync.Mutex
	activeProfiler *Profiler
)

// Start creates and starts the global profiler, stopping the previous one.
// It may return an error if the configuration is invalid.
func Start(opts ...Option) error {
	mu.Lock()
	defer mu.Unlock()
	if activeProfiler != nil {
		activeProfiler.Stop()
		activeProfiler = nil
	}
	p, err := New(opts...)
	if err != nil {
		return err
	}
	if err := p.Start(); err != nil {
		return err
	}
	activeProfiler = p
	return nil
}

// Stop stops the global profiler.
func Stop() {
	mu.Lock()
	if activeProfiler != nil {
		activeProfiler.Stop()
		activeProfiler = nil
	}
	mu.Unlock()
}

// Active returns the global profiler, or nil when none is started.
func Active() *Profiler {
	mu.Lock()
	defer mu.Unlock()
	return activeProfiler
}

// StatsdClient implementations can count, gauge and time certain event
// occurrences that happen in the profiler.
type StatsdClient interface {
	// Count counts how many times an event happened, at the given rate using the given tags.
	Count(event string, times int64, tags []string, rate float64) error
	// Gauge records the current value of a quantity.
	Gauge(name string, value float64, tags []string, rate float64) error
	// Timing creates a distribution of the values registered as the duration of a certain event.
	Timing(event string, duration time.Duration, tags []string, rate float64) error
}

// delivery is a payload waiting in the output queue.
type delivery struct {
	payload any
	kind    Kind
}

// Profiler aggregates observed stacks into a call tree and publishes it
// every FlushEvents observations.
type Profiler struct {
	cfg      *config
	agg      *calltree.Aggregator
	pub      Publisher
	closer   io.Closer     // closes pub when it was created by the profiler
	limiter  *rate.Limiter // paces deliveries from the output queue
	publicIP atomic.Value  // string

	events   atomic.Uint64 // observed events, drives flushing
	started  atomic.Bool
	stopped  atomic.Bool
	panicked atomic.Bool // set once a panic has been reported

	qmu    sync.RWMutex // guards closing out
	out    chan delivery
	closed bool

	ctx        context.Context // cancelled on stop
	cancel     context.CancelFunc
	sendCtx    context.Context // cancelled when draining takes too long
	sendCancel context.CancelFunc

	stopOnce sync.Once
	wg       sync.WaitGroup // sampler, metrics and lookup goroutines
	sendWG   sync.WaitGroup // sender goroutine
}

// New creates a new, unstarted profiler. It returns an error when the
// configuration is invalid or the publisher cannot be created.
func New(opts ...Option) (*Profiler, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		if cfg.closeStatsd != nil {
			cfg.closeStatsd()
		}
		return nil, err
	}
	if cfg.filter == nil {
		cfg.filter = stacktrace.DefaultFilter()
	}
	if cfg.source == nil {
		cfg.source = stacktrace.NewGoroutineSource()
	}
	cfg.tags = append(cfg.tags, "application:"+cfg.application)
	pub, closer, err := newPublisher(cfg)
	if err != nil {
		if cfg.closeStatsd != nil {
			cfg.closeStatsd()
		}
		return nil, fmt.Errorf("creating publisher: %w", err)
	}
	burst := int(cfg.maxUploadRate)
	if burst < 1 {
		burst = 1
	}
	p := &Profiler{
		cfg:     cfg,
		agg:     calltree.NewAggregator(),
		pub:     pub,
		closer:  closer,
		limiter: rate.NewLimiter(rate.Limit(cfg.maxUploadRate), burst),
		out:     make(chan delivery, outChannelSize),
	}
	p.publicIP.Store(cfg.publicIP)
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.sendCtx, p.sendCancel = context.WithCancel(context.Background())
	return p, nil
}

// Start launches the sampler and the delivery goroutines.
func (p *Profiler) Start() error {
	if p.stopped.Load() {
		return ErrStopped
	}
	if !p.started.CompareAndSwap(false, true) {
		return errors.New("profiler already started")
	}
	log.Info("Call tree profiler started for application %s: sampling every %s, flushing every %d events",
		p.cfg.application, p.cfg.sampleInterval, p.cfg.flushEvents)
	if p.cfg.publicIP == "" {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.lookupPublicIP()
		}()
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		tick := time.NewTicker(p.cfg.sampleInterval)
		defer tick.Stop()
		p.sample(tick.C)
	}()
	if p.cfg.metricsPeriod > 0 {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			tick := time.NewTicker(p.cfg.metricsPeriod)
			defer tick.Stop()
			p.reportMetrics(tick.C)
		}()
	}
	p.sendWG.Add(1)
	go func() {
		defer p.sendWG.Done()
		p.send()
	}()
	return nil
}

// Stop stops sampling, waits for the profiler's goroutines and delivers the
// payloads still queued, waiting at most a few seconds for them. It is safe
// to call Stop more than once.
func (p *Profiler) Stop() {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		p.cancel()
		p.wg.Wait()

		p.qmu.Lock()
		p.closed = true
		close(p.out)
		p.qmu.Unlock()

		if p.started.Load() {
			done := make(chan struct{})
			go func() {
				p.sendWG.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(stopTimeout):
				log.Warn("Timed out delivering queued payloads, dropping the rest.")
				p.sendCancel()
				<-done
			}
		}
		p.sendCancel()
		if p.closer != nil {
			if err := p.closer.Close(); err != nil {
				log.Warn("Closing publisher: %v", err)
			}
		}
		if p.cfg.closeStatsd != nil {
			p.cfg.closeStatsd()
		}
		log.Info("Call tree profiler stopped.")
	})
}

// Run starts the profiler, calls fn and stops the profiler once fn returns,
// even when it panics. The context given to fn is cancelled on SIGINT and
// SIGTERM.
func (p *Profiler) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.Start(); err != nil {
		return err
	}
	defer p.Stop()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx)
}

// sample observes every goroutine stack whenever the ticker fires.
func (p *Profiler) sample(ticker <-chan time.Time) {
	for {
		select {
		case <-ticker:
			start := time.Now()
			snaps, err := p.cfg.source.Snapshot()
			if err != nil {
				log.Error("Error sampling goroutine stacks: %v; skipping.", err)
				p.cfg.statsd.Count("calltree.sample_error", 1, p.cfg.tags, 1)
				continue
			}
			for _, s := range snaps {
				if p.stopped.Load() {
					return
				}
				p.observe(s.Frames)
			}
			p.cfg.statsd.Timing("calltree.sample_duration", time.Since(start), p.cfg.tags, 1)
		case <-p.ctx.Done():
			return
		}
	}
}

// RecordCall records the stack of the calling goroutine as one observed
// event. It is a no-op once the profiler is stopped.
func (p *Profiler) RecordCall() {
	if p == nil || p.stopped.Load() {
		return
	}
	p.observe(stacktrace.Callers(1))
}

// RecordCall records the calling goroutine's stack with the global profiler.
func RecordCall() {
	p := Active()
	if p == nil || p.stopped.Load() {
		return
	}
	p.observe(stacktrace.Callers(1))
}

// observe merges one stack into the cumulative tree. The observation whose
// count lands on a multiple of the flush threshold sends the tree. It never
// panics.
func (p *Profiler) observe(frames []stacktrace.Frame) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic while recording a stack: %v", r)
			p.cfg.statsd.Count("calltree.sample_error", 1, p.cfg.tags, 1)
		}
	}()
	p.agg.Merge(calltree.Build(frames, p.cfg.filter))
	if n := p.events.Add(1); n%uint64(p.cfg.flushEvents) == 0 {
		p.flush()
	}
}

// flush sends and clears the cumulative tree.
func (p *Profiler) flush() {
	nodes := p.agg.Stats().Nodes
	prof, ok := p.agg.Flush(p.metadata())
	if !ok {
		return
	}
	p.cfg.statsd.Count("calltree.flush", 1, p.cfg.tags, 1)
	p.cfg.statsd.Gauge("calltree.tree_nodes", float64(nodes), p.cfg.tags, 1)
	p.enqueue(delivery{payload: prof, kind: KindMonitoring})
}

func (p *Profiler) metadata() calltree.Metadata {
	ip, _ := p.publicIP.Load().(string)
	return calltree.Metadata{
		Application: p.cfg.application,
		PublicIP:    ip,
	}
}

func (p *Profiler) lookupPublicIP() {
	ip, err := hostinfo.PublicIP(p.ctx)
	if err != nil {
		log.Warn("Unable to look up the public IP address: %v", err)
		return
	}
	p.publicIP.Store(ip)
}

// Send queues user data for delivery as a datapoint.
func (p *Profiler) Send(payload any) error {
	if !p.enqueue(delivery{payload: payload, kind: KindDatapoint}) {
		return ErrStopped
	}
	return nil
}

// enqueue pushes a payload onto the queue to be delivered. If there is no
// room, it will evict the oldest payload to make some. It reports false
// once the queue is closed.
func (p *Profiler) enqueue(d delivery) bool {
	p.qmu.RLock()
	defer p.qmu.RUnlock()
	if p.closed {
		return false
	}
	for {
		select {
		case p.out <- d:
			return true
		default:
			// queue is full; evict oldest
			select {
			case old := <-p.out:
				p.cfg.statsd.Count("calltree.queue_full", 1, p.cfg.tags, 1)
				log.Warn("Evicting one %s payload from the output queue to make room.", old.kind)
			default:
				// the sender drained the queue in the meantime
			}
		}
	}
}

// send takes payloads from the output queue and publishes them.
func (p *Profiler) send() {
	for d := range p.out {
		if err := p.limiter.Wait(p.sendCtx); err != nil {
			p.cfg.statsd.Count("calltree.produce_error", 1, p.kindTags(d.kind), 1)
			continue
		}
		ctx, cancel := context.WithTimeout(p.sendCtx, p.cfg.uploadTimeout)
		err := p.pub.Produce(ctx, d.payload, d.kind)
		cancel()
		if err != nil {
			log.Error("Failed to produce payload: %v", err)
			p.cfg.statsd.Count("calltree.produce_error", 1, p.kindTags(d.kind), 1)
		}
	}
}

func (p *Profiler) kindTags(kind Kind) []string {
	tags := make([]string, 0, len(p.cfg.tags)+1)
	return append(append(tags, p.cfg.tags...), "kind:"+string(kind))
}
