// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package profiler

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/DataDog/dd-calltree-go/internal"
	"github.com/DataDog/dd-calltree-go/internal/hostinfo"
	"github.com/DataDog/dd-calltree-go/internal/log"
	"github.com/DataDog/dd-calltree-go/internal/stacktrace"
	"github.com/DataDog/dd-calltree-go/internal/sysmetrics"
	"github.com/DataDog/dd-calltree-go/internal/version"
)

const (
	// DefaultFlushEvents is the number of observed events after which the
	// aggregated call tree is sent and cleared.
	DefaultFlushEvents = 10000

	// DefaultSampleInterval is the period at which every goroutine stack is
	// sampled.
	DefaultSampleInterval = 10 * time.Millisecond

	// DefaultEventTimeout bounds the delivery of a panic event.
	DefaultEventTimeout = 5 * time.Second

	// DefaultUploadTimeout bounds the delivery of a single queued payload.
	DefaultUploadTimeout = 10 * time.Second

	// DefaultMaxUploadRate is the number of queued payloads delivered per
	// second at most.
	DefaultMaxUploadRate = 10
)

const (
	defaultURL         = "https://api.auklet.io"
	defaultCompression = "gzip"
	defaultHTTPTimeout = 10 * time.Second
)

// Environment variables read by defaultConfig.
const (
	envApplication    = "DD_CALLTREE_APP_ID"
	envAPIKey         = "DD_CALLTREE_API_KEY"
	envURL            = "DD_CALLTREE_URL"
	envKafkaBrokers   = "DD_CALLTREE_KAFKA_BROKERS"
	envFlushEvents    = "DD_CALLTREE_FLUSH_EVENTS"
	envSampleInterval = "DD_CALLTREE_SAMPLE_INTERVAL"
	envMetricsPeriod  = "DD_CALLTREE_METRICS_PERIOD"
	envMaxUploadRate  = "DD_CALLTREE_MAX_UPLOADS_PER_SECOND"
	envCompression    = "DD_CALLTREE_COMPRESSION"
	envStatsd         = "DD_CALLTREE_STATSD_ENABLED"
)

var defaultClient = &http.Client{
	// We copy the transport to avoid using the default one, as it might be
	// augmented by the application.
	Transport: &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	},
	Timeout: defaultHTTPTimeout,
}

type config struct {
	application    string
	apiKey         string
	url            string
	kafkaBrokers   []string
	compression    string
	flushEvents    int
	sampleInterval time.Duration
	metricsPeriod  time.Duration
	publicIP       string
	maxUploadRate  float64
	eventTimeout   time.Duration
	uploadTimeout  time.Duration
	publisher      Publisher
	filter         *stacktrace.Filter
	source         stacktrace.Source
	httpClient     *http.Client
	statsd         StatsdClient
	closeStatsd    func() error // set when statsd was created by the profiler
	tags           []string

	// collectMetrics reads the host metrics; replaced in tests.
	collectMetrics func(context.Context) (any, error)
}

func defaultConfig() *config {
	c := config{
		application:    filepath.Base(os.Args[0]),
		url:            defaultURL,
		compression:    defaultCompression,
		flushEvents:    DefaultFlushEvents,
		sampleInterval: DefaultSampleInterval,
		maxUploadRate:  DefaultMaxUploadRate,
		eventTimeout:   DefaultEventTimeout,
		uploadTimeout:  DefaultUploadTimeout,
		httpClient:     defaultClient,
		statsd:         &statsd.NoOpClient{},
		tags:           []string{fmt.Sprintf("pid:%d", os.Getpid())},
	}
	if v := os.Getenv(envApplication); v != "" {
		WithApplication(v)(&c)
	}
	if v := os.Getenv(envAPIKey); v != "" {
		WithAPIKey(v)(&c)
	}
	if v := os.Getenv(envURL); v != "" {
		WithURL(v)(&c)
	}
	if v := internal.ListEnv(envKafkaBrokers); len(v) > 0 {
		WithKafkaBrokers(v...)(&c)
	}
	if v := os.Getenv(envCompression); v != "" {
		c.compression = v
	}
	if v := os.Getenv(hostinfo.EnvPublicIP); v != "" {
		WithPublicIP(v)(&c)
	}
	c.flushEvents = internal.IntEnv(envFlushEvents, c.flushEvents)
	c.sampleInterval = internal.DurationEnv(envSampleInterval, c.sampleInterval)
	c.metricsPeriod = internal.DurationEnv(envMetricsPeriod, c.metricsPeriod)
	c.maxUploadRate = float64(internal.IntEnv(envMaxUploadRate, int(c.maxUploadRate)))
	if v := os.Getenv("DD_TAGS"); v != "" {
		sep := " "
		if strings.Contains(v, ",") {
			// falling back to comma as separator
			sep = ","
		}
		for _, tag := range strings.Split(v, sep) {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			WithTags(tag)(&c)
		}
	}
	WithTags(
		"calltree_version:"+version.Tag,
		"runtime_version:"+strings.TrimPrefix(runtime.Version(), "go"),
		"runtime_os:"+runtime.GOOS,
		"runtime_arch:"+runtime.GOARCH,
	)(&c)
	if internal.BoolEnv(envStatsd, false) {
		addr := internal.StatsdAddr()
		client, err := internal.NewStatsdClient(addr, nil)
		if err != nil {
			log.Warn("Unable to create the statsd client for %s: %v", addr, err)
		} else {
			c.statsd = client
			c.closeStatsd = client.Close
		}
	}
	probe := &sysmetrics.Probe{}
	c.collectMetrics = func(ctx context.Context) (any, error) {
		return probe.Collect(ctx)
	}
	return &c
}

// An Option is used to configure the profiler's behaviour.
type Option func(*config)

// WithApplication specifies the application id attached to every payload.
// It defaults to the name of the executable.
func WithApplication(id string) Option {
	return func(cfg *config) {
		cfg.application = id
	}
}

// WithAPIKey specifies the key sent along with every HTTP request.
func WithAPIKey(key string) Option {
	return func(cfg *config) {
		cfg.apiKey = key
	}
}

// WithURL specifies the base URL of the collection API.
func WithURL(url string) Option {
	return func(cfg *config) {
		cfg.url = url
	}
}

// WithKafkaBrokers makes the profiler publish to the given Kafka brokers
// instead of the HTTP API.
func WithKafkaBrokers(brokers ...string) Option {
	return func(cfg *config) {
		cfg.kafkaBrokers = brokers
	}
}

// WithFlushEvents specifies the number of observed events after which the
// aggregated call tree is sent and cleared.
func WithFlushEvents(n int) Option {
	return func(cfg *config) {
		cfg.flushEvents = n
	}
}

// WithSampleInterval specifies the period at which goroutine stacks are
// sampled.
func WithSampleInterval(d time.Duration) Option {
	return func(cfg *config) {
		cfg.sampleInterval = d
	}
}

// WithMetricsPeriod turns on host metrics reporting at the given period. Zero
// disables it.
func WithMetricsPeriod(d time.Duration) Option {
	return func(cfg *config) {
		cfg.metricsPeriod = d
	}
}

// WithPublicIP sets the public IP address reported with every profile. By
// default it is looked up once when the profiler starts.
func WithPublicIP(ip string) Option {
	return func(cfg *config) {
		cfg.publicIP = ip
	}
}

// WithMaxUploadRate limits the number of queued payloads delivered per
// second.
func WithMaxUploadRate(perSecond float64) Option {
	return func(cfg *config) {
		cfg.maxUploadRate = perSecond
	}
}

// WithEventTimeout bounds the synchronous delivery of panic events.
func WithEventTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.eventTimeout = d
	}
}

// WithUploadTimeout bounds the delivery of each queued payload.
func WithUploadTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.uploadTimeout = d
	}
}

// WithPublisher replaces the default HTTP or Kafka publisher.
func WithPublisher(p Publisher) Option {
	return func(cfg *config) {
		cfg.publisher = p
	}
}

// WithFilter replaces the filter deciding which frames belong to the
// application.
func WithFilter(f *stacktrace.Filter) Option {
	return func(cfg *config) {
		cfg.filter = f
	}
}

// WithStackSource replaces the goroutine sampler.
func WithStackSource(s stacktrace.Source) Option {
	return func(cfg *config) {
		cfg.source = s
	}
}

// WithHTTPClient specifies the HTTP client used by the default publisher.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *config) {
		if client == nil {
			return
		}
		cfg.httpClient = client
	}
}

// WithTags specifies a set of tags attached to the profiler's own metrics.
func WithTags(tags ...string) Option {
	return func(cfg *config) {
		cfg.tags = append(cfg.tags, tags...)
	}
}

// WithStatsd specifies an optional statsd client to use for metrics. By default,
// no metrics are sent.
func WithStatsd(client StatsdClient) Option {
	return func(cfg *config) {
		if cfg.closeStatsd != nil {
			cfg.closeStatsd()
			cfg.closeStatsd = nil
		}
		cfg.statsd = client
	}
}

func (c *config) validate() error {
	if c.application == "" {
		return fmt.Errorf("application id must not be empty, set %s", envApplication)
	}
	if c.flushEvents <= 0 {
		return fmt.Errorf("invalid flush threshold, must be > 0: %d", c.flushEvents)
	}
	if c.sampleInterval <= 0 {
		return fmt.Errorf("invalid sample interval, must be > 0: %s", c.sampleInterval)
	}
	if c.metricsPeriod < 0 {
		return fmt.Errorf("invalid metrics period, must be >= 0: %s", c.metricsPeriod)
	}
	if c.maxUploadRate <= 0 {
		return fmt.Errorf("invalid upload rate, must be > 0: %v", c.maxUploadRate)
	}
	if c.uploadTimeout <= 0 {
		return fmt.Errorf("invalid upload timeout, must be > 0: %s", c.uploadTimeout)
	}
	if c.eventTimeout <= 0 {
		return fmt.Errorf("invalid event timeout, must be > 0: %s", c.eventTimeout)
	}
	return nil
}
