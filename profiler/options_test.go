// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package profiler

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/dd-calltree-go/internal/stacktrace"
	"github.com/DataDog/dd-calltree-go/internal/statsdtest"
	"github.com/DataDog/dd-calltree-go/internal/transport"
)

func TestOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := defaultConfig()
		assert.Equal(t, filepath.Base(os.Args[0]), cfg.application)
		assert.Equal(t, defaultURL, cfg.url)
		assert.Equal(t, DefaultFlushEvents, cfg.flushEvents)
		assert.Equal(t, DefaultSampleInterval, cfg.sampleInterval)
		assert.Equal(t, time.Duration(0), cfg.metricsPeriod)
		assert.Equal(t, float64(DefaultMaxUploadRate), cfg.maxUploadRate)
		assert.Equal(t, DefaultEventTimeout, cfg.eventTimeout)
		assert.Equal(t, DefaultUploadTimeout, cfg.uploadTimeout)
		assert.Empty(t, cfg.kafkaBrokers)
		assert.Empty(t, cfg.publicIP)
		assert.IsType(t, &statsd.NoOpClient{}, cfg.statsd)
		assert.Nil(t, cfg.closeStatsd)
		assert.Contains(t, cfg.tags, "runtime_os:"+runtime.GOOS)
		assert.NotNil(t, cfg.collectMetrics)
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("DD_CALLTREE_APP_ID", "env-app")
		t.Setenv("DD_CALLTREE_API_KEY", "secret")
		t.Setenv("DD_CALLTREE_URL", "https://collector.example.com")
		t.Setenv("DD_CALLTREE_KAFKA_BROKERS", "k1:9092, k2:9092,")
		t.Setenv("DD_CALLTREE_FLUSH_EVENTS", "500")
		t.Setenv("DD_CALLTREE_SAMPLE_INTERVAL", "25ms")
		t.Setenv("DD_CALLTREE_METRICS_PERIOD", "30s")
		t.Setenv("DD_CALLTREE_PUBLIC_IP", "198.51.100.1")
		t.Setenv("DD_CALLTREE_MAX_UPLOADS_PER_SECOND", "3")
		t.Setenv("DD_CALLTREE_COMPRESSION", "zstd-1")
		t.Setenv("DD_TAGS", "team:core, tier:1")

		cfg := defaultConfig()
		assert.Equal(t, "env-app", cfg.application)
		assert.Equal(t, "secret", cfg.apiKey)
		assert.Equal(t, "https://collector.example.com", cfg.url)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.kafkaBrokers)
		assert.Equal(t, 500, cfg.flushEvents)
		assert.Equal(t, 25*time.Millisecond, cfg.sampleInterval)
		assert.Equal(t, 30*time.Second, cfg.metricsPeriod)
		assert.Equal(t, "198.51.100.1", cfg.publicIP)
		assert.Equal(t, float64(3), cfg.maxUploadRate)
		assert.Equal(t, "zstd-1", cfg.compression)
		assert.Contains(t, cfg.tags, "team:core")
		assert.Contains(t, cfg.tags, "tier:1")
	})

	t.Run("env/invalid", func(t *testing.T) {
		t.Setenv("DD_CALLTREE_FLUSH_EVENTS", "many")
		t.Setenv("DD_CALLTREE_SAMPLE_INTERVAL", "often")
		cfg := defaultConfig()
		assert.Equal(t, DefaultFlushEvents, cfg.flushEvents)
		assert.Equal(t, DefaultSampleInterval, cfg.sampleInterval)
	})

	t.Run("env/statsd", func(t *testing.T) {
		t.Setenv("DD_CALLTREE_STATSD_ENABLED", "true")
		t.Setenv("DD_AGENT_HOST", "127.0.0.1")
		cfg := defaultConfig()
		require.NotNil(t, cfg.closeStatsd)
		assert.IsType(t, &statsd.Client{}, cfg.statsd)

		// replacing the client closes the one created from the environment
		sd := &statsdtest.TestStatsdClient{}
		WithStatsd(sd)(cfg)
		assert.Nil(t, cfg.closeStatsd)
		assert.Equal(t, sd, cfg.statsd)
	})

	t.Run("override", func(t *testing.T) {
		t.Setenv("DD_CALLTREE_APP_ID", "env-app")
		client := &http.Client{}
		cfg := defaultConfig()
		for _, opt := range []Option{
			WithApplication("opt-app"),
			WithAPIKey("key"),
			WithURL("http://localhost:8080"),
			WithFlushEvents(7),
			WithSampleInterval(time.Second),
			WithMetricsPeriod(time.Minute),
			WithPublicIP("192.0.2.1"),
			WithMaxUploadRate(2.5),
			WithEventTimeout(time.Second),
			WithUploadTimeout(2 * time.Second),
			WithHTTPClient(client),
			WithTags("a:b"),
		} {
			opt(cfg)
		}
		assert.Equal(t, "opt-app", cfg.application)
		assert.Equal(t, "key", cfg.apiKey)
		assert.Equal(t, "http://localhost:8080", cfg.url)
		assert.Equal(t, 7, cfg.flushEvents)
		assert.Equal(t, time.Second, cfg.sampleInterval)
		assert.Equal(t, time.Minute, cfg.metricsPeriod)
		assert.Equal(t, "192.0.2.1", cfg.publicIP)
		assert.Equal(t, 2.5, cfg.maxUploadRate)
		assert.Equal(t, time.Second, cfg.eventTimeout)
		assert.Equal(t, 2*time.Second, cfg.uploadTimeout)
		assert.Same(t, client, cfg.httpClient)
		assert.Contains(t, cfg.tags, "a:b")
	})

	t.Run("nil-http-client", func(t *testing.T) {
		cfg := defaultConfig()
		WithHTTPClient(nil)(cfg)
		assert.Same(t, defaultClient, cfg.httpClient)
	})
}

func TestNew(t *testing.T) {
	t.Run("invalid", func(t *testing.T) {
		for name, opt := range map[string]Option{
			"application":    WithApplication(""),
			"flush-events":   WithFlushEvents(0),
			"sample":         WithSampleInterval(0),
			"metrics-period": WithMetricsPeriod(-time.Second),
			"upload-rate":    WithMaxUploadRate(0),
			"upload-timeout": WithUploadTimeout(0),
			"event-timeout":  WithEventTimeout(-time.Second),
		} {
			t.Run(name, func(t *testing.T) {
				p, err := New(opt, WithPublisher(&recorder{}))
				assert.Error(t, err)
				assert.Nil(t, p)
			})
		}
	})

	t.Run("http", func(t *testing.T) {
		p, err := New(WithApplication("test-app"), WithURL("http://localhost:8080"))
		require.NoError(t, err)
		defer p.Stop()
		assert.IsType(t, &transport.HTTP{}, p.pub)
		assert.NotNil(t, p.closer)
		assert.Contains(t, p.cfg.tags, "application:test-app")
	})

	t.Run("http/bad-compression", func(t *testing.T) {
		t.Setenv("DD_CALLTREE_COMPRESSION", "brotli")
		_, err := New(WithApplication("test-app"))
		assert.Error(t, err)
	})

	t.Run("kafka", func(t *testing.T) {
		p, err := New(WithApplication("test-app"), WithKafkaBrokers("localhost:9092"))
		require.NoError(t, err)
		defer p.Stop()
		assert.IsType(t, &transport.Kafka{}, p.pub)
	})

	t.Run("publisher", func(t *testing.T) {
		rec := &recorder{}
		p, err := New(WithApplication("test-app"), WithPublisher(rec))
		require.NoError(t, err)
		defer p.Stop()
		assert.Equal(t, rec, p.pub)
		assert.Nil(t, p.closer)
		assert.NotNil(t, p.cfg.filter)
		assert.IsType(t, &stacktrace.GoroutineSource{}, p.cfg.source)
	})
}
