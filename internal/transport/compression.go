// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package transport

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	kgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

type compressionAlgorithm string

const (
	compressionAlgorithmNone compressionAlgorithm = "none"
	compressionAlgorithmGzip compressionAlgorithm = "gzip"
	compressionAlgorithmZstd compressionAlgorithm = "zstd"
)

type compression struct {
	algorithm compressionAlgorithm
	level     int
}

func (c compression) String() string {
	if c.algorithm == compressionAlgorithmNone {
		return string(c.algorithm)
	}
	return fmt.Sprintf("%s-%d", c.algorithm, c.level)
}

// contentEncoding returns the Content-Encoding header value, empty for none.
func (c compression) contentEncoding() string {
	if c.algorithm == compressionAlgorithmNone {
		return ""
	}
	return string(c.algorithm)
}

var (
	noCompression    = compression{algorithm: compressionAlgorithmNone}
	gzip6Compression = compression{algorithm: compressionAlgorithmGzip, level: 6}
)

var zstdLevels = map[int]zstd.EncoderLevel{
	1: zstd.SpeedFastest,
	2: zstd.SpeedDefault,
	3: zstd.SpeedBetterCompression,
	4: zstd.SpeedBestCompression,
}

// parseCompression parses settings such as "gzip", "gzip-1", "zstd-3" or
// "none". A missing level selects the algorithm's default.
func parseCompression(s string) (compression, error) {
	algorithm, levelStr, hasLevel := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "-")
	c := compression{algorithm: compressionAlgorithm(algorithm)}
	switch c.algorithm {
	case compressionAlgorithmNone:
		if hasLevel {
			return compression{}, fmt.Errorf("compression %q takes no level", s)
		}
		return noCompression, nil
	case compressionAlgorithmGzip:
		c.level = 6
	case compressionAlgorithmZstd:
		c.level = 2
	default:
		return compression{}, fmt.Errorf("unknown compression %q", s)
	}
	if hasLevel {
		level, err := strconv.Atoi(levelStr)
		if err != nil {
			return compression{}, fmt.Errorf("invalid compression level in %q: %w", s, err)
		}
		c.level = level
	}
	if c.algorithm == compressionAlgorithmGzip && (c.level < kgzip.HuffmanOnly || c.level > kgzip.BestCompression) {
		return compression{}, fmt.Errorf("gzip level %d out of range", c.level)
	}
	if _, ok := zstdLevels[c.level]; c.algorithm == compressionAlgorithmZstd && !ok {
		return compression{}, fmt.Errorf("zstd level %d out of range", c.level)
	}
	return c, nil
}

// compressor compresses the data written to it into the writer given to
// Reset.
type compressor interface {
	io.Writer
	io.Closer
	Reset(w io.Writer)
}

func newCompressor(c compression) (compressor, error) {
	switch c.algorithm {
	case compressionAlgorithmGzip:
		return kgzip.NewWriterLevel(nil, c.level)
	case compressionAlgorithmZstd:
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdLevels[c.level]))
	default:
		return &passthroughCompressor{}, nil
	}
}

type passthroughCompressor struct {
	io.Writer
}

func (r *passthroughCompressor) Reset(w io.Writer) {
	r.Writer = w
}

func (r *passthroughCompressor) Close() error {
	return nil
}

// compress returns data compressed with c.
func compress(c compressor, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	c.Reset(&buf)
	if _, err := c.Write(data); err != nil {
		return nil, err
	}
	if err := c.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
