// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

// Package sysmetrics reads coarse host resource usage: CPU, memory and
// network I/O.
package sysmetrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// DefaultInterval is the window over which CPU utilization is measured.
const DefaultInterval = time.Second

// SystemMetrics is one reading of the host counters.
type SystemMetrics struct {
	// CPUUsage is the CPU utilization over the probe interval, in percent.
	CPUUsage float64 `json:"cpuUsage"`
	// MemUsage is the used virtual memory, in bytes.
	MemUsage uint64 `json:"memoryUsage"`
	// InboundNetwork and OutboundNetwork are cumulative byte counters over
	// every network interface.
	InboundNetwork  uint64 `json:"inboundNetwork"`
	OutboundNetwork uint64 `json:"outboundNetwork"`
}

// Probe reads SystemMetrics. The zero value is ready to use.
type Probe struct {
	// Interval is the CPU sampling window. Collect blocks for that long.
	// Zero means DefaultInterval.
	Interval time.Duration

	cpuPercent func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	virtualMem func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	netIO      func(ctx context.Context, pernic bool) ([]net.IOCountersStat, error)
}

// Collect reads every counter. It fails as a whole when one of them cannot
// be read.
func (p *Probe) Collect(ctx context.Context) (*SystemMetrics, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	cpuPercent, virtualMem, netIO := p.cpuPercent, p.virtualMem, p.netIO
	if cpuPercent == nil {
		cpuPercent = cpu.PercentWithContext
	}
	if virtualMem == nil {
		virtualMem = mem.VirtualMemoryWithContext
	}
	if netIO == nil {
		netIO = net.IOCountersWithContext
	}

	pct, err := cpuPercent(ctx, interval, false)
	if err != nil {
		return nil, fmt.Errorf("reading cpu usage: %w", err)
	}
	if len(pct) == 0 {
		return nil, errors.New("reading cpu usage: no value")
	}
	vm, err := virtualMem(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading memory usage: %w", err)
	}
	counters, err := netIO(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("reading network counters: %w", err)
	}
	m := &SystemMetrics{
		CPUUsage: pct[0],
		MemUsage: vm.Used,
	}
	// without pernic gopsutil returns a single "all" entry
	for _, c := range counters {
		m.InboundNetwork += c.BytesRecv
		m.OutboundNetwork += c.BytesSent
	}
	return m, nil
}
