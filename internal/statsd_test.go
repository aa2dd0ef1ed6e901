// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsdAddr(t *testing.T) {
	for _, tt := range []struct {
		name string
		host string
		port string
		want string
	}{
		{name: "default", want: "localhost:8125"},
		{name: "host", host: "10.0.0.2", want: "10.0.0.2:8125"},
		{name: "port", port: "9125", want: "localhost:9125"},
		{name: "both", host: "agent", port: "9125", want: "agent:9125"},
		{name: "ipv6", host: "::1", want: "[::1]:8125"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DD_AGENT_HOST", tt.host)
			t.Setenv("DD_DOGSTATSD_PORT", tt.port)
			assert.Equal(t, tt.want, StatsdAddr())
		})
	}
}

func TestNewStatsdClient(t *testing.T) {
	c, err := NewStatsdClient("127.0.0.1:8125", []string{"application:test"})
	require.NoError(t, err)
	assert.NoError(t, c.Count("calltree.flush", 1, nil, 1))
	assert.NoError(t, c.Flush())
	assert.NoError(t, c.Close())
}
