// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package hostinfo determines the public network identity of the process.
package hostinfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/DataDog/dd-calltree-go/internal/log"
)

// declared as vars to ease testing
var (
	ipifyURL         = "https://api.ipify.org"
	azureMetadataURL = "http://169.254.169.254"

	ipifyTimeout = 2 * time.Second
	azureTimeout = 300 * time.Millisecond

	cacheExpiration = 5 * time.Minute
)

const (
	// EnvPublicIP overrides the public IP lookup.
	EnvPublicIP = "DD_CALLTREE_PUBLIC_IP"

	maxResponseLength = 64
)

type provider struct {
	name  string
	fetch func(ctx context.Context) (string, error)
}

var providerCatalog = []provider{
	{name: "configuration", fetch: fromConfig},
	{name: "azure", fetch: fromAzure},
	{name: "ipify", fetch: fromIpify},
}

var (
	mu       sync.Mutex // guards below fields
	cachedIP string
	cachedAt time.Time
)

// PublicIP returns the public IP address of the host. The first provider
// returning a valid address wins and its answer is cached for a while.
func PublicIP(ctx context.Context) (string, error) {
	now := time.Now()
	mu.Lock()
	if cachedIP != "" && now.Sub(cachedAt) <= cacheExpiration {
		ip := cachedIP
		mu.Unlock()
		return ip, nil
	}
	mu.Unlock()

	for _, p := range providerCatalog {
		ip, err := p.fetch(ctx)
		if err == nil {
			err = validateIP(ip)
		}
		if err != nil {
			log.Debug("Unable to get public IP from provider %s: %v", p.name, err)
			continue
		}
		mu.Lock()
		cachedIP, cachedAt = ip, now
		mu.Unlock()
		return ip, nil
	}
	return "", errors.New("unable to determine the public IP address, set " + EnvPublicIP)
}

func resetCache() {
	mu.Lock()
	cachedIP, cachedAt = "", time.Time{}
	mu.Unlock()
	azureFetcher.Reset()
	ipifyFetcher.Reset()
}

func validateIP(s string) error {
	if net.ParseIP(s) == nil {
		return fmt.Errorf("invalid IP address %q", s)
	}
	return nil
}

func fromConfig(context.Context) (string, error) {
	ip := strings.TrimSpace(os.Getenv(EnvPublicIP))
	if ip == "" {
		return "", fmt.Errorf("%s is not set", EnvPublicIP)
	}
	return ip, nil
}

var azureFetcher = Fetcher{
	Name: "Azure public IP",
	Attempt: func(ctx context.Context) (string, error) {
		ip, err := get(ctx,
			azureMetadataURL+"/metadata/instance/network/interface/0/ipv4/ipAddress/0/publicIpAddress?api-version=2017-04-02&format=text",
			map[string]string{"Metadata": "true"}, azureTimeout)
		if err != nil {
			return "", fmt.Errorf("failed to get Azure public ip: %w", err)
		}
		return ip, nil
	},
}

func fromAzure(ctx context.Context) (string, error) {
	return azureFetcher.Fetch(ctx)
}

var ipifyFetcher = Fetcher{
	Name: "ipify public IP",
	Attempt: func(ctx context.Context) (string, error) {
		ip, err := get(ctx, ipifyURL, nil, ipifyTimeout)
		if err != nil {
			return "", fmt.Errorf("failed to query ipify: %w", err)
		}
		return ip, nil
	},
}

func fromIpify(ctx context.Context) (string, error) {
	return ipifyFetcher.Fetch(ctx)
}

// get returns the trimmed text body of a GET request.
func get(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status code %d trying to GET %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseLength+1))
	if err != nil {
		return "", err
	}
	if len(body) > maxResponseLength {
		return "", fmt.Errorf("%s gave a response longer than %d bytes", url, maxResponseLength)
	}
	return strings.TrimSpace(string(body)), nil
}
