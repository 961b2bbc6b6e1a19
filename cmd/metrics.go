package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pseudocoder/diffcore/internal/config"
	"github.com/pseudocoder/diffcore/internal/server"
	"github.com/pseudocoder/diffcore/internal/storage"
)

func runMetrics(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("metrics", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file (default: ~/.diffcore/config.toml)")
	addr := fs.String("addr", "", "Server address (default: 127.0.0.1:7171)")
	window := fs.Duration("window", time.Hour, "Time window to summarize")
	jsonOutput := fs.Bool("json", false, "Output in JSON format")
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if *window <= 0 {
		fmt.Fprintln(stderr, "Error: --window must be positive")
		return 1
	}

	settings, err := loadSettings(*configPath, func(c *config.Config) {
		if *addr != "" {
			c.Addr = *addr
		}
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	m, err := metricsGet(settings.Addr, *window)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOutput {
		return encodeJSON(stdout, stderr, m)
	}

	fmt.Fprintf(stdout, "Parses (%s window): %d\n", *window, m.Total)
	fmt.Fprintf(stdout, "Failures: %d\n", m.Failures)
	fmt.Fprintf(stdout, "Parse p95: %dms\n", m.P95Ms)
	if len(m.ByCode) > 0 {
		codes := make([]string, 0, len(m.ByCode))
		for code := range m.ByCode {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		fmt.Fprintf(stdout, "\nFailures by code:\n")
		for _, code := range codes {
			fmt.Fprintf(stdout, "  %s: %d\n", code, m.ByCode[code])
		}
	}
	return 0
}

func metricsGet(addr string, window time.Duration) (*storage.ParseMetrics, error) {
	client := &http.Client{Timeout: 10 * time.Second}

	u := fmt.Sprintf("http://%s/api/metrics?window=%s", addr, url.QueryEscape(window.String()))
	resp, err := client.Get(u)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var p server.ErrorPayload
		body, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(body, &p) == nil && p.Message != "" {
			return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, p.Message)
		}
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result storage.ParseMetrics
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	result.Window = window

	return &result, nil
}
