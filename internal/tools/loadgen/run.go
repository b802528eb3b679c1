// Package loadgen drives synthetic traffic at a running identity
// service so observability checks have data to look at.
package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
}

type Result struct {
	TotalRequests int64
	Failures      int64
	StatusClasses map[string]int64
}

type target struct {
	method string
	path   string
	body   func(r *rand.Rand) any
}

var authTargets = []target{
	{http.MethodPost, "/api/v1/auth/magic-link", func(r *rand.Rand) any {
		return map[string]string{"email": fmt.Sprintf("load%d@example.com", r.Intn(1000))}
	}},
	{http.MethodPost, "/api/v1/auth/guest", nil},
	{http.MethodPost, "/api/v1/auth/project/resume", func(r *rand.Rand) any {
		return map[string]string{"code": "ZZZZ99"}
	}},
}

var botTargets = []target{
	{http.MethodPost, "/api/v1/bots/fingerprint", func(r *rand.Rand) any {
		return map[string]string{
			"bot_id":  fmt.Sprintf("loadbot-%d", r.Intn(50)),
			"purpose": "log synthetic events",
			"code":    "function run() {}",
		}
	}},
	{http.MethodPost, "/api/v1/bots/validate", func(r *rand.Rand) any {
		return map[string]any{"id": fmt.Sprintf("loadbot-%d", r.Intn(50)), "code": "function run() {}", "runtime": r.Intn(6000)}
	}},
}

var healthTargets = []target{
	{http.MethodGet, "/healthz/live", nil},
	{http.MethodGet, "/healthz/ready", nil},
}

// Run fires requests against the configured base URL until the duration
// elapses. Non-2xx is not a failure; only transport errors count.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("loadgen: base url required")
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	targets := targetsForProfile(normalizeProfile(cfg.Profile))

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second}
	interval := time.Second / time.Duration(cfg.RPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	res := &Result{StatusClasses: map[string]int64{}}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}
		mu.Lock()
		tgt := targets[rng.Intn(len(targets))]
		var payload any
		if tgt.body != nil {
			payload = tgt.body(rng)
		}
		mu.Unlock()

		g.Go(func() error {
			status, err := fire(ctx, client, cfg.BaseURL, tgt.method, tgt.path, payload)
			mu.Lock()
			defer mu.Unlock()
			res.TotalRequests++
			if err != nil {
				res.Failures++
				return nil
			}
			res.StatusClasses[classifyStatusClass(status)]++
			return nil
		})
	}
	_ = g.Wait()
	return res, nil
}

func fire(ctx context.Context, client *http.Client, baseURL, method, path string, payload any) (int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(baseURL, "/")+path, body)
	if err != nil {
		return 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func targetsForProfile(profile string) []target {
	switch profile {
	case "auth":
		return authTargets
	case "bots":
		return botTargets
	case "health":
		return healthTargets
	default:
		all := make([]target, 0, len(authTargets)+len(botTargets)+len(healthTargets))
		all = append(all, authTargets...)
		all = append(all, botTargets...)
		all = append(all, healthTargets...)
		return all
	}
}

func normalizeProfile(profile string) string {
	profile = strings.ToLower(strings.TrimSpace(profile))
	if profile == "" {
		return "mixed"
	}
	return profile
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}
