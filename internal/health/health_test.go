package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestProbeRunnerReady(t *testing.T) {
	runner := NewProbeRunner(time.Second, 0,
		Ping("db", func(context.Context) error { return nil }),
		Ping("redis", func(context.Context) error { return nil }),
	)

	ok, results := runner.Ready(context.Background())
	if !ok {
		t.Fatalf("expected ready, got %+v", results)
	}
	if len(results) != 2 || results[0].Name != "db" || !results[1].Healthy {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestProbeRunnerUnhealthyDependency(t *testing.T) {
	runner := NewProbeRunner(time.Second, 0,
		Ping("db", func(context.Context) error { return nil }),
		Ping("redis", func(context.Context) error { return errors.New("connection refused") }),
	)

	ok, results := runner.Ready(context.Background())
	if ok {
		t.Fatalf("expected not ready")
	}
	if results[1].Healthy || results[1].Error == "" {
		t.Fatalf("failure not reported: %+v", results[1])
	}
}

func TestProbeRunnerCachesResults(t *testing.T) {
	calls := 0
	runner := NewProbeRunner(time.Second, time.Minute,
		Ping("db", func(context.Context) error {
			calls++
			return nil
		}),
	)

	runner.Ready(context.Background())
	runner.Ready(context.Background())
	if calls != 1 {
		t.Fatalf("expected cached second pass, got %d calls", calls)
	}
}
