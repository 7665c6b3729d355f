// Command load-testing drives the ingest endpoint with random SenML batches
// and reports latency percentiles plus the service's own counters.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/richd0tcom/sensordocs/internal/logging"
)

type options struct {
	target   string
	users    int
	rate     int
	duration time.Duration
	devices  int
	maxBatch int
}

func main() {
	var opts options
	flag.StringVar(&opts.target, "target", envOr("TARGET_URL", "http://localhost:8080"), "service base URL")
	flag.IntVar(&opts.users, "users", 10, "concurrent clients")
	flag.IntVar(&opts.rate, "rate", 5, "requests per second per client")
	flag.DurationVar(&opts.duration, "duration", time.Minute, "test length")
	flag.IntVar(&opts.devices, "devices", 10, "distinct device ids")
	flag.IntVar(&opts.maxBatch, "batch", 60, "largest measurement count per request")
	flag.Parse()

	logger, err := logging.New(false, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	client := &http.Client{Timeout: 30 * time.Second}
	if err := waitHealthy(client, opts.target, 30, logger); err != nil {
		logger.Error("service not ready", zap.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.duration)
	defer cancel()

	st := newStats()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.users; i++ {
		gen := newGenerator(time.Now().UnixNano()+int64(i), opts.devices)
		g.Go(func() error {
			return drive(gctx, client, opts, gen, st)
		})
	}
	g.Go(func() error {
		report(gctx, st, logger)
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("load test aborted", zap.Error(err))
	}

	s := st.summary()
	logger.Info("load test finished",
		zap.Int("requests", s.Requests),
		zap.Int("failures", s.Failures),
		zap.Float64("rps", float64(s.Requests)/opts.duration.Seconds()),
		zap.Duration("p50", s.P50),
		zap.Duration("p95", s.P95),
		zap.Duration("p99", s.P99),
		zap.Duration("max", s.Max))
	for msg, n := range s.Errors {
		logger.Warn("request error", zap.String("error", msg), zap.Int("count", n))
	}

	if err := printServiceCounters(client, opts.target); err != nil {
		logger.Warn("could not read service metrics", zap.Error(err))
	}
}

// drive sends one batch per tick until ctx is done.
func drive(ctx context.Context, client *http.Client, opts options, gen *generator, st *stats) error {
	ticker := time.NewTicker(time.Second / time.Duration(opts.rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		body, err := gen.payload(1+gen.rnd.Intn(opts.maxBatch), time.Now())
		if err != nil {
			return err
		}
		start := time.Now()
		err = post(ctx, client, opts.target+"/api/v1/ingest", body)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil
		}
		st.record(time.Since(start), err)
	}
}

func post(ctx context.Context, client *http.Client, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

func report(ctx context.Context, st *stats, logger *zap.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := st.summary()
			logger.Info("progress",
				zap.Int("requests", s.Requests),
				zap.Int("failures", s.Failures),
				zap.Duration("p95", s.P95))
		}
	}
}

func waitHealthy(client *http.Client, base string, attempts int, logger *zap.Logger) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		resp, err := client.Get(base + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			err = fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		lastErr = err
		logger.Info("waiting for service", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	return lastErr
}

func printServiceCounters(client *http.Client, base string) error {
	resp, err := client.Get(base + "/metrics")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	for _, line := range strings.Split(string(body), "\n") {
		if strings.HasPrefix(line, "sensordocs_") {
			fmt.Println(line)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
