// Package throughput implements the parallel multi-source download probe.
// One batch downloads every configured URL at once through a bounded worker
// pool and derives a single aggregate rate from total bytes over the batch's
// wall-clock duration, so the result reflects simultaneous demand rather than
// best-case single-stream speed.
package throughput

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/NodePath81/linewatch/internal/config"
	"github.com/NodePath81/linewatch/internal/sample"
	"github.com/NodePath81/linewatch/internal/util"
	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
)

type Probe struct {
	urls             []string
	perSourceTimeout time.Duration
	client           *http.Client
	pool             pond.ResultPool[sample.SourceResult]
	logger           util.Logger
}

func New(cfg config.ThroughputConfig, logger util.Logger) *Probe {
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = len(cfg.URLs)
	}
	return &Probe{
		urls:             append([]string(nil), cfg.URLs...),
		perSourceTimeout: cfg.PerSourceTimeout.Duration(),
		client: &http.Client{
			Transport: &http.Transport{
				// One connection per demand stream; keep-alive reuse across
				// batches would skew connection-setup cost out of later rounds.
				DisableKeepAlives:   true,
				MaxIdleConnsPerHost: parallelism,
			},
		},
		pool:   pond.NewResultPool[sample.SourceResult](parallelism),
		logger: logger,
	}
}

// Measure runs one download batch. Each configured URL is an independent
// demand stream, duplicates included. The batch ends when every attempt has
// completed, timed out, or errored; it never waits past the per-source
// timeout plus scheduling overhead.
func (p *Probe) Measure(ctx context.Context) sample.ThroughputSample {
	taken := time.Now()
	batchID := uuid.New().String()

	group := p.pool.NewGroupContext(ctx)
	for _, url := range p.urls {
		url := url
		group.Submit(func() sample.SourceResult {
			return p.download(ctx, url)
		})
	}
	// Wait returns results in submission order; a canceled context surfaces
	// as the group error with zero values for attempts that never started.
	results, err := group.Wait()
	elapsed := time.Since(taken)
	if err != nil {
		p.logger.Debug("throughput batch interrupted", "batch", batchID, "error", err)
	}

	sources := make([]sample.SourceResult, len(p.urls))
	copy(sources, results)
	for i := range sources {
		if sources[i].URL == "" {
			sources[i] = sample.SourceResult{URL: p.urls[i], Reason: sample.ReasonCanceled}
		}
	}

	var total int64
	for _, res := range sources {
		total += res.Bytes
	}
	ts := sample.ThroughputSample{
		Taken:   taken,
		BatchID: batchID,
		Bytes:   total,
		Elapsed: elapsed,
		Sources: sources,
		OK:      total > 0,
	}
	p.logger.Debug("throughput batch finished",
		"batch", batchID,
		"bytes", total,
		"elapsed", elapsed,
		"mbits", ts.Mbits(),
		"sources", len(sources))
	return ts
}

func (p *Probe) download(ctx context.Context, url string) sample.SourceResult {
	start := time.Now()
	attemptCtx, cancel := context.WithTimeout(ctx, p.perSourceTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return sample.SourceResult{
			URL:     url,
			Elapsed: time.Since(start),
			Reason:  sample.ReasonUnreachable,
		}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return sample.SourceResult{
			URL:     url,
			Elapsed: time.Since(start),
			Reason:  classifyDownloadError(ctx, err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return sample.SourceResult{
			URL:     url,
			Elapsed: time.Since(start),
			Reason:  sample.ReasonHTTPStatus,
		}
	}

	// Partial bytes from a cut-off transfer still count toward the batch.
	received, err := io.Copy(io.Discard, resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return sample.SourceResult{
			URL:     url,
			Bytes:   received,
			Elapsed: elapsed,
			Reason:  classifyDownloadError(ctx, err),
		}
	}
	return sample.SourceResult{
		URL:     url,
		Bytes:   received,
		Elapsed: elapsed,
		OK:      true,
	}
}

func classifyDownloadError(parent context.Context, err error) sample.FailReason {
	if parent.Err() != nil && errors.Is(parent.Err(), context.Canceled) {
		return sample.ReasonCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return sample.ReasonTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return sample.ReasonTimeout
		}
		return sample.ReasonDNSFailure
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return sample.ReasonTimeout
	}
	return sample.ReasonUnreachable
}

// Describe reports the probe's demand set for status output.
func (p *Probe) Describe() string {
	return fmt.Sprintf("%d sources, %s per-source timeout", len(p.urls), p.perSourceTimeout)
}
