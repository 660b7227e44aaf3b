package biometric

import (
	"context"
	"log/slog"
	"time"

	"github.com/Hung6066/IVF-sub008/audit"
	"github.com/Hung6066/IVF-sub008/models"
	"github.com/Hung6066/IVF-sub008/monitoring"
	"github.com/Hung6066/IVF-sub008/pkg/errors"
)

// Aggregator fans a 1:N identification out to every configured matcher
// shard and reduces the responses to a single best match.
//
// The score is a false-accept-rate proxy: LOWER is BETTER. This is the
// opposite of similarity-score conventions and is pinned by a unit test.
type Aggregator struct {
	matchers []Matcher
	timeout  time.Duration
	recorder audit.Recorder
}

// NewAggregator wires the configured shards. timeout bounds the whole
// identify call; shard calls are cancelled when it expires.
func NewAggregator(matchers []Matcher, timeout time.Duration, recorder audit.Recorder) *Aggregator {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Aggregator{matchers: matchers, timeout: timeout, recorder: recorder}
}

type shardResponse struct {
	shard  string
	result *models.IdentificationResult
	err    error
}

// Identify scatter-gathers the probe across all shards. Shard errors and
// timeouts are logged and excluded; the call only fails when every shard
// fails. If no shard reports a match the aggregate is match=false.
func (a *Aggregator) Identify(ctx context.Context, template []byte, sourceIP string) (*models.IdentificationResult, error) {
	if len(a.matchers) == 0 {
		return nil, errors.ShardUnreachable(context.DeadlineExceeded)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	responses := make(chan shardResponse, len(a.matchers))
	for _, m := range a.matchers {
		go func(m Matcher) {
			start := time.Now()
			result, err := m.Identify(ctx, template)
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			monitoring.RecordShardCall(ctx, m.Name(), outcome, time.Since(start))
			responses <- shardResponse{shard: m.Name(), result: result, err: err}
		}(m)
	}

	best := &models.IdentificationResult{Match: false}
	failures := 0
	var lastErr error

	for range a.matchers {
		resp := <-responses
		if resp.err != nil {
			failures++
			lastErr = resp.err
			slog.Warn("Matcher shard excluded from aggregation", "shard", resp.shard, "error", resp.err)
			continue
		}
		if !resp.result.Match {
			continue
		}
		// Lowest FAR score wins among accepted candidates.
		if !best.Match || resp.result.Score < best.Score {
			best = resp.result
		}
	}

	if failures == len(a.matchers) {
		return nil, errors.ShardUnreachable(lastErr)
	}

	if best.Match && a.recorder != nil {
		audit.RecordAsync(a.recorder, models.NewSecurityEvent(
			models.EventBiometricMatch, models.SeverityInfo, sourceIP, map[string]any{
				"patientId": best.PatientID,
				"score":     best.Score,
			}))
	}

	return best, nil
}
