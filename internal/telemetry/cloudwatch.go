// Package telemetry publishes SkyRisk metrics to AWS CloudWatch.
//
// Metrics emitted:
//   - APILatency, APIRequestCount: Dims {Endpoint, Method, Status}
//   - RiskLookup: Dims {Action, Result}
//   - ForecastAvailable: Dims {Action}, value 1 or 0 per successful lookup
//   - ExternalAPIFailure: Dims {Endpoint, Result}
//
// Datums are buffered in memory and published in batches by Run, so request
// handling never waits on CloudWatch.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"skyrisk/internal/dashboard"
	"skyrisk/internal/types"
)

// CloudWatch accepts at most 1000 datums per PutMetricData call.
const maxDatumsPerCall = 1000

// maxBuffered bounds memory when CloudWatch is unreachable; the oldest
// datums are dropped first.
const maxBuffered = 20 * maxDatumsPerCall

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Publisher buffers metric datums and ships them to CloudWatch.
type Publisher struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	pending []cwtypes.MetricDatum
	dropped int
}

// NewPublisher creates a Publisher. An empty namespace uses
// types.MetricNamespace.
func NewPublisher(client CloudWatchClient, namespace string, logger *slog.Logger) *Publisher {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:    client,
		namespace: namespace,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RecordRequest implements core.MetricsCollector.
func (p *Publisher) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := dimensions(types.DimEndpoint, endpoint, types.DimMethod, method, types.DimStatus, status)
	p.add(
		p.datum(types.MetricAPILatency, float64(duration.Milliseconds()), cwtypes.StandardUnitMilliseconds, dims),
		p.datum(types.MetricAPIRequestCount, 1, cwtypes.StandardUnitCount, dims),
	)
}

// RecordLookup implements dashboard.LookupRecorder. ForecastAvailable is
// only recorded for successful lookups.
func (p *Publisher) RecordLookup(_ context.Context, action, result string, forecastAvailable bool) {
	datums := []cwtypes.MetricDatum{
		p.datum(types.MetricLookup, 1, cwtypes.StandardUnitCount,
			dimensions(types.DimAction, action, types.DimResult, result)),
	}
	if result == dashboard.ResultSuccess {
		v := 0.0
		if forecastAvailable {
			v = 1
		}
		datums = append(datums, p.datum(types.MetricForecastAvailable, v, cwtypes.StandardUnitCount,
			dimensions(types.DimAction, action)))
	}
	p.add(datums...)
}

// RecordUpstreamFailure has the shape of external.FailureObserver.
func (p *Publisher) RecordUpstreamFailure(_ context.Context, service string, code types.ErrorCode) {
	p.add(p.datum(types.MetricExternalAPIFailure, 1, cwtypes.StandardUnitCount,
		dimensions(types.DimEndpoint, service, types.DimResult, string(code))))
}

// Pending returns the number of buffered datums.
func (p *Publisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Flush publishes every buffered datum. Datums of a failed call are
// discarded and the first error is returned.
func (p *Publisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	batch := p.pending
	dropped := p.dropped
	p.pending = nil
	p.dropped = 0
	p.mu.Unlock()

	if dropped > 0 {
		p.logger.WarnContext(ctx, "metric buffer overflowed", "dropped", dropped)
	}

	var firstErr error
	for len(batch) > 0 {
		n := min(len(batch), maxDatumsPerCall)
		_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(p.namespace),
			MetricData: batch[:n],
		})
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to publish metrics",
				"error", err.Error(),
				"datums", n,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
		batch = batch[n:]
	}
	return firstErr
}

// Run flushes every interval until ctx is cancelled, then performs a final
// flush with a short detached deadline.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			_ = p.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			_ = p.Flush(ctx)
		}
	}
}

func (p *Publisher) add(datums ...cwtypes.MetricDatum) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, datums...)
	if over := len(p.pending) - maxBuffered; over > 0 {
		p.pending = append(p.pending[:0:0], p.pending[over:]...)
		p.dropped += over
	}
}

func (p *Publisher) datum(name string, value float64, unit cwtypes.StandardUnit, dims []cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(p.now()),
		Dimensions: dims,
	}
}

// dimensions builds dimensions from name/value pairs. Empty values are
// replaced by "unknown" because CloudWatch rejects them.
func dimensions(pairs ...string) []cwtypes.Dimension {
	dims := make([]cwtypes.Dimension, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		v := pairs[i+1]
		if v == "" {
			v = "unknown"
		}
		dims = append(dims, cwtypes.Dimension{Name: aws.String(pairs[i]), Value: aws.String(v)})
	}
	return dims
}
