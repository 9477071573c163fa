package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"campuspush/internal/types"
)

// maxDatumsPerPut is the PutMetricData per-call limit.
const maxDatumsPerPut = 1000

// CloudWatchClient abstracts the PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatch buffers datums and publishes them in batches from a single
// background goroutine, so recording never blocks a request. When the
// buffer is full new datums are dropped.
//
// Metrics emitted:
//   - APIRequestCount / APILatency: Dims {Endpoint, Method, Status}
//   - DispatchAttempt: Dims {Mode, Result}
//   - DispatchLatency: Dims {Mode}
//   - NotificationLogWrite: Dims {Result}
//   - NotificationLogEntries: no dims
type CloudWatch struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
	interval  time.Duration

	datums chan cwtypes.MetricDatum
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ Recorder = (*CloudWatch)(nil)

// NewCloudWatch starts the publisher. Call Close to flush and stop it.
func NewCloudWatch(client CloudWatchClient, namespace string, interval time.Duration, logger *slog.Logger) *CloudWatch {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	c := &CloudWatch{
		client:    client,
		namespace: namespace,
		logger:    logger,
		interval:  interval,
		datums:    make(chan cwtypes.MetricDatum, 4*maxDatumsPerPut),
		stop:      make(chan struct{}),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

func (c *CloudWatch) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		{Name: aws.String("Endpoint"), Value: aws.String(endpoint)},
		{Name: aws.String("Method"), Value: aws.String(method)},
		{Name: aws.String("Status"), Value: aws.String(status)},
	}
	c.enqueue(MetricAPIRequestCount, 1, cwtypes.StandardUnitCount, dims)
	c.enqueue(MetricAPILatency, float64(duration.Milliseconds()), cwtypes.StandardUnitMilliseconds, dims)
}

func (c *CloudWatch) RecordDispatch(_ context.Context, mode types.AudienceMode, success bool) {
	c.enqueue(MetricDispatchAttempt, 1, cwtypes.StandardUnitCount, []cwtypes.Dimension{
		{Name: aws.String("Mode"), Value: aws.String(string(mode))},
		{Name: aws.String("Result"), Value: aws.String(resultLabel(success))},
	})
}

func (c *CloudWatch) RecordDispatchLatency(_ context.Context, mode types.AudienceMode, d time.Duration) {
	c.enqueue(MetricDispatchLatency, float64(d.Milliseconds()), cwtypes.StandardUnitMilliseconds, []cwtypes.Dimension{
		{Name: aws.String("Mode"), Value: aws.String(string(mode))},
	})
}

func (c *CloudWatch) RecordLogWrite(_ context.Context, entries int, err error) {
	c.enqueue(MetricLogWrite, 1, cwtypes.StandardUnitCount, []cwtypes.Dimension{
		{Name: aws.String("Result"), Value: aws.String(resultLabel(err == nil))},
	})
	c.enqueue(MetricLogWriteEntries, float64(entries), cwtypes.StandardUnitCount, nil)
}

func (c *CloudWatch) enqueue(name string, value float64, unit cwtypes.StandardUnit, dims []cwtypes.Dimension) {
	d := cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(time.Now()),
		Dimensions: dims,
	}
	select {
	case c.datums <- d:
	default:
		c.logger.Debug("cloudwatch buffer full, dropping datum", "metric", name)
	}
}

func (c *CloudWatch) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	batch := make([]cwtypes.MetricDatum, 0, maxDatumsPerPut)
	for {
		select {
		case d := <-c.datums:
			batch = append(batch, d)
			if len(batch) == maxDatumsPerPut {
				c.put(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				c.put(batch)
				batch = batch[:0]
			}
		case <-c.stop:
			for {
				select {
				case d := <-c.datums:
					batch = append(batch, d)
					if len(batch) == maxDatumsPerPut {
						c.put(batch)
						batch = batch[:0]
					}
				default:
					if len(batch) > 0 {
						c.put(batch)
					}
					return
				}
			}
		}
	}
}

// put publishes a batch. Errors are logged and swallowed: metrics must not
// affect dispatch.
func (c *CloudWatch) put(batch []cwtypes.MetricDatum) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data := make([]cwtypes.MetricDatum, len(batch))
	copy(data, batch)

	_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(c.namespace),
		MetricData: data,
	})
	if err != nil {
		c.logger.Error("failed to publish cloudwatch metrics", "datums", len(data), "error", err)
	}
}

// Close flushes buffered datums and stops the publisher. It returns early
// if ctx expires first.
func (c *CloudWatch) Close(ctx context.Context) error {
	c.once.Do(func() { close(c.stop) })

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
