package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuspush/internal/types"
)

type fakeCloudWatch struct {
	mu     sync.Mutex
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func (f *fakeCloudWatch) datums() []cwtypes.MetricDatum {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []cwtypes.MetricDatum
	for _, in := range f.inputs {
		all = append(all, in.MetricData...)
	}
	return all
}

func dimValue(d cwtypes.MetricDatum, name string) string {
	for _, dim := range d.Dimensions {
		if aws.ToString(dim.Name) == name {
			return aws.ToString(dim.Value)
		}
	}
	return ""
}

func TestCloudWatch_FlushOnClose(t *testing.T) {
	client := &fakeCloudWatch{}
	cw := NewCloudWatch(client, "CampusPush", time.Hour, nil)
	ctx := context.Background()

	cw.RecordDispatch(ctx, types.AudienceList, true)
	cw.RecordDispatch(ctx, types.AudienceList, false)
	cw.RecordLogWrite(ctx, 4, nil)

	require.NoError(t, cw.Close(ctx))

	datums := client.datums()
	require.Len(t, datums, 4)

	assert.Equal(t, MetricDispatchAttempt, aws.ToString(datums[0].MetricName))
	assert.Equal(t, "list", dimValue(datums[0], "Mode"))
	assert.Equal(t, "success", dimValue(datums[0], "Result"))
	assert.Equal(t, "failure", dimValue(datums[1], "Result"))
	assert.Equal(t, MetricLogWrite, aws.ToString(datums[2].MetricName))
	assert.Equal(t, 4.0, aws.ToFloat64(datums[3].Value))

	for _, in := range client.inputs {
		assert.Equal(t, "CampusPush", aws.ToString(in.Namespace))
	}
}

func TestCloudWatch_PeriodicFlush(t *testing.T) {
	client := &fakeCloudWatch{}
	cw := NewCloudWatch(client, "CampusPush", 10*time.Millisecond, nil)
	defer cw.Close(context.Background())

	cw.RecordRequest("POST", "/v1/notifications/send", "200", 12*time.Millisecond)

	assert.Eventually(t, func() bool {
		return len(client.datums()) == 2
	}, time.Second, 5*time.Millisecond)

	datums := client.datums()
	assert.Equal(t, MetricAPIRequestCount, aws.ToString(datums[0].MetricName))
	assert.Equal(t, MetricAPILatency, aws.ToString(datums[1].MetricName))
	assert.Equal(t, 12.0, aws.ToFloat64(datums[1].Value))
	assert.Equal(t, "/v1/notifications/send", dimValue(datums[1], "Endpoint"))
}

func TestCloudWatch_BatchesAtLimit(t *testing.T) {
	client := &fakeCloudWatch{}
	cw := NewCloudWatch(client, "CampusPush", time.Hour, nil)

	for i := 0; i < maxDatumsPerPut+5; i++ {
		cw.RecordDispatchLatency(context.Background(), types.AudienceCampus, time.Millisecond)
	}
	require.NoError(t, cw.Close(context.Background()))

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Len(t, client.inputs, 2)
	assert.Len(t, client.inputs[0].MetricData, maxDatumsPerPut)
	assert.Len(t, client.inputs[1].MetricData, 5)
}

func TestCloudWatch_PutErrorSwallowed(t *testing.T) {
	client := &fakeCloudWatch{err: errors.New("throttled")}
	cw := NewCloudWatch(client, "CampusPush", time.Hour, nil)

	cw.RecordDispatch(context.Background(), types.AudienceSingle, true)
	assert.NoError(t, cw.Close(context.Background()))
	assert.Len(t, client.inputs, 1)
}

func TestCloudWatch_CloseIdempotent(t *testing.T) {
	cw := NewCloudWatch(&fakeCloudWatch{}, "CampusPush", time.Hour, nil)
	require.NoError(t, cw.Close(context.Background()))
	require.NoError(t, cw.Close(context.Background()))
}
