package chat

import (
	"context"
	"time"

	"github.com/alexandre-normand/standupscot/formatter"
	"github.com/slack-go/slack"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ClientWithTelemetry implements Client interface with all methods wrapped
// with open telemetry metrics
type ClientWithTelemetry struct {
	base               Client
	methodCounter      metric.Int64Counter
	errCounter         metric.Int64Counter
	methodTimeRecorder metric.Int64Histogram
	methodAttributes   map[string]metric.MeasurementOption
}

// NewClientWithTelemetry returns an instance of the Client decorated with open telemetry timing and count metrics
func NewClientWithTelemetry(base Client, name string, meter metric.Meter) (c ClientWithTelemetry, err error) {
	c = ClientWithTelemetry{base: base, methodAttributes: make(map[string]metric.MeasurementOption)}

	if c.methodCounter, err = meter.Int64Counter("client_Calls", metric.WithDescription("Chat client calls by method")); err != nil {
		return c, err
	}

	if c.errCounter, err = meter.Int64Counter("client_Errors", metric.WithDescription("Chat client errors by method")); err != nil {
		return c, err
	}

	if c.methodTimeRecorder, err = meter.Int64Histogram("client_ProcessingTimeMillis", metric.WithUnit("ms")); err != nil {
		return c, err
	}

	for _, m := range []string{"ListDirectMessageChannels", "ListJoinedChannels", "ListChannelMembers", "SendDirectMessage", "PostMessage", "OpenDialog"} {
		c.methodAttributes[m] = metric.WithAttributes(attribute.String("name", name), attribute.String("method", m))
	}

	return c, nil
}

// record adds the call, its error if any and its duration to the metrics of method
func (_d ClientWithTelemetry) record(ctx context.Context, method string, since time.Time, err error) {
	attrs := _d.methodAttributes[method]

	if err != nil {
		_d.errCounter.Add(ctx, 1, attrs)
	}

	_d.methodCounter.Add(ctx, 1, attrs)
	_d.methodTimeRecorder.Record(ctx, time.Since(since).Milliseconds(), attrs)
}

// ListDirectMessageChannels implements Client
func (_d ClientWithTelemetry) ListDirectMessageChannels(ctx context.Context) (channels []DirectMessageChannel, err error) {
	_since := time.Now()
	defer func() {
		_d.record(ctx, "ListDirectMessageChannels", _since, err)
	}()
	return _d.base.ListDirectMessageChannels(ctx)
}

// ListJoinedChannels implements Client
func (_d ClientWithTelemetry) ListJoinedChannels(ctx context.Context) (channels []Channel, err error) {
	_since := time.Now()
	defer func() {
		_d.record(ctx, "ListJoinedChannels", _since, err)
	}()
	return _d.base.ListJoinedChannels(ctx)
}

// ListChannelMembers implements Client
func (_d ClientWithTelemetry) ListChannelMembers(ctx context.Context, channelID string) (members []string, err error) {
	_since := time.Now()
	defer func() {
		_d.record(ctx, "ListChannelMembers", _since, err)
	}()
	return _d.base.ListChannelMembers(ctx, channelID)
}

// SendDirectMessage implements Client
func (_d ClientWithTelemetry) SendDirectMessage(ctx context.Context, channelID string, text string) (err error) {
	_since := time.Now()
	defer func() {
		_d.record(ctx, "SendDirectMessage", _since, err)
	}()
	return _d.base.SendDirectMessage(ctx, channelID, text)
}

// PostMessage implements Client
func (_d ClientWithTelemetry) PostMessage(ctx context.Context, channelID string, text string, blocks []formatter.MessageBlock) (err error) {
	_since := time.Now()
	defer func() {
		_d.record(ctx, "PostMessage", _since, err)
	}()
	return _d.base.PostMessage(ctx, channelID, text, blocks)
}

// OpenDialog implements Client
func (_d ClientWithTelemetry) OpenDialog(ctx context.Context, triggerID string, dialog slack.Dialog) (err error) {
	_since := time.Now()
	defer func() {
		_d.record(ctx, "OpenDialog", _since, err)
	}()
	return _d.base.OpenDialog(ctx, triggerID, dialog)
}
