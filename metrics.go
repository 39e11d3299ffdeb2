package standupscot

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome attribute values
const (
	successOutcome = "success"
	failureOutcome = "failure"
)

// instrumenter holds data for standupscot instrumentation
type instrumenter struct {
	appName     string
	coreMetrics coreMetrics
}

// coreMetrics holds the standup cycle metrics
type coreMetrics struct {
	standupsSaved        metric.Int64Counter
	remindersSent        metric.Int64Counter
	digestsPosted        metric.Int64Counter
	membershipRefreshes  metric.Int64Counter
	commandsProcessed    metric.Int64Counter
	resolveLatencyMillis metric.Int64Histogram
	rosterSize           metric.Int64Histogram
}

// newInstrumenter creates a new instrumenter recording with meter
func newInstrumenter(appName string, meter metric.Meter) (ins *instrumenter, err error) {
	ins = &instrumenter{appName: appName}

	if ins.coreMetrics.standupsSaved, err = meter.Int64Counter("standupsSaved", metric.WithDescription("Standups saved by kind (new or update)")); err != nil {
		return nil, err
	}

	if ins.coreMetrics.remindersSent, err = meter.Int64Counter("remindersSent", metric.WithDescription("Prompts and reminders sent to late submitters by outcome")); err != nil {
		return nil, err
	}

	if ins.coreMetrics.digestsPosted, err = meter.Int64Counter("digestsPosted", metric.WithDescription("Digests posted by outcome")); err != nil {
		return nil, err
	}

	if ins.coreMetrics.membershipRefreshes, err = meter.Int64Counter("membershipRefreshes", metric.WithDescription("Membership refreshes by outcome")); err != nil {
		return nil, err
	}

	if ins.coreMetrics.commandsProcessed, err = meter.Int64Counter("commandsProcessed", metric.WithDescription("Commands processed by source")); err != nil {
		return nil, err
	}

	if ins.coreMetrics.resolveLatencyMillis, err = meter.Int64Histogram("resolveLatencyMillis", metric.WithUnit("ms")); err != nil {
		return nil, err
	}

	if ins.coreMetrics.rosterSize, err = meter.Int64Histogram("rosterSize", metric.WithDescription("Number of members found on refresh")); err != nil {
		return nil, err
	}

	return ins, nil
}

// attrs returns the measurement attributes for the app along with the extra key/value pairs
func (ins *instrumenter) attrs(kv ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(append([]attribute.KeyValue{attribute.String("name", ins.appName)}, kv...)...)
}

// outcome returns the outcome attribute for err
func outcome(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("outcome", failureOutcome)
	}

	return attribute.String("outcome", successOutcome)
}

func (ins *instrumenter) countSaved(ctx context.Context, kind string) {
	ins.coreMetrics.standupsSaved.Add(ctx, 1, ins.attrs(attribute.String("kind", kind)))
}

func (ins *instrumenter) countReminder(ctx context.Context, err error) {
	ins.coreMetrics.remindersSent.Add(ctx, 1, ins.attrs(outcome(err)))
}

func (ins *instrumenter) countDigest(ctx context.Context, err error) {
	ins.coreMetrics.digestsPosted.Add(ctx, 1, ins.attrs(outcome(err)))
}

func (ins *instrumenter) countRefresh(ctx context.Context, size int, err error) {
	ins.coreMetrics.membershipRefreshes.Add(ctx, 1, ins.attrs(outcome(err)))
	if err == nil {
		ins.coreMetrics.rosterSize.Record(ctx, int64(size), ins.attrs())
	}
}

func (ins *instrumenter) countCommand(ctx context.Context, source string) {
	ins.coreMetrics.commandsProcessed.Add(ctx, 1, ins.attrs(attribute.String("source", source)))
}

func (ins *instrumenter) recordResolveLatency(ctx context.Context, d time.Duration) {
	ins.coreMetrics.resolveLatencyMillis.Record(ctx, d.Milliseconds(), ins.attrs())
}

type timed func()

// measure returns the execution duration of a timed function
func measure(operation timed) (d time.Duration) {
	before := time.Now()

	operation()

	return time.Since(before)
}
