package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/blackmichael/agent-manager"

// Metrics holds the client's instruments. A nil *Metrics records nothing.
type Metrics struct {
	Commands        metric.Int64Counter
	CommandDuration metric.Float64Histogram
	PollFailures    metric.Int64Counter
}

// InitMetrics creates the instruments on the global meter provider. Until
// the process installs an SDK provider they are no-ops.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	commands, err := meter.Int64Counter(
		"agent.commands.total",
		metric.WithDescription("Operator commands by outcome"),
	)
	if err != nil {
		return nil, err
	}

	commandDuration, err := meter.Float64Histogram(
		"agent.command.duration",
		metric.WithDescription("Operator command duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	pollFailures, err := meter.Int64Counter(
		"agent.poll.failures.total",
		metric.WithDescription("Failed reconciliation fetches"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Commands:        commands,
		CommandDuration: commandDuration,
		PollFailures:    pollFailures,
	}, nil
}

// RecordCommand counts one finished command.
func (m *Metrics) RecordCommand(ctx context.Context, command, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("outcome", outcome),
	)
	m.Commands.Add(ctx, 1, attrs)
	m.CommandDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordPollFailure counts one failed poll fetch for the given field.
func (m *Metrics) RecordPollFailure(ctx context.Context, field string) {
	if m == nil {
		return
	}
	m.PollFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("field", field)))
}
