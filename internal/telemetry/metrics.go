package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/wolfeidau/orgpurge"

	// WorkflowDurationName is the histogram of workflow run durations in seconds.
	WorkflowDurationName = "orgpurge.workflow.duration"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Workflow metrics
	WorkflowRunsTotal     metric.Int64Counter
	WorkflowFailuresTotal metric.Int64Counter
	WorkflowDuration      metric.Float64Histogram
	BranchFailuresTotal   metric.Int64Counter

	// Dispatch metrics
	ChunksDispatchedTotal metric.Int64Counter
	ChunksFailedTotal     metric.Int64Counter

	// Messaging metrics
	MessagesSentTotal      metric.Int64Counter
	MessagesPublishedTotal metric.Int64Counter
	MessagesProcessedTotal metric.Int64Counter
	MessagesFailedTotal    metric.Int64Counter
	ReceiveErrorsTotal     metric.Int64Counter

	// Deletion metrics
	BlobKeysDeletedTotal       metric.Int64Counter
	IdentityUsersDeletedTotal  metric.Int64Counter
	NoSQLItemsDeletedTotal     metric.Int64Counter
	NoSQLBatchRetriesTotal     metric.Int64Counter
	RelationalRowsDeletedTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// Tracer returns the tracer used for spans around deletion work.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(instrumentationName)

	m := &Metrics{}

	// Workflow metrics
	m.WorkflowRunsTotal, _ = meter.Int64Counter(
		"orgpurge.workflow.runs.total",
		metric.WithDescription("Total number of deletion workflow runs"),
		metric.WithUnit("{run}"),
	)

	m.WorkflowFailuresTotal, _ = meter.Int64Counter(
		"orgpurge.workflow.failures.total",
		metric.WithDescription("Total number of deletion workflow runs ending in the failed state"),
		metric.WithUnit("{run}"),
	)

	m.WorkflowDuration, _ = meter.Float64Histogram(
		WorkflowDurationName,
		metric.WithDescription("Duration of deletion workflow runs"),
		metric.WithUnit("s"),
	)

	m.BranchFailuresTotal, _ = meter.Int64Counter(
		"orgpurge.workflow.branch_failures.total",
		metric.WithDescription("Total number of failed per organization branches"),
		metric.WithUnit("{branch}"),
	)

	// Dispatch metrics
	m.ChunksDispatchedTotal, _ = meter.Int64Counter(
		"orgpurge.batch.chunks.total",
		metric.WithDescription("Total number of chunks dispatched"),
		metric.WithUnit("{chunk}"),
	)

	m.ChunksFailedTotal, _ = meter.Int64Counter(
		"orgpurge.batch.chunks.failed.total",
		metric.WithDescription("Total number of chunk operations that failed"),
		metric.WithUnit("{chunk}"),
	)

	// Messaging metrics
	m.MessagesSentTotal, _ = meter.Int64Counter(
		"orgpurge.messages.sent.total",
		metric.WithDescription("Total number of messages sent to queues"),
		metric.WithUnit("{message}"),
	)

	m.MessagesPublishedTotal, _ = meter.Int64Counter(
		"orgpurge.messages.published.total",
		metric.WithDescription("Total number of messages published to topics"),
		metric.WithUnit("{message}"),
	)

	m.MessagesProcessedTotal, _ = meter.Int64Counter(
		"orgpurge.messages.processed.total",
		metric.WithDescription("Total number of consumed messages processed and acknowledged"),
		metric.WithUnit("{message}"),
	)

	m.MessagesFailedTotal, _ = meter.Int64Counter(
		"orgpurge.messages.failed.total",
		metric.WithDescription("Total number of consumed messages left for redelivery"),
		metric.WithUnit("{message}"),
	)

	m.ReceiveErrorsTotal, _ = meter.Int64Counter(
		"orgpurge.messages.receive_errors.total",
		metric.WithDescription("Total number of failed receive calls"),
		metric.WithUnit("{error}"),
	)

	// Deletion metrics
	m.BlobKeysDeletedTotal, _ = meter.Int64Counter(
		"orgpurge.blob.keys_deleted.total",
		metric.WithDescription("Total number of blob keys deleted"),
		metric.WithUnit("{key}"),
	)

	m.IdentityUsersDeletedTotal, _ = meter.Int64Counter(
		"orgpurge.identity.users_deleted.total",
		metric.WithDescription("Total number of identity provider users deleted"),
		metric.WithUnit("{user}"),
	)

	m.NoSQLItemsDeletedTotal, _ = meter.Int64Counter(
		"orgpurge.nosql.items_deleted.total",
		metric.WithDescription("Total number of NoSQL items deleted"),
		metric.WithUnit("{item}"),
	)

	m.NoSQLBatchRetriesTotal, _ = meter.Int64Counter(
		"orgpurge.nosql.batch_retries.total",
		metric.WithDescription("Total number of NoSQL batch write retries for unprocessed items"),
		metric.WithUnit("{retry}"),
	)

	m.RelationalRowsDeletedTotal, _ = meter.Int64Counter(
		"orgpurge.relational.rows_deleted.total",
		metric.WithDescription("Total number of relational rows deleted"),
		metric.WithUnit("{row}"),
	)

	return m
}
