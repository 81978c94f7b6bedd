// Package queue sends to point-to-point queues, publishes to topics and
// consumes queue messages in batches.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Sentinel errors for common error conditions
var (
	ErrThrottled     = errors.New("AWS request throttled")
	ErrQueueNotFound = errors.New("queue not found")
)

// SQS and AWS service limits
const (
	sqsMaxMessages          = 10    // SQS maximum messages per ReceiveMessage call
	sqsMaxVisibilitySeconds = 43200 // SQS maximum visibility timeout (12 hours)
	sqsMaxWaitSeconds       = 20    // SQS maximum long poll
)

// Defaults for the document purge queue.
const (
	DefaultBatchSize         = 5
	DefaultVisibilityTimeout = 600 // seconds
	DefaultWaitSeconds       = 20
	DefaultRetentionSeconds  = 3 * 24 * 60 * 60 // 3 days
)

// Message is a received queue message.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
	Attributes    map[string]string
	// ReceiveCount is the number of times the broker has delivered this message.
	ReceiveCount int
}

// Sender puts a message on a point-to-point queue and returns its id.
type Sender interface {
	Send(ctx context.Context, queueURL string, body []byte) (string, error)
}

// Publisher puts a message on a pub/sub topic and returns its id.
type Publisher interface {
	Publish(ctx context.Context, topicARN string, body []byte) (string, error)
}

// Receiver pulls messages and acknowledges the ones that were processed.
type Receiver interface {
	Receive(ctx context.Context, queueURL string, opts ReceiveOptions) ([]Message, error)
	Delete(ctx context.Context, queueURL string, receiptHandle string) error
}

// ReceiveOptions bounds a single receive call.
type ReceiveOptions struct {
	MaxMessages       int32
	VisibilityTimeout int32
	WaitSeconds       int32
}

func (o ReceiveOptions) withDefaults() ReceiveOptions {
	if o.MaxMessages <= 0 {
		o.MaxMessages = DefaultBatchSize
	}
	if o.VisibilityTimeout <= 0 {
		o.VisibilityTimeout = DefaultVisibilityTimeout
	}
	if o.WaitSeconds < 0 {
		o.WaitSeconds = 0
	}

	o.MaxMessages = min(o.MaxMessages, sqsMaxMessages)
	o.VisibilityTimeout = min(o.VisibilityTimeout, sqsMaxVisibilitySeconds)
	o.WaitSeconds = min(o.WaitSeconds, sqsMaxWaitSeconds)
	return o
}

// wrapAWSError wraps AWS SDK errors, identifying throttling errors
// Returns ErrThrottled for throttling errors, otherwise wraps the original error
func wrapAWSError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var notFound *sqstypes.QueueDoesNotExist
	if errors.As(err, &notFound) {
		return fmt.Errorf("%s: %w: %v", msg, ErrQueueNotFound, err)
	}

	// Check for common throttling error messages in error strings
	// AWS SDK v2 doesn't always use typed errors for all services
	errMsg := err.Error()
	if strings.Contains(errMsg, "ThrottlingException") ||
		strings.Contains(errMsg, "RequestLimitExceeded") ||
		strings.Contains(errMsg, "TooManyRequestsException") ||
		strings.Contains(errMsg, "Throttling") ||
		strings.Contains(errMsg, "Throttled") {
		return fmt.Errorf("%s: %w: %v", msg, ErrThrottled, err)
	}

	// Wrap other AWS errors
	return fmt.Errorf("%s: %w", msg, err)
}
