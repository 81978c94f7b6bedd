package queue

import (
	"context"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
)

// SQSAPI is the subset of the SQS client used here.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

var (
	_ Sender   = (*SQSQueue)(nil)
	_ Receiver = (*SQSQueue)(nil)
)

// SQSQueue implements Sender and Receiver using AWS SQS.
type SQSQueue struct {
	client SQSAPI
}

// NewSQSQueue creates a new SQS backed queue.
func NewSQSQueue(client SQSAPI) *SQSQueue {
	return &SQSQueue{client: client}
}

// Send puts body on the queue, compressing it when it is large.
func (q *SQSQueue) Send(ctx context.Context, queueURL string, body []byte) (string, error) {
	encoded, attrs, err := Encode(body)
	if err != nil {
		return "", err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(encoded),
	}

	if len(attrs) > 0 {
		input.MessageAttributes = make(map[string]sqstypes.MessageAttributeValue, len(attrs))
		for k, v := range attrs {
			input.MessageAttributes[k] = sqstypes.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
	}

	output, err := q.client.SendMessage(ctx, input)
	if err != nil {
		log.Error().Err(err).Str("queue_url", queueURL).Int("bytes", len(body)).Msg("Failed to send message to SQS")
		return "", wrapAWSError(err, "failed to send message to SQS")
	}

	messageID := aws.ToString(output.MessageId)
	log.Debug().
		Str("queue_url", queueURL).
		Str("message_id", messageID).
		Int("bytes", len(body)).
		Bool("compressed", len(attrs) > 0).
		Msg("Message sent to SQS queue")

	return messageID, nil
}

// Receive pulls up to opts.MaxMessages messages, long polling for opts.WaitSeconds.
func (q *SQSQueue) Receive(ctx context.Context, queueURL string, opts ReceiveOptions) ([]Message, error) {
	opts = opts.withDefaults()

	output, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(queueURL),
		MaxNumberOfMessages:   opts.MaxMessages,
		VisibilityTimeout:     opts.VisibilityTimeout,
		WaitTimeSeconds:       opts.WaitSeconds,
		MessageAttributeNames: []string{"All"},
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
			sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		log.Error().Err(err).Str("queue_url", queueURL).Msg("Failed to receive messages from SQS")
		return nil, wrapAWSError(err, "failed to receive messages from SQS")
	}

	if len(output.Messages) == 0 {
		return nil, nil
	}

	messages := make([]Message, 0, len(output.Messages))
	for _, m := range output.Messages {
		msg := Message{
			ID:            aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
			Attributes:    make(map[string]string, len(m.MessageAttributes)),
		}

		for k, v := range m.MessageAttributes {
			msg.Attributes[k] = aws.ToString(v.StringValue)
		}

		if n, err := strconv.Atoi(m.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]); err == nil {
			msg.ReceiveCount = n
		}

		messages = append(messages, msg)
	}

	return messages, nil
}

// Delete acknowledges a processed message.
func (q *SQSQueue) Delete(ctx context.Context, queueURL string, receiptHandle string) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		log.Error().Err(err).Str("queue_url", queueURL).Msg("Failed to delete message from SQS")
		return wrapAWSError(err, "failed to delete message from SQS")
	}
	return nil
}
