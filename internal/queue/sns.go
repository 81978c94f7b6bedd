package queue

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/rs/zerolog/log"
)

// SNSAPI is the subset of the SNS client used here.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

var _ Publisher = (*SNSPublisher)(nil)

// SNSPublisher implements Publisher using AWS SNS.
type SNSPublisher struct {
	client SNSAPI
}

// NewSNSPublisher creates a new SNS backed publisher.
func NewSNSPublisher(client SNSAPI) *SNSPublisher {
	return &SNSPublisher{client: client}
}

// Publish puts body on the topic, compressing it when it is large.
func (p *SNSPublisher) Publish(ctx context.Context, topicARN string, body []byte) (string, error) {
	encoded, attrs, err := Encode(body)
	if err != nil {
		return "", err
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Message:  aws.String(encoded),
	}

	if len(attrs) > 0 {
		input.MessageAttributes = make(map[string]snstypes.MessageAttributeValue, len(attrs))
		for k, v := range attrs {
			input.MessageAttributes[k] = snstypes.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
	}

	output, err := p.client.Publish(ctx, input)
	if err != nil {
		log.Error().Err(err).Str("topic_arn", topicARN).Int("bytes", len(body)).Msg("Failed to publish message to SNS")
		return "", wrapAWSError(err, "failed to publish message to SNS")
	}

	messageID := aws.ToString(output.MessageId)
	log.Debug().
		Str("topic_arn", topicARN).
		Str("message_id", messageID).
		Int("bytes", len(body)).
		Msg("Message published to SNS topic")

	return messageID, nil
}
