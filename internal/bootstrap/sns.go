package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// CreateTopic creates the user data topic. CreateTopic is idempotent, so an existing
// topic is reused unless cleanResources is set.
func CreateTopic(ctx context.Context, client *sns.Client, stage string, cleanResources bool) (string, error) {
	topicName := ResourceName(stage, TopicUserData)

	resp, err := client.CreateTopic(ctx, &sns.CreateTopicInput{
		Name: aws.String(topicName),
		Attributes: map[string]string{
			"DisplayName": fmt.Sprintf("%s - Delete User Data", stage),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create topic %s: %w", topicName, err)
	}

	if !cleanResources {
		return aws.ToString(resp.TopicArn), nil
	}

	// Recreate to drop stale subscriptions
	if err := DeleteTopic(ctx, client, aws.ToString(resp.TopicArn)); err != nil {
		return "", err
	}
	return CreateTopic(ctx, client, stage, false)
}

// SubscribeQueue subscribes a queue to the topic with envelope delivery and grants
// the topic permission to send to the queue.
func SubscribeQueue(ctx context.Context, snsClient *sns.Client, sqsClient *sqs.Client, topicARN, queueURL, queueARN string) (string, error) {
	policy, err := allowTopicPolicy(queueARN, topicARN)
	if err != nil {
		return "", err
	}

	_, err = sqsClient.SetQueueAttributes(ctx, &sqs.SetQueueAttributesInput{
		QueueUrl: aws.String(queueURL),
		Attributes: map[string]string{
			string(sqstypes.QueueAttributeNamePolicy): policy,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to set queue policy: %w", err)
	}

	resp, err := snsClient.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn:              aws.String(topicARN),
		Protocol:              aws.String("sqs"),
		Endpoint:              aws.String(queueARN),
		ReturnSubscriptionArn: true,
		Attributes: map[string]string{
			"RawMessageDelivery": "false",
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to subscribe queue %s: %w", queueARN, err)
	}

	return aws.ToString(resp.SubscriptionArn), nil
}

// DeleteTopic deletes a topic and its subscriptions. A missing topic is not an error.
func DeleteTopic(ctx context.Context, client *sns.Client, topicARN string) error {
	if topicARN == "" {
		return nil
	}

	_, err := client.DeleteTopic(ctx, &sns.DeleteTopicInput{TopicArn: aws.String(topicARN)})
	if err != nil {
		var notFound *snstypes.NotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to delete topic %s: %w", topicARN, err)
	}
	return nil
}
