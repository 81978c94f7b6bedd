package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// CreateQueues creates the document, identity and nosql work queues and returns
// their URLs and ARNs keyed by logical name.
// If cleanResources is true, deletes existing queues first to ensure clean state
// If cleanResources is false, reuses existing queues (preserves data)
func CreateQueues(ctx context.Context, client *sqs.Client, stage string, cleanResources bool) (urls, arns map[string]string, err error) {
	urls = make(map[string]string)
	arns = make(map[string]string)

	for _, name := range []string{QueueDocuments, QueueIdentity, QueueNoSQL} {
		queueName := ResourceName(stage, name)

		queueURL, err := createQueue(ctx, client, queueName, cleanResources)
		if err != nil {
			return nil, nil, err
		}

		attrs, err := client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
			QueueUrl:       aws.String(queueURL),
			AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get ARN of queue %s: %w", queueName, err)
		}

		urls[name] = queueURL
		arns[name] = attrs.Attributes[string(types.QueueAttributeNameQueueArn)]
	}

	return urls, arns, nil
}

func createQueue(ctx context.Context, client *sqs.Client, queueName string, cleanResources bool) (string, error) {
	// If cleanResources is true, delete existing queue first
	if cleanResources {
		if err := deleteQueueIfExists(ctx, client, queueName); err != nil {
			return "", fmt.Errorf("failed to delete existing queue %s: %w", queueName, err)
		}
	}

	createResp, err := client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(queueName),
		Attributes: map[string]string{
			string(types.QueueAttributeNameVisibilityTimeout):      VisibilityTimeoutSeconds,
			string(types.QueueAttributeNameMessageRetentionPeriod): RetentionPeriodSeconds,
		},
	})
	if err != nil {
		// If queue already exists and we're not cleaning, get its URL instead
		if !cleanResources && (strings.Contains(err.Error(), "QueueAlreadyExists") || strings.Contains(err.Error(), "already exists")) {
			getURLResp, getErr := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
				QueueName: aws.String(queueName),
			})
			if getErr != nil {
				return "", fmt.Errorf("failed to get existing queue %s: %w", queueName, getErr)
			}
			return aws.ToString(getURLResp.QueueUrl), nil
		}
		return "", fmt.Errorf("failed to create queue %s: %w", queueName, err)
	}

	return aws.ToString(createResp.QueueUrl), nil
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string                       `json:"Effect"`
	Principal map[string]string            `json:"Principal"`
	Action    string                       `json:"Action"`
	Resource  string                       `json:"Resource"`
	Condition map[string]map[string]string `json:"Condition"`
}

// allowTopicPolicy lets topicARN deliver to queueARN.
func allowTopicPolicy(queueARN, topicARN string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string]string{"Service": "sns.amazonaws.com"},
			Action:    "sqs:SendMessage",
			Resource:  queueARN,
			Condition: map[string]map[string]string{
				"ArnEquals": {"aws:SourceArn": topicARN},
			},
		}},
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal queue policy: %w", err)
	}
	return string(data), nil
}

// deleteQueueIfExists attempts to delete a queue if it exists
func deleteQueueIfExists(ctx context.Context, client *sqs.Client, queueName string) error {
	// Try to get queue URL
	getURLResp, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(queueName),
	})

	// If queue doesn't exist, we're done
	if err != nil {
		if strings.Contains(err.Error(), "NonExistentQueue") || strings.Contains(err.Error(), "does not exist") {
			return nil
		}
		// Unknown error
		return err
	}

	// Queue exists, delete it
	_, err = client.DeleteQueue(ctx, &sqs.DeleteQueueInput{
		QueueUrl: getURLResp.QueueUrl,
	})
	if err != nil {
		return err
	}

	// Wait a moment for deletion to propagate
	// SQS has eventual consistency
	time.Sleep(2 * time.Second)

	return nil
}

// DeleteQueues removes all queues created by CreateQueues
func DeleteQueues(ctx context.Context, client *sqs.Client, queueURLs map[string]string) error {
	for name, queueURL := range queueURLs {
		_, err := client.DeleteQueue(ctx, &sqs.DeleteQueueInput{
			QueueUrl: aws.String(queueURL),
		})
		if err != nil {
			return fmt.Errorf("failed to delete %s queue: %w", name, err)
		}
	}
	return nil
}
