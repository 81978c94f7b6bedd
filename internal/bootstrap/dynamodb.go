package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wolfeidau/orgpurge/internal/subscriber"
)

// CreateUserDataTable creates the per user data table keyed by user id and sort key.
// If cleanResources is true, deletes the existing table first to ensure clean state
// If cleanResources is false, reuses the existing table (preserves data)
func CreateUserDataTable(ctx context.Context, client *dynamodb.Client, stage string, cleanResources bool) (string, error) {
	tableName := ResourceName(stage, TableUserData)

	if err := createUserDataTable(ctx, client, tableName, cleanResources); err != nil {
		return "", fmt.Errorf("failed to create user data table: %w", err)
	}

	return tableName, nil
}

func createUserDataTable(ctx context.Context, client *dynamodb.Client, tableName string, cleanResources bool) error {
	// Delete existing table if cleanResources is true
	if cleanResources {
		if err := deleteTableIfExists(ctx, client, tableName); err != nil {
			return err
		}
	}

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String(subscriber.PartitionKeyAttribute),
				KeyType:       types.KeyTypeHash,
			},
			{
				AttributeName: aws.String(subscriber.SortKeyAttribute),
				KeyType:       types.KeyTypeRange,
			},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String(subscriber.PartitionKeyAttribute),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String(subscriber.SortKeyAttribute),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	}

	_, err := client.CreateTable(ctx, input)
	if err != nil {
		// If table already exists and we're not cleaning, that's OK
		var resourceInUse *types.ResourceInUseException
		if !cleanResources && errors.As(err, &resourceInUse) {
			return nil // Table exists, reuse it
		}
		return err
	}

	// Wait for table to be active
	waiter := dynamodb.NewTableExistsWaiter(client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	}, 30*time.Second)
}

// deleteTableIfExists attempts to delete a table if it exists
func deleteTableIfExists(ctx context.Context, client *dynamodb.Client, tableName string) error {
	_, err := client.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(tableName),
	})

	// If table doesn't exist, we're done
	if err != nil {
		var resourceNotFound *types.ResourceNotFoundException
		if errors.As(err, &resourceNotFound) {
			return nil
		}
		return err
	}

	// Wait for table deletion to complete
	waiter := dynamodb.NewTableNotExistsWaiter(client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	}, 30*time.Second)
}
