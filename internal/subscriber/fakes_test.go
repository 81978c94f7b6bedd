package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	cogtypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/orgpurge/internal/models"
	"github.com/wolfeidau/orgpurge/internal/purge"
	"github.com/wolfeidau/orgpurge/internal/queue"
	queuemem "github.com/wolfeidau/orgpurge/internal/queue/memory"
)

const (
	testTopicARN = "arn:aws:sns:ap-southeast-2:000000000000:dev-delete_user_data"
	testQueueURL = "http://localhost:4566/000000000000/dev-delete_user_nosql"
	testTable    = "dev-user_data"
	testPoolID   = "ap-southeast-2_example"
)

// userMessages publishes each batch through a topic with a non raw subscription,
// so every returned message carries a notification envelope.
func userMessages(t *testing.T, batches ...[]models.User) []queue.Message {
	t.Helper()

	broker := queuemem.NewBroker()
	broker.Subscribe(testTopicARN, testQueueURL, false)

	for _, users := range batches {
		body, err := json.Marshal(purge.UserBatchMessage{Users: users})
		require.NoError(t, err)
		_, err = broker.Publish(context.Background(), testTopicARN, body)
		require.NoError(t, err)
	}

	return broker.Messages(testQueueURL)
}

func users(ids ...string) []models.User {
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.User{ID: models.UserID(id), Username: id, Type: models.UserTypeParticipant})
	}
	return out
}

type fakeAPIError struct{ code, message string }

func (e *fakeAPIError) Error() string                 { return e.code + ": " + e.message }
func (e *fakeAPIError) ErrorCode() string             { return e.code }
func (e *fakeAPIError) ErrorMessage() string          { return e.message }
func (e *fakeAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

type fakeCognito struct {
	mu      sync.Mutex
	users   map[string]bool
	fail    map[string]error
	deleted []string
}

func newFakeCognito(ids ...string) *fakeCognito {
	f := &fakeCognito{users: map[string]bool{}, fail: map[string]error{}}
	for _, id := range ids {
		f.users[id] = true
	}
	return f
}

func (f *fakeCognito) AdminDeleteUser(ctx context.Context, params *cognitoidentityprovider.AdminDeleteUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminDeleteUserOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if aws.ToString(params.UserPoolId) != testPoolID {
		return nil, &cogtypes.ResourceNotFoundException{Message: aws.String("pool not found")}
	}

	name := aws.ToString(params.Username)
	if err := f.fail[name]; err != nil {
		return nil, err
	}
	if !f.users[name] {
		return nil, &cogtypes.UserNotFoundException{Message: aws.String("User does not exist.")}
	}

	delete(f.users, name)
	f.deleted = append(f.deleted, name)
	return &cognitoidentityprovider.AdminDeleteUserOutput{}, nil
}

func (f *fakeCognito) remaining() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.users))
	for id := range f.users {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// fakeDynamo stores items keyed by user id then sort key and pages query results.
type fakeDynamo struct {
	mu       sync.Mutex
	items    map[string][]string
	pageSize int

	// unprocessedCalls makes the first n BatchWriteItem calls leave their last request unprocessed.
	unprocessedCalls int
	writeErr         error
	queryErr         error

	writeCalls int
	writeSizes []int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string][]string{}, pageSize: 2}
}

func (f *fakeDynamo) put(userID string, sks ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[userID] = append(f.items[userID], sks...)
	sort.Strings(f.items[userID])
}

func (f *fakeDynamo) count(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items[userID])
}

func (f *fakeDynamo) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if aws.ToString(params.TableName) != testTable {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found")}
	}
	if len(params.ExpressionAttributeValues) != 1 {
		return nil, errors.New("expected a single key condition value")
	}

	var userID string
	for _, v := range params.ExpressionAttributeValues {
		userID = v.(*types.AttributeValueMemberS).Value
	}

	sks := f.items[userID]
	start := 0
	if params.ExclusiveStartKey != nil {
		last := params.ExclusiveStartKey[SortKeyAttribute].(*types.AttributeValueMemberS).Value
		start = sort.SearchStrings(sks, last) + 1
	}
	end := min(start+f.pageSize, len(sks))

	out := &dynamodb.QueryOutput{}
	for _, sk := range sks[start:end] {
		out.Items = append(out.Items, itemKeyAttributes(userID, sk))
	}
	if end < len(sks) {
		out.LastEvaluatedKey = itemKeyAttributes(userID, sks[end-1])
	}
	return out, nil
}

func (f *fakeDynamo) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.writeCalls++
	if f.writeErr != nil {
		return nil, f.writeErr
	}

	requests := params.RequestItems[testTable]
	if len(requests) > MaxWriteItems {
		return nil, errors.New("too many items requested for the BatchWriteItem call")
	}
	keys := make(map[string]struct{}, len(requests))
	for _, r := range requests {
		userID := r.DeleteRequest.Key[PartitionKeyAttribute].(*types.AttributeValueMemberS).Value
		sk := r.DeleteRequest.Key[SortKeyAttribute].(*types.AttributeValueMemberS).Value
		if _, ok := keys[userID+"/"+sk]; ok {
			return nil, &fakeAPIError{code: "ValidationException", message: "Provided list of item keys contains duplicates"}
		}
		keys[userID+"/"+sk] = struct{}{}
	}
	f.writeSizes = append(f.writeSizes, len(requests))

	var unprocessed []types.WriteRequest
	if f.unprocessedCalls > 0 && len(requests) > 0 {
		f.unprocessedCalls--
		unprocessed = requests[len(requests)-1:]
		requests = requests[:len(requests)-1]
	}

	for _, r := range requests {
		userID := r.DeleteRequest.Key[PartitionKeyAttribute].(*types.AttributeValueMemberS).Value
		sk := r.DeleteRequest.Key[SortKeyAttribute].(*types.AttributeValueMemberS).Value
		f.items[userID] = removeString(f.items[userID], sk)
	}

	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	if len(unprocessed) > 0 {
		out.UnprocessedItems[testTable] = unprocessed
	}
	return out, nil
}

func itemKeyAttributes(userID, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		PartitionKeyAttribute: &types.AttributeValueMemberS{Value: userID},
		SortKeyAttribute:      &types.AttributeValueMemberS{Value: sk},
	}
}

func removeString(items []string, v string) []string {
	out := items[:0]
	for _, s := range items {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
