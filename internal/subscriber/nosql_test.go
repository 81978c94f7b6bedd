package subscriber

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/orgpurge/internal/apperr"
	"github.com/wolfeidau/orgpurge/internal/models"
)

func newTestNoSQLPurger(client DynamoDBAPI) *NoSQLPurger {
	return NewNoSQLPurger(client, NoSQLConfig{
		TableName:       testTable,
		MaxAttempts:     4,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	})
}

func TestNoSQLDeleteUsers(t *testing.T) {
	ctx := context.Background()
	dynamo := newFakeDynamo()
	dynamo.put("u-1", "profile", "prefs", "session#1", "session#2", "session#3")
	dynamo.put("u-2", "profile")
	dynamo.put("keep", "profile")

	p := newTestNoSQLPurger(dynamo)
	require.NoError(t, p.DeleteUsers(ctx, users("u-1", "u-2", "no-items")))

	require.Zero(t, dynamo.count("u-1"))
	require.Zero(t, dynamo.count("u-2"))
	require.Equal(t, 1, dynamo.count("keep"))

	// Nothing left to delete on redelivery.
	calls := len(dynamo.writeSizes)
	require.NoError(t, p.DeleteUsers(ctx, users("u-1", "u-2")))
	require.Len(t, dynamo.writeSizes, calls)
}

func TestNoSQLDeleteUsersBatchesWrites(t *testing.T) {
	dynamo := newFakeDynamo()
	for u := 0; u < 3; u++ {
		for i := 0; i < 20; i++ {
			dynamo.put(fmt.Sprintf("u-%d", u), fmt.Sprintf("item#%02d", i))
		}
	}

	p := newTestNoSQLPurger(dynamo)
	require.NoError(t, p.DeleteUsers(context.Background(), users("u-0", "u-1", "u-2")))

	require.ElementsMatch(t, []int{25, 25, 10}, dynamo.writeSizes)
}

func TestNoSQLDeleteUsersHoldingBothRelations(t *testing.T) {
	tests := []struct {
		name  string
		users []models.User
	}{
		{
			name: "adjacent",
			users: []models.User{
				{ID: "u-1", Username: "u-1", Type: models.UserTypeProfessional},
				{ID: "u-1", Username: "u-1", Type: models.UserTypeParticipant},
			},
		},
		{
			name: "separated",
			users: []models.User{
				{ID: "u-1", Username: "u-1", Type: models.UserTypeProfessional},
				{ID: "u-2", Username: "u-2", Type: models.UserTypeProfessional},
				{ID: "u-1", Username: "u-1", Type: models.UserTypeParticipant},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dynamo := newFakeDynamo()
			dynamo.put("u-1", "profile", "prefs")
			dynamo.put("u-2", "profile")

			p := newTestNoSQLPurger(dynamo)
			require.NoError(t, p.DeleteUsers(context.Background(), tt.users))

			require.Zero(t, dynamo.count("u-1"))
			require.Zero(t, dynamo.count("u-2"))
			require.Equal(t, 1, dynamo.writeCalls)
		})
	}
}

func TestFakeDynamoRejectsDuplicateKeys(t *testing.T) {
	dynamo := newFakeDynamo()
	dynamo.put("u-1", "profile")

	p := newTestNoSQLPurger(dynamo)
	_, err := p.deleteKeys(context.Background(), []itemKey{{UserID: "u-1", SK: "profile"}, {UserID: "u-1", SK: "profile"}})

	require.Equal(t, "ValidationException", apiErrorCode(err))
	require.Equal(t, 1, dynamo.writeCalls)
	require.Equal(t, 1, dynamo.count("u-1"))
}

func TestNoSQLRetriesUnprocessedItems(t *testing.T) {
	dynamo := newFakeDynamo()
	dynamo.put("u-1", "a", "b", "c")
	dynamo.unprocessedCalls = 2

	p := newTestNoSQLPurger(dynamo)
	require.NoError(t, p.DeleteUsers(context.Background(), users("u-1")))

	require.Zero(t, dynamo.count("u-1"))
	require.Equal(t, []int{3, 1, 1}, dynamo.writeSizes)
}

func TestNoSQLGivesUpAfterMaxAttempts(t *testing.T) {
	dynamo := newFakeDynamo()
	dynamo.put("u-1", "a")
	dynamo.unprocessedCalls = 100

	p := newTestNoSQLPurger(dynamo)
	err := p.DeleteUsers(context.Background(), users("u-1"))

	require.Equal(t, apperr.KindApplication, apperr.KindOf(err))
	require.ErrorIs(t, err, errUnprocessedItems)
	require.Len(t, dynamo.writeSizes, 4)
	require.Equal(t, 1, dynamo.count("u-1"))
}

func TestNoSQLErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("table not configured", func(t *testing.T) {
		p := NewNoSQLPurger(newFakeDynamo(), NoSQLConfig{})
		err := p.DeleteUsers(ctx, users("u-1"))
		require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("query fails", func(t *testing.T) {
		dynamo := newFakeDynamo()
		dynamo.queryErr = errors.New("connection reset")

		err := newTestNoSQLPurger(dynamo).DeleteUsers(ctx, users("u-1"))
		require.Equal(t, apperr.KindApplication, apperr.KindOf(err))
	})

	t.Run("write fails without retry", func(t *testing.T) {
		dynamo := newFakeDynamo()
		dynamo.put("u-1", "a")
		dynamo.writeErr = &fakeAPIError{code: "ValidationException"}

		err := newTestNoSQLPurger(dynamo).DeleteUsers(ctx, users("u-1"))
		require.Equal(t, apperr.KindApplication, apperr.KindOf(err))
		require.Equal(t, 1, dynamo.writeCalls)
	})
}

func TestNoSQLProcessBatch(t *testing.T) {
	dynamo := newFakeDynamo()
	dynamo.put("u-1", "profile")
	dynamo.put("u-2", "profile")

	msgs := userMessages(t, users("u-1"), users("u-2"))
	p := newTestNoSQLPurger(dynamo)

	require.Empty(t, p.ProcessBatch(context.Background(), msgs))
	require.Zero(t, dynamo.count("u-1"))
	require.Zero(t, dynamo.count("u-2"))
}

func TestNoSQLProcessBatchUserHoldingBothRelations(t *testing.T) {
	dynamo := newFakeDynamo()
	dynamo.put("u-1", "profile", "prefs")

	msgs := userMessages(t, []models.User{
		{ID: "u-1", Username: "u-1", Type: models.UserTypeProfessional},
		{ID: "u-1", Username: "u-1", Type: models.UserTypeParticipant},
	})
	p := newTestNoSQLPurger(dynamo)

	require.Empty(t, p.ProcessBatch(context.Background(), msgs))
	require.Zero(t, dynamo.count("u-1"))
}

func TestDecodeUsers(t *testing.T) {
	msgs := userMessages(t, users("u-1", "u-2"))
	require.Len(t, msgs, 1)

	got, err := DecodeUsers(msgs[0])
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.EqualValues(t, "u-1", got[0].ID)
}
