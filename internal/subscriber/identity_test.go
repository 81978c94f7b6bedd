package subscriber

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/orgpurge/internal/apperr"
	"github.com/wolfeidau/orgpurge/internal/queue"
)

func TestIdentityDeleteUsers(t *testing.T) {
	ctx := context.Background()
	cognito := newFakeCognito("u-1", "u-2", "keep")
	p := NewIdentityPurger(cognito, testPoolID)

	require.NoError(t, p.DeleteUsers(ctx, users("u-1", "u-2", "gone")))
	require.Equal(t, []string{"keep"}, cognito.remaining())

	// Redelivery finds nothing left and still succeeds.
	require.NoError(t, p.DeleteUsers(ctx, users("u-1", "u-2")))
}

func TestIdentityDeleteUsersAttemptsEveryUser(t *testing.T) {
	cognito := newFakeCognito("u-1", "u-2", "u-3")
	cognito.fail["u-2"] = &fakeAPIError{code: "TooManyRequestsException"}

	p := NewIdentityPurger(cognito, testPoolID)
	err := p.DeleteUsers(context.Background(), users("u-1", "u-2", "u-3"))

	require.Error(t, err)
	require.Equal(t, apperr.KindApplication, apperr.KindOf(err))
	require.ErrorContains(t, err, "u-2")
	require.Equal(t, []string{"u-2"}, cognito.remaining())
}

func TestIdentityDeleteUsersNoPool(t *testing.T) {
	p := NewIdentityPurger(newFakeCognito(), "")
	err := p.DeleteUsers(context.Background(), users("u-1"))
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestIdentityProcessBatch(t *testing.T) {
	cognito := newFakeCognito("u-1", "u-2", "u-3")
	cognito.fail["u-3"] = &fakeAPIError{code: "InternalErrorException"}

	msgs := userMessages(t, users("u-1", "u-2"), users("u-3"))
	msgs = append(msgs, queue.Message{ID: "poison", Body: "{"})

	p := NewIdentityPurger(cognito, testPoolID)
	failed := p.ProcessBatch(context.Background(), msgs)

	require.Equal(t, []string{msgs[1].ID, "poison"}, failed)
	require.Equal(t, []string{"u-3"}, cognito.remaining())
}
