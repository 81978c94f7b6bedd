package blob

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeleteResultErr(t *testing.T) {
	require.NoError(t, (&DeleteResult{Deleted: 3}).Err())

	res := &DeleteResult{Failed: []KeyError{
		{Key: "a", Code: "AccessDenied"},
		{Key: "b", Code: "InternalError"},
		{Key: "c", Code: "SlowDown"},
		{Key: "d", Code: "SlowDown"},
		{Key: "e", Code: "SlowDown"},
	}}

	err := res.Err()
	require.ErrorIs(t, err, ErrPartialDelete)
	require.ErrorContains(t, err, "a (AccessDenied), b (InternalError), c (SlowDown) and 2 more")
}
