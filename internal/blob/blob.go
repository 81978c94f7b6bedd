// Package blob deletes objects from a blob store.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MaxKeysPerRequest is the most keys a single S3 DeleteObjects call accepts.
const MaxKeysPerRequest = 1000

// ErrPartialDelete is returned when some keys of a bulk delete failed.
var ErrPartialDelete = errors.New("some keys were not deleted")

// Deleter removes keys from a bucket. Deleting a key that does not exist is not an error.
type Deleter interface {
	BulkDelete(ctx context.Context, bucket string, keys []string) (*DeleteResult, error)
}

// DeleteResult reports the outcome of a bulk delete.
type DeleteResult struct {
	Deleted int
	Failed  []KeyError
}

// KeyError is a per key failure.
type KeyError struct {
	Key     string
	Code    string
	Message string
}

// Err returns ErrPartialDelete describing the failed keys, or nil.
func (r *DeleteResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}

	var sb strings.Builder
	for i, f := range r.Failed {
		if i == 3 {
			fmt.Fprintf(&sb, " and %d more", len(r.Failed)-i)
			break
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s (%s)", f.Key, f.Code)
	}

	return fmt.Errorf("%w: %s", ErrPartialDelete, sb.String())
}
