package firestore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store"
)

func TestDocID(t *testing.T) {
	assert.Equal(t, "Electronics:1", docID("1", "Electronics"))
	assert.Equal(t, "a%3Ab:c", docID("c", "a:b"))
	assert.NotEqual(t, docID("b:c", "a"), docID("c", "a:b"))
	assert.Equal(t, "user%2F1:x%2Fy", docID("x/y", "user/1"))
}

func TestWrapErr(t *testing.T) {
	assert.NoError(t, wrapErr(nil))

	for _, code := range []codes.Code{codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted} {
		assert.ErrorIs(t, wrapErr(status.Error(code, "boom")), store.ErrStoreUnavailable, code.String())
	}

	for _, err := range []error{status.Error(codes.PermissionDenied, "nope"), errors.New("plain")} {
		assert.NotErrorIs(t, wrapErr(err), store.ErrStoreUnavailable)
	}
}
