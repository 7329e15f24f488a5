package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsCodeAndStatus(t *testing.T) {
	err := Clone(ErrConflict, "request already handled")
	require.NotNil(t, err)
	assert.Equal(t, ErrConflict.Code, err.Code)
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.Equal(t, "request already handled", err.Error())
	assert.Equal(t, "conflict", ErrConflict.Message)
}

func TestWrapUnwrapsCause(t *testing.T) {
	err := Wrap(context.DeadlineExceeded, ErrStoreUnavailable.Code, ErrStoreUnavailable.Status, "failed to load help request")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "failed to load help request")
	assert.True(t, Is(err, ErrStoreUnavailable))
}

func TestFromErrorNormalises(t *testing.T) {
	assert.Nil(t, FromError(nil))

	plain := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)

	wrapped := fmt.Errorf("outer: %w", Clone(ErrNotFound, "help request not found"))
	typed := FromError(wrapped)
	assert.Equal(t, http.StatusNotFound, typed.Status)
	assert.True(t, Is(wrapped, ErrNotFound))
	assert.False(t, Is(wrapped, ErrConflict))
}
