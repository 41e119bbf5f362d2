package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsFindsWrappedError(t *testing.T) {
	base := New(CodeNotFound, "store not found")
	wrapped := fmt.Errorf("resolve session: %w", base)

	got := As(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, CodeNotFound, got.Code())
	assert.Nil(t, As(errors.New("plain")))
	assert.Nil(t, As(nil))
}

func TestPublicMessageHidesInternalDetails(t *testing.T) {
	code, msg := PublicMessage(Wrap(CodeInternal, errors.New("pq: relation missing"), "persist audit"))
	assert.Equal(t, CodeInternal, code)
	assert.Equal(t, "internal server error", msg)

	code, msg = PublicMessage(New(CodeValidation, "audio file is required"))
	assert.Equal(t, CodeValidation, code)
	assert.Equal(t, "audio file is required", msg)

	code, _ = PublicMessage(errors.New("untyped"))
	assert.Equal(t, CodeInternal, code)
}

func TestMetadataFallsBackToInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, MetadataFor(Code("???")).HTTPStatus)
	assert.Equal(t, http.StatusTooManyRequests, MetadataFor(CodeRateLimit).HTTPStatus)
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("redis down")
	err := Wrap(CodeDependency, cause, "rate limiting")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "redis down")
}
