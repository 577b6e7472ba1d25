package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrorTypeTransient, "feed request failed", 502)
	assert.Equal(t, "transient error (code 502): feed request failed", err.Error())

	wrapped := Wrap(ErrorTypeDownloadFailed, "write artifact", stderrors.New("disk full"))
	assert.Equal(t, "download_failed error: write artifact: disk full", wrapped.Error())
}

func TestTypeOfFollowsChain(t *testing.T) {
	base := New(ErrorTypeAuthExpired, "session rejected", 403)
	err := fmt.Errorf("fetch category 2163: %w", base)

	assert.Equal(t, ErrorTypeAuthExpired, TypeOf(err))
	assert.Equal(t, 403, StatusCode(err))
	assert.True(t, IsAuthExpired(err))
	assert.False(t, IsTransient(err))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(stderrors.New("plain")))
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Wrap(ErrorTypeTransient, "feed request failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeTransient))
	for _, typ := range []ErrorType{
		ErrorTypeAuthExpired,
		ErrorTypeMalformedContent,
		ErrorTypeDownloadFailed,
		ErrorTypeFormatMismatch,
		ErrorTypeInvalidInput,
	} {
		assert.False(t, IsRetryable(typ), typ)
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	for code, want := range map[int]bool{0: true, 429: true, 500: true, 503: true, 403: false, 404: false, 400: false} {
		assert.Equal(t, want, IsRetryableStatusCode(code), code)
	}
}
