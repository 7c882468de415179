package provisioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jainayushgit/store-provisioner/errors"
)

func TestNewHandlerErrorRetryability(t *testing.T) {
	cases := []struct {
		code      ErrorCode
		retryable bool
	}{
		{ErrExternalCommandFailed, true},
		{ErrExternalCommandTimeout, true},
		{ErrReadinessTimeout, true},
		{ErrStoreNotFoundCode, false},
		{ErrUnknownAction, false},
	}

	for _, c := range cases {
		he := NewHandlerError(c.code, errors.New("boom"))
		assert.Equal(t, c.retryable, he.Retryable, "code=%s", c.code)
	}
}

func TestHandlerErrorUnwrapAndIs(t *testing.T) {
	cause := errors.New("underlying failure")
	he := NewHandlerError(ErrExternalCommandFailed, cause)

	assert.Equal(t, "underlying failure", he.Error())
	assert.True(t, errors.Is(he, cause))

	found, ok := IsHandlerError(he)
	require.True(t, ok)
	assert.Equal(t, ErrExternalCommandFailed, found.Code)
}

func TestIsHandlerErrorFalseForOtherErrors(t *testing.T) {
	_, ok := IsHandlerError(errors.New("plain error"))
	assert.False(t, ok)
}
