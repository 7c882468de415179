package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Jainayushgit/store-provisioner/errors"
	"github.com/Jainayushgit/store-provisioner/provisioning"
)

func TestCallerIdentityPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/stores", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.42, 10.0.0.1")

	assert.Equal(t, "203.0.113.42", callerIdentity(r))
}

func TestCallerIdentitySingleForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/stores", nil)
	r.Header.Set("X-Forwarded-For", "198.51.100.7")

	assert.Equal(t, "198.51.100.7", callerIdentity(r))
}

func TestCallerIdentityFallsBackToPeerHost(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/stores", nil)
	r.RemoteAddr = "192.0.2.9:51234"

	assert.Equal(t, "192.0.2.9", callerIdentity(r))
}

func TestCallerIdentityUnknownOnUnparseablePeer(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/stores", nil)
	r.RemoteAddr = ""

	assert.Equal(t, "unknown", callerIdentity(r))
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{provisioning.ErrRateLimited, http.StatusTooManyRequests},
		{provisioning.ErrUnsupportedEngine, http.StatusUnprocessableEntity},
		{provisioning.ErrCapacityExhausted, http.StatusConflict},
		{provisioning.ErrNotFound, http.StatusNotFound},
		{provisioning.ErrBadRequest, http.StatusBadRequest},
		{errors.Wrap(provisioning.ErrBadRequest, "unknown engine"), http.StatusBadRequest},
		{errors.New("database on fire"), http.StatusInternalServerError},
	}

	for _, c := range cases {
		status, _ := statusForError(c.err)
		assert.Equal(t, c.want, status, "err=%v", c.err)
	}
}
