package server

import (
	"net/http"

	"github.com/Jainayushgit/store-provisioner/errors"
	"github.com/Jainayushgit/store-provisioner/provisioning"
)

// statusForError maps an admission-layer error to an HTTP status code.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, provisioning.ErrRateLimited):
		return http.StatusTooManyRequests, "rate limited"
	case errors.Is(err, provisioning.ErrUnsupportedEngine):
		return http.StatusUnprocessableEntity, "engine not enabled"
	case errors.Is(err, provisioning.ErrCapacityExhausted):
		return http.StatusConflict, "active store capacity exhausted"
	case errors.Is(err, provisioning.ErrNotFound):
		return http.StatusNotFound, "store not found"
	case errors.Is(err, provisioning.ErrBadRequest):
		return http.StatusBadRequest, "bad request"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
