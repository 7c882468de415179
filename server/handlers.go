package server

import (
	"net/http"

	"github.com/Jainayushgit/store-provisioner/errors"
	"github.com/Jainayushgit/store-provisioner/logger"
	"github.com/Jainayushgit/store-provisioner/provisioning"
)

// createRequest is the POST /stores body.
type createRequest struct {
	Engine      string  `json:"engine"`
	DisplayName *string `json:"display_name,omitempty"`
}

// admissionResponse is the shared create/delete envelope.
type admissionResponse struct {
	StoreID     string `json:"store_id"`
	Status      string `json:"status"`
	Namespace   string `json:"namespace"`
	QueuedJobID string `json:"queued_job_id"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	engine := provisioning.StoreEngine(req.Engine)
	result, err := s.admission.Create(r.Context(), engine, req.DisplayName, callerIdentity(r))
	if err != nil {
		status, msg := statusForError(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusAccepted, admissionResponse{ //nolint:errcheck
		StoreID:     result.StoreID,
		Status:      string(result.Status),
		Namespace:   result.Namespace,
		QueuedJobID: result.QueuedJobID,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	storeID := r.PathValue("id")

	result, err := s.admission.Delete(r.Context(), storeID, callerIdentity(r))
	if err != nil {
		status, msg := statusForError(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusAccepted, admissionResponse{ //nolint:errcheck
		StoreID:     result.StoreID,
		Status:      string(result.Status),
		Namespace:   result.Namespace,
		QueuedJobID: result.QueuedJobID,
	})
}

// storeView is the JSON shape of a Store.
type storeView struct {
	ID          string  `json:"id"`
	Engine      string  `json:"engine"`
	DisplayName *string `json:"display_name,omitempty"`
	Namespace   string  `json:"namespace"`
	ReleaseName string  `json:"release_name"`
	Status      string  `json:"status"`
	URL         *string `json:"url,omitempty"`
	LastError   *string `json:"last_error,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func toStoreView(s *provisioning.Store) storeView {
	return storeView{
		ID:          s.ID,
		Engine:      string(s.Engine),
		DisplayName: s.DisplayName,
		Namespace:   s.Namespace,
		ReleaseName: s.ReleaseName,
		Status:      string(s.Status),
		URL:         s.URL,
		LastError:   s.LastError,
		CreatedAt:   s.CreatedAt.Format(rfc3339),
		UpdatedAt:   s.UpdatedAt.Format(rfc3339),
	}
}

const rfc3339 = "2006-01-02T15:04:05.000Z07:00"

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	stores, err := s.repo.ListStores(r.Context())
	if err != nil {
		logger.HTTPErrorw("list stores failed", logger.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	views := make([]storeView, 0, len(stores))
	for _, st := range stores {
		views = append(views, toStoreView(st))
	}
	writeJSON(w, http.StatusOK, views) //nolint:errcheck
}

// storeDetail is the GET /stores/{id} response: the store plus its most
// recent events, newest first.
type storeDetail struct {
	storeView
	Events []eventView `json:"events"`
}

type eventView struct {
	ID        int64  `json:"id"`
	EventType string `json:"event_type"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

const eventHistoryLimit = 50

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	storeID := r.PathValue("id")

	store, err := s.repo.GetStore(r.Context(), storeID)
	if errors.Is(err, provisioning.ErrNotFound) {
		writeError(w, http.StatusNotFound, "store not found")
		return
	}
	if err != nil {
		logger.HTTPErrorw("get store failed", logger.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	events, err := s.repo.ListEvents(r.Context(), storeID, eventHistoryLimit)
	if err != nil {
		logger.HTTPErrorw("list events failed", logger.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	detail := storeDetail{storeView: toStoreView(store), Events: make([]eventView, 0, len(events))}
	for _, e := range events {
		detail.Events = append(detail.Events, eventView{
			ID:        e.ID,
			EventType: e.EventType,
			Message:   e.Message,
			CreatedAt: e.CreatedAt.Format(rfc3339),
		})
	}

	writeJSON(w, http.StatusOK, detail) //nolint:errcheck
}
