package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vietddude/harvester/internal/core/domain"
	"github.com/vietddude/harvester/internal/infra/storage"
)

// Submitter accepts events for processing and returns their ids.
type Submitter interface {
	Submit(ctx context.Context, ev domain.Event) (string, error)
}

// DocumentReader looks up the document recorded for an event.
type DocumentReader interface {
	GetByEventID(ctx context.Context, eventID string) (*domain.Document, error)
}

// EnableEvents mounts the event intake routes:
//
//	POST /events       submit an event, 202 with its id
//	GET  /events/{id}  the document recorded for the event
func (s *Server) EnableEvents(sub Submitter, docs DocumentReader) {
	s.mux.HandleFunc("POST /events", func(w http.ResponseWriter, r *http.Request) {
		var ev domain.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed event: " + err.Error()})
			return
		}
		if ev.Type == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "event_type is required"})
			return
		}
		if ev.Payload == nil {
			ev.Payload = map[string]any{}
		}

		id, err := sub.Submit(r.Context(), ev)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"event_id": id,
			"status":   string(domain.DocumentStatusPending),
		})
	})

	s.mux.HandleFunc("GET /events/{id}", func(w http.ResponseWriter, r *http.Request) {
		doc, err := docs.GetByEventID(r.Context(), r.PathValue("id"))
		switch {
		case errors.Is(err, storage.ErrDocumentNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "event not found"})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusOK, doc)
		}
	})
}
