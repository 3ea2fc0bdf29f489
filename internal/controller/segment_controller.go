// internal/controller/segment_controller.go
package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/crm-backend/internal/model"
	"github.com/unclebandit/crm-backend/internal/service"
)

type SegmentController struct {
	SegmentService *service.SegmentService
}

func (c *SegmentController) CreateSegment(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var body service.SegmentInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	segment, err := c.SegmentService.Create(r.Context(), owner, body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, segment)
}

func (c *SegmentController) ListSegments(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	segments, err := c.SegmentService.List(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": segments})
}

func (c *SegmentController) GetSegment(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	segment, err := c.SegmentService.Get(r.Context(), chi.URLParam(r, "id"), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, segment)
}

func (c *SegmentController) UpdateSegment(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var body service.SegmentInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	segment, err := c.SegmentService.Update(r.Context(), chi.URLParam(r, "id"), owner, body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, segment)
}

func (c *SegmentController) DeleteSegment(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	if err := c.SegmentService.Delete(r.Context(), chi.URLParam(r, "id"), owner); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PreviewSegment counts the audience of unsaved rules.
func (c *SegmentController) PreviewSegment(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var body struct {
		Rules model.RuleTree `json:"rules"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	size, err := c.SegmentService.Preview(r.Context(), owner, body.Rules)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"audienceSize": size})
}
