// internal/controller/campaign_controller.go
package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/crm-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
}

func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	campaignID := chi.URLParam(r, "id")

	var body struct {
		CustomerID       string  `json:"customerId"`
		OverrideTemplate *string `json:"overrideTemplate"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	rendered, err := c.CampaignService.RenderPreview(r.Context(), campaignID, body.CustomerID, owner, body.OverrideTemplate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"renderedMessage": rendered,
		"usedTemplate":    body.OverrideTemplate,
		"customerId":      body.CustomerID,
	})
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var body service.CampaignInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), owner, body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	// Parse query parameters; the service applies defaults
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), owner, page, pageSize, status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	campaign, err := c.CampaignService.GetCampaign(r.Context(), chi.URLParam(r, "id"), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var body service.CampaignInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	campaign, err := c.CampaignService.UpdateCampaign(r.Context(), chi.URLParam(r, "id"), owner, body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	if err := c.CampaignService.DeleteCampaign(r.Context(), chi.URLParam(r, "id"), owner); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StartCampaign dispatches the campaign to its segment and returns the
// PENDING logs created for it.
func (c *CampaignController) StartCampaign(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	if _, err := c.CampaignService.GetCampaign(r.Context(), id, owner); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := c.CampaignService.StartDelivery(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (c *CampaignController) GetCampaignStats(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	stats, err := c.CampaignService.GetCampaignStats(r.Context(), chi.URLParam(r, "id"), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
