package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/xelth-com/eckplanogram/internal/layout"
	"github.com/xelth-com/eckplanogram/internal/models"
	"github.com/xelth-com/eckplanogram/internal/services/planogram"
	"github.com/xelth-com/eckplanogram/internal/services/report"
)

type createPlanogramRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	StoreRef    *string `json:"storeRef"`
	ShelfRef    *string `json:"shelfRef"`
}

type updatePlanogramRequest struct {
	Name        *string                 `json:"name"`
	Description *string                 `json:"description"`
	Status      *models.PlanogramStatus `json:"status"`
	StoreRef    *string                 `json:"storeRef"`
	ShelfRef    *string                 `json:"shelfRef"`
}

type commitLayoutRequest struct {
	Layout          layout.Layout `json:"layout"`
	ChangeNote      string        `json:"changeNote"`
	ExpectedVersion *int          `json:"expectedVersion"`
}

// planogramResponse adds the latest version number to a template
type planogramResponse struct {
	*models.PlanogramTemplate
	LatestVersion int `json:"latestVersion"`
}

// listPlanograms returns the tenant's templates, optionally filtered by ?status=
func (r *Router) listPlanograms(w http.ResponseWriter, req *http.Request) {
	status := models.PlanogramStatus(req.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		respondError(w, http.StatusBadRequest, "Unknown status")
		return
	}

	templates, err := r.planograms.ListTemplates(req.Context(), identity(req).TenantID, status)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, templates)
}

// createPlanogram creates a template with an empty layout and version 1
func (r *Router) createPlanogram(w http.ResponseWriter, req *http.Request) {
	var body createPlanogramRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	id := identity(req)
	tmpl, err := r.planograms.CreateTemplate(req.Context(), planogram.CreateTemplateInput{
		TenantID:    id.TenantID,
		Name:        body.Name,
		Description: body.Description,
		StoreRef:    body.StoreRef,
		ShelfRef:    body.ShelfRef,
		Author:      id.Subject,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, planogramResponse{PlanogramTemplate: tmpl, LatestVersion: 1})
}

// getPlanogram returns one template with its current layout
func (r *Router) getPlanogram(w http.ResponseWriter, req *http.Request) {
	templateID := mux.Vars(req)["id"]
	tmpl, err := r.planograms.GetTemplate(req.Context(), templateID, identity(req).TenantID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	latest, err := r.planograms.LatestVersion(req.Context(), tmpl.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, planogramResponse{PlanogramTemplate: tmpl, LatestVersion: latest})
}

// updatePlanogram edits template metadata; the layout is only changed through commits
func (r *Router) updatePlanogram(w http.ResponseWriter, req *http.Request) {
	var body updatePlanogramRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	tmpl, err := r.planograms.UpdateTemplate(req.Context(), mux.Vars(req)["id"], identity(req).TenantID, planogram.UpdateTemplateInput{
		Name:        body.Name,
		Description: body.Description,
		Status:      body.Status,
		StoreRef:    body.StoreRef,
		ShelfRef:    body.ShelfRef,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tmpl)
}

// deletePlanogram removes a template with its versions and scans
func (r *Router) deletePlanogram(w http.ResponseWriter, req *http.Request) {
	if err := r.planograms.DeleteTemplate(req.Context(), mux.Vars(req)["id"], identity(req).TenantID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// commitLayout saves the working layout as the next version
func (r *Router) commitLayout(w http.ResponseWriter, req *http.Request) {
	var body commitLayoutRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	id := identity(req)
	version, err := r.planograms.Commit(req.Context(), planogram.CommitInput{
		TemplateID:      mux.Vars(req)["id"],
		TenantID:        id.TenantID,
		Layout:          body.Layout,
		ChangeNote:      body.ChangeNote,
		Author:          id.Subject,
		ExpectedVersion: body.ExpectedVersion,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, version)
}

// listVersions returns the version history, newest first
func (r *Router) listVersions(w http.ResponseWriter, req *http.Request) {
	versions, err := r.planograms.ListVersions(req.Context(), mux.Vars(req)["id"], identity(req).TenantID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, versions)
}

// getVersion returns one stored layout snapshot
func (r *Router) getVersion(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	n, _ := strconv.Atoi(vars["n"])

	version, err := r.planograms.GetVersion(req.Context(), vars["id"], identity(req).TenantID, n)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, version)
}

// restoreVersion commits an old layout as a new version
func (r *Router) restoreVersion(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	n, _ := strconv.Atoi(vars["n"])

	id := identity(req)
	version, err := r.planograms.Restore(req.Context(), vars["id"], id.TenantID, n, id.Subject)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, version)
}

// shelfLabels prints QR labels for every shelf row of the committed layout
func (r *Router) shelfLabels(w http.ResponseWriter, req *http.Request) {
	tmpl, err := r.planograms.GetTemplate(req.Context(), mux.Vars(req)["id"], identity(req).TenantID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	cfg := report.DefaultLabelConfig()
	q := req.URL.Query()
	if v, err := strconv.Atoi(q.Get("cols")); err == nil && v > 0 {
		cfg.Cols = v
	}
	if v, err := strconv.Atoi(q.Get("rows")); err == nil && v > 0 {
		cfg.Rows = v
	}

	pdfBytes, err := report.GenerateShelfLabelsPDF(tmpl, r.baseURL, cfg)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Failed to generate PDF: %v", err))
		return
	}
	writePDF(w, fmt.Sprintf("shelf_labels_%s.pdf", tmpl.ID), pdfBytes)
}

func writePDF(w http.ResponseWriter, filename string, pdfBytes []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdfBytes)))
	w.Write(pdfBytes)
}
