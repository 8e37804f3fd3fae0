package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/xelth-com/eckplanogram/internal/buildinfo"
	"github.com/xelth-com/eckplanogram/internal/database"
	"github.com/xelth-com/eckplanogram/internal/middleware"
	scansvc "github.com/xelth-com/eckplanogram/internal/services/compliance"
	"github.com/xelth-com/eckplanogram/internal/services/planogram"
	"github.com/xelth-com/eckplanogram/internal/utils"
	"github.com/xelth-com/eckplanogram/internal/websocket"
)

// Deps are the services the HTTP layer talks to
type Deps struct {
	DB         *database.DB
	Planograms *planogram.Service
	Scans      *scansvc.Service
	Hub        *websocket.Hub
	JWTSecret  string
	BaseURL    string
	// FrontendDir, when set, is served for every unmatched path
	FrontendDir string
}

// CatalogSyncer refreshes the product catalog on demand
type CatalogSyncer interface {
	SyncProducts(ctx context.Context) (int, error)
}

// Router wraps the mux router and the services
type Router struct {
	*mux.Router
	db         *database.DB
	planograms *planogram.Service
	scans      *scansvc.Service
	hub        *websocket.Hub
	catalog    CatalogSyncer
	retries    *utils.Deduplicator
	baseURL    string
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(deps Deps) *Router {
	r := &Router{
		Router:     mux.NewRouter(),
		db:         deps.DB,
		planograms: deps.Planograms,
		scans:      deps.Scans,
		hub:        deps.Hub,
		retries:    utils.NewDeduplicator(10 * time.Minute),
		baseURL:    deps.BaseURL,
	}
	auth := middleware.NewAuthMiddleware(deps.JWTSecret)

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	r.HandleFunc("/api/status", r.getStatus).Methods("GET")

	// Live dashboard events
	if r.hub != nil {
		r.Handle("/ws", auth(http.HandlerFunc(r.serveWs))).Methods("GET")
	}

	// API routes (protected, tenant scoped)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth)

	// Planogram templates
	api.HandleFunc("/planograms", r.listPlanograms).Methods("GET")
	api.HandleFunc("/planograms", r.createPlanogram).Methods("POST")
	api.HandleFunc("/planograms/{id}", r.getPlanogram).Methods("GET")
	api.HandleFunc("/planograms/{id}", r.updatePlanogram).Methods("PUT")
	api.HandleFunc("/planograms/{id}", r.deletePlanogram).Methods("DELETE")
	api.HandleFunc("/planograms/{id}/layout", r.commitLayout).Methods("PUT")
	api.HandleFunc("/planograms/{id}/labels.pdf", r.shelfLabels).Methods("GET")

	// Version history
	api.HandleFunc("/planograms/{id}/versions", r.listVersions).Methods("GET")
	api.HandleFunc("/planograms/{id}/versions/{n:[0-9]+}", r.getVersion).Methods("GET")
	api.HandleFunc("/planograms/{id}/versions/{n:[0-9]+}/restore", r.restoreVersion).Methods("POST")

	// Compliance scans
	api.HandleFunc("/planograms/{id}/scans", r.createScan).Methods("POST")
	api.HandleFunc("/planograms/{id}/scans", r.listScans).Methods("GET")
	api.HandleFunc("/planograms/{id}/scans/summary", r.scanSummary).Methods("GET")
	api.HandleFunc("/scans/trend", r.scanTrend).Methods("GET")
	api.HandleFunc("/scans/{scanId}", r.getScan).Methods("GET")
	api.HandleFunc("/scans/{scanId}/report.pdf", r.scanReport).Methods("GET")

	// Catalog
	api.HandleFunc("/products", r.searchProducts).Methods("GET")
	api.HandleFunc("/products/{id:[0-9]+}", r.getProduct).Methods("GET")
	api.HandleFunc("/products/sync", r.syncProducts).Methods("POST")

	// Static files for the designer UI
	if deps.FrontendDir != "" {
		if _, err := os.Stat(deps.FrontendDir); err == nil {
			r.PathPrefix("/").Handler(http.FileServer(http.Dir(deps.FrontendDir)))
		} else {
			log.Printf("⚠️ Frontend directory %s not found, static files disabled", deps.FrontendDir)
		}
	}

	return r
}

// SetCatalogSync enables the manual catalog sync endpoint
func (r *Router) SetCatalogSync(c CatalogSyncer) {
	r.catalog = c
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	status := "ok"
	if r.db != nil {
		if sqlDB, err := r.db.DB.DB(); err != nil || sqlDB.PingContext(req.Context()) != nil {
			status = "degraded"
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": status,
	})
}

// getStatus returns build and runtime information
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	clients := 0
	if r.hub != nil {
		clients = r.hub.Count()
	}
	respondJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		buildinfo.Info
		WSClients int `json:"wsClients"`
	}{"running", buildinfo.Current(), clients})
}

func (r *Router) serveWs(w http.ResponseWriter, req *http.Request) {
	id, _ := middleware.IdentityFromContext(req.Context())
	websocket.ServeWs(r.hub, w, req, id.TenantID)
}

// identity returns the authenticated caller; the auth middleware guarantees it exists
func identity(req *http.Request) middleware.Identity {
	id, _ := middleware.IdentityFromContext(req.Context())
	return id
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondServiceError maps service sentinels to HTTP status codes
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, planogram.ErrInvalidInput), errors.Is(err, scansvc.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, planogram.ErrTemplateNotFound),
		errors.Is(err, planogram.ErrVersionNotFound),
		errors.Is(err, planogram.ErrProductNotFound),
		errors.Is(err, scansvc.ErrScanNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, planogram.ErrVersionConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, scansvc.ErrScanFailed):
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("❌ Request failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
