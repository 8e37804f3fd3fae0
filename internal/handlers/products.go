package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// searchProducts lists catalog products for the designer palette
func (r *Router) searchProducts(w http.ResponseWriter, req *http.Request) {
	products, err := r.planograms.SearchProducts(req.Context(), req.URL.Query().Get("q"), queryInt(req, "limit"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// getProduct returns the layout reference of a catalog product
func (r *Router) getProduct(w http.ResponseWriter, req *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(req)["id"], 10, 64)
	ref, err := r.planograms.ResolveProduct(req.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ref)
}

// syncProducts pulls catalog changes from Odoo right away
func (r *Router) syncProducts(w http.ResponseWriter, req *http.Request) {
	if r.catalog == nil {
		respondError(w, http.StatusServiceUnavailable, "Catalog sync is not configured")
		return
	}
	n, err := r.catalog.SyncProducts(req.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, fmt.Sprintf("Catalog sync failed: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"updated": n})
}
