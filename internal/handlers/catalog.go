package handlers

import (
	"net/http"

	"transitwatch/internal/catalog"
	"transitwatch/internal/models"
)

// CatalogHandler serves the static reference data
type CatalogHandler struct{}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{}
}

// ListCities handles GET /api/v1/cities
func (h *CatalogHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string][]models.City{"cities": catalog.Cities()}, http.StatusOK)
}

// ListLines handles GET /api/v1/lines. With ?city_id= only the active
// lines of that city are returned.
func (h *CatalogHandler) ListLines(w http.ResponseWriter, r *http.Request) {
	lines := catalog.Lines()
	if cityID := r.URL.Query().Get("city_id"); cityID != "" {
		lines = catalog.LinesByCity(cityID)
	}
	respondJSON(w, map[string][]models.TransportLine{"lines": lines}, http.StatusOK)
}

// ListReportTypes handles GET /api/v1/report-types
func (h *CatalogHandler) ListReportTypes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string][]models.ReportType{"report_types": catalog.ReportTypes()}, http.StatusOK)
}
