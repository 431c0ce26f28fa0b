package handlers

import (
	"errors"
	"net/http"

	"transitwatch/internal/middleware"
	"transitwatch/internal/models"
	"transitwatch/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ReportHandler handles report-related HTTP requests
type ReportHandler struct {
	reportService *services.ReportService
	imageService  *services.ImageService
}

// NewReportHandler creates a new report handler. imageService may be nil
// when no bucket is configured.
func NewReportHandler(reportService *services.ReportService, imageService *services.ImageService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		imageService:  imageService,
	}
}

// ReportsResponse is the body of GET /api/v1/reports
type ReportsResponse struct {
	Reports []models.Report `json:"reports"`
}

// ImageUploadRequest is the body of POST /api/v1/reports/images
type ImageUploadRequest struct {
	ContentType string `json:"content_type"`
}

// ListReports handles GET /api/v1/reports
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reportService.ListReports(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list reports")
		respondError(w, "Failed to list reports", http.StatusInternalServerError)
		return
	}

	respondJSON(w, ReportsResponse{Reports: reports}, http.StatusOK)
}

// CreateReport handles POST /api/v1/reports
func (h *ReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req models.NewReport
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	report, err := h.reportService.CreateReport(ctx, userID, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAuthorMismatch):
			respondError(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, services.ErrInvalidReportType):
			respondError(w, err.Error(), http.StatusBadRequest)
		default:
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to create report")
			respondError(w, "Failed to create report", http.StatusInternalServerError)
		}
		return
	}

	respondJSON(w, report, http.StatusCreated)
}

// DeleteReport handles DELETE /api/v1/reports/{id}
func (h *ReportHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	reportID := chi.URLParam(r, "id")

	if err := h.reportService.DeleteReport(ctx, userID, reportID); err != nil {
		switch {
		case errors.Is(err, services.ErrReportNotFound):
			respondError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrNotReportOwner):
			respondError(w, err.Error(), http.StatusForbidden)
		default:
			log.Error().
				Err(err).
				Str("user_id", userID).
				Str("report_id", reportID).
				Msg("Failed to delete report")
			respondError(w, "Failed to delete report", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateImageUpload handles POST /api/v1/reports/images
func (h *ReportHandler) CreateImageUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if h.imageService == nil {
		respondError(w, "Image uploads are not configured", http.StatusServiceUnavailable)
		return
	}

	var req ImageUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	upload, err := h.imageService.CreateUpload(ctx, userID, req.ContentType)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to create image upload")
		respondError(w, "Failed to create upload URL", http.StatusInternalServerError)
		return
	}

	respondJSON(w, upload, http.StatusOK)
}
