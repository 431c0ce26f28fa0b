package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"transitwatch/internal/catalog"
	"transitwatch/internal/models"
	"transitwatch/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReportService handles report-related business logic
type ReportService struct {
	reports   ReportStore
	publisher ChangePublisher
	notifier  ReportNotifier
	now       func() time.Time
}

// NewReportService creates a new report service. notifier may be nil.
func NewReportService(reports ReportStore, publisher ChangePublisher, notifier ReportNotifier) *ReportService {
	return &ReportService{
		reports:   reports,
		publisher: publisher,
		notifier:  notifier,
		now:       time.Now,
	}
}

// CreateReport stores a new report written by authorID. Missing price and
// image default to 0 and "", and both timestamps are set to now.
func (s *ReportService) CreateReport(ctx context.Context, authorID string, data models.NewReport) (*models.Report, error) {
	if data.UserID != "" && data.UserID != authorID {
		return nil, ErrAuthorMismatch
	}
	data.UserID = authorID

	if !catalog.IsValidReportType(data.Type) {
		return nil, ErrInvalidReportType
	}
	if data.LineName == "" {
		if line, ok := catalog.Line(data.LineID); ok {
			data.LineName = line.Name
		}
	}

	report := data.Build(uuid.New().String(), s.now())
	if err := s.reports.Create(ctx, &report); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	log.Info().
		Str("report_id", report.ID).
		Str("user_id", authorID).
		Str("line_id", report.LineID).
		Str("type", string(report.Type)).
		Msg("Report created")

	s.announce(ctx)

	if s.notifier != nil {
		go s.notifier.NotifyNewReport(context.WithoutCancel(ctx), &report)
	}

	return &report, nil
}

// DeleteReport removes a report. Only its author may delete it.
func (s *ReportService) DeleteReport(ctx context.Context, callerID, reportID string) error {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrReportNotFound
		}
		return fmt.Errorf("failed to get report: %w", err)
	}

	if report.UserID != callerID {
		return ErrNotReportOwner
	}

	if err := s.reports.Delete(ctx, reportID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrReportNotFound
		}
		return fmt.Errorf("failed to delete report: %w", err)
	}

	log.Info().
		Str("report_id", reportID).
		Str("user_id", callerID).
		Msg("Report deleted")

	s.announce(ctx)
	return nil
}

// ListReports returns the full collection, newest first
func (s *ReportService) ListReports(ctx context.Context) ([]models.Report, error) {
	reports, err := s.reports.ListRecent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

// announce tells live subscribers to refresh. The write already
// succeeded, so a failure here is only logged.
func (s *ReportService) announce(ctx context.Context) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishReportsChanged(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to publish reports change")
	}
}
