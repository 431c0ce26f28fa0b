// Package feed mirrors the live report collection in memory and derives
// the filtered view screens display. It runs in the app on top of the
// client SDK, not in the server.
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"transitwatch/internal/broadcast"
	"transitwatch/internal/catalog"
	"transitwatch/internal/models"

	"github.com/rs/zerolog/log"
)

// Source is the backend side of the feed
type Source interface {
	SubscribeReports(ctx context.Context) (<-chan []models.Report, error)
	CreateReport(ctx context.Context, data models.NewReport) (*models.Report, error)
	DeleteReport(ctx context.Context, id string) error
}

// Store holds the latest snapshot of the report collection and the
// current filter
type Store struct {
	source Source
	now    func() time.Time

	mu      sync.RWMutex
	reports []models.Report
	filter  models.Filter
	loading bool

	changes *broadcast.Broadcaster[[]models.Report]

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an empty store waiting for its first snapshot
func New(source Source) *Store {
	return &Store{
		source:  source,
		now:     time.Now,
		reports: []models.Report{},
		loading: true,
		changes: broadcast.New[[]models.Report](),
	}
}

// Start opens the live subscription. Every snapshot replaces the whole
// list. It runs until ctx is done or Close is called.
func (s *Store) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	snapshots, err := s.source.SubscribeReports(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to reports: %w", err)
	}

	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		for reports := range snapshots {
			s.replace(reports)
		}
	}()
	return nil
}

// Close ends the live subscription
func (s *Store) Close() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Store) replace(reports []models.Report) {
	now := s.now()
	list := make([]models.Report, len(reports))
	for i, r := range reports {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
		list[i] = r
	}

	s.mu.Lock()
	s.reports = list
	s.loading = false
	s.mu.Unlock()

	log.Debug().Int("reports", len(list)).Msg("Report snapshot received")
	s.changes.Publish(copyReports(list))
}

// Subscribe calls fn with every new snapshot
func (s *Store) Subscribe(fn func([]models.Report)) func() {
	return s.changes.Subscribe(fn)
}

// Loading reports whether no snapshot has arrived yet
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Reports returns the current list, newest first
func (s *Store) Reports() []models.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyReports(s.reports)
}

// AddReport writes a new report. The list is not touched; the report
// shows up with the next snapshot.
func (s *Store) AddReport(ctx context.Context, data models.NewReport) error {
	if _, err := s.source.CreateReport(ctx, data); err != nil {
		log.Error().Err(err).Str("line_id", data.LineID).Msg("Failed to add report")
		return err
	}
	return nil
}

// DeleteReport deletes a report by ID. Whether the caller may delete it
// is left to the backend.
func (s *Store) DeleteReport(ctx context.Context, id string) error {
	if err := s.source.DeleteReport(ctx, id); err != nil {
		log.Error().Err(err).Str("report_id", id).Msg("Failed to delete report")
		return err
	}
	return nil
}

// Cities returns the cities covered by the service
func (s *Store) Cities() []models.City {
	return catalog.Cities()
}

// Lines returns every transport line
func (s *Store) Lines() []models.TransportLine {
	return catalog.Lines()
}

// LinesByCity returns the active lines of cityID
func (s *Store) LinesByCity(cityID string) []models.TransportLine {
	return catalog.LinesByCity(cityID)
}

// ReportsByLine returns the current reports whose line is exactly lineID.
// Unlike a filter, an empty lineID only matches reports without a line.
func (s *Store) ReportsByLine(lineID string) []models.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Report, 0)
	for _, r := range s.reports {
		if r.LineID == lineID {
			out = append(out, r)
		}
	}
	return out
}

// SetFilters replaces the whole filter. Fields left empty are cleared.
func (s *Store) SetFilters(f models.Filter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

// Filters returns the current filter
func (s *Store) Filters() models.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// FilteredReports applies the current filter to the current list
func (s *Store) FilteredReports() []models.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Apply(s.reports, s.filter)
}

// Apply keeps the reports matching every set field of f, in order
func Apply(reports []models.Report, f models.Filter) []models.Report {
	out := make([]models.Report, 0, len(reports))
	for i := range reports {
		if f.Match(&reports[i]) {
			out = append(out, reports[i])
		}
	}
	return out
}

func copyReports(reports []models.Report) []models.Report {
	return append([]models.Report{}, reports...)
}
