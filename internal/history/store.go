// Package history is the metrics/history store: every completed route is
// recorded, feedback accumulates into per-source accuracy, and the
// aggregates feed the confidence normalizer and the adaptive strategy. All
// other components receive these numbers as explicit inputs; nothing else
// reads the underlying tables directly.
package history

import (
	"sync"

	"go.uber.org/zap"

	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/internal/storage/sqlite"
	"github.com/askroute/backend/pkg/logger"
)

type Store struct {
	db              *sqlite.Client
	defaultAccuracy float64

	mu       sync.RWMutex
	accuracy map[string]float64
}

func New(db *sqlite.Client, defaultAccuracy float64) *Store {
	s := &Store{
		db:              db,
		defaultAccuracy: defaultAccuracy,
		accuracy:        map[string]float64{},
	}
	s.refreshAccuracy()
	return s
}

// Record persists one completed route and its per-source contributions.
// Failures here are logged, never surfaced: losing a history row must not
// fail the request that produced it.
func (s *Store) Record(record models.RouteRecord, sources []models.RouteSource) {
	if err := s.db.InsertRouteRecord(&record); err != nil {
		logger.Warn("Failed to record route", zap.String("route_id", record.ID), zap.Error(err))
		return
	}
	for i := range sources {
		sources[i].RouteID = record.ID
		if err := s.db.InsertRouteSource(&sources[i]); err != nil {
			logger.Warn("Failed to record route source",
				zap.String("route_id", record.ID),
				zap.String("source", sources[i].Source),
				zap.Error(err),
			)
		}
	}
}

// Feedback stores outcome feedback and folds it into the accuracy snapshot.
func (s *Store) Feedback(fb models.Feedback) error {
	if err := s.db.StoreFeedback(&fb); err != nil {
		return err
	}
	s.refreshAccuracy()
	return nil
}

// SourceAccuracy returns a copy of the current accuracy snapshot. Sources
// with no feedback yet fall back to the default when the normalizer looks
// them up, so absent keys are fine.
func (s *Store) SourceAccuracy() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]float64, len(s.accuracy))
	for source, ratio := range s.accuracy {
		snapshot[source] = ratio
	}
	return snapshot
}

func (s *Store) Performance(queryType models.QueryType) map[string]models.SourcePerformance {
	perf, err := s.db.SourcePerformance(queryType)
	if err != nil {
		logger.Warn("Failed to read source performance", zap.Error(err))
		return map[string]models.SourcePerformance{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for source, p := range perf {
		if ratio, ok := s.accuracy[source]; ok {
			p.Accuracy = ratio
		} else {
			p.Accuracy = s.defaultAccuracy
		}
		perf[source] = p
	}
	return perf
}

func (s *Store) History(userID string, limit int) ([]models.RouteRecord, error) {
	return s.db.GetRouteHistory(userID, limit)
}

func (s *Store) refreshAccuracy() {
	accuracy, err := s.db.SourceAccuracy()
	if err != nil {
		logger.Warn("Failed to refresh source accuracy", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.accuracy = accuracy
	s.mu.Unlock()
}
