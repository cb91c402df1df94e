package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cuetprep/examd/internal/config"
	"github.com/cuetprep/examd/internal/model"
	"github.com/cuetprep/examd/internal/repository"
)

var (
	ErrTestNotFound     = errors.New("test not found")
	ErrTestNotPublished = errors.New("test is not published")
	ErrNoQuestions      = errors.New("test has no questions")
)

// CatalogService loads test definitions. Published definitions live in Redis
// as the fast lane; PostgreSQL is the fallback, and any fallback hit re-warms
// the cache.
type CatalogService struct {
	testRepo *repository.TestRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(testRepo *repository.TestRepository, rdb *redis.Client, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		testRepo: testRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "catalog_service").Logger(),
	}
}

// GetDefinition returns the full definition (answer key included) for a
// published test. Never expose the return value to candidates directly; use
// GetPaper for that.
func (s *CatalogService) GetDefinition(ctx context.Context, testID uuid.UUID) (*model.TestDefinition, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.TestDefinitionKey(testID.String())).Result()
	if err == nil {
		var def model.TestDefinition
		if err := json.Unmarshal([]byte(raw), &def); err == nil {
			return &def, nil
		}
		// Corrupt cache entry: fall through to PostgreSQL and re-warm.
		s.log.Warn().Str("test_id", testID.String()).Msg("Corrupt definition cache entry, reloading from database")
	} else if err != redis.Nil {
		s.log.Warn().Err(err).Msg("Redis unavailable, falling back to database")
	}

	def, err := s.loadPublished(ctx, testID)
	if err != nil {
		return nil, err
	}

	// Self-heal the cache so the next read stays off PostgreSQL.
	if err := s.warmCache(ctx, def); err != nil {
		s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Cache re-warm failed")
	}

	return def, nil
}

// GetPaper returns the candidate-safe paper for a published test.
func (s *CatalogService) GetPaper(ctx context.Context, testID uuid.UUID) (*model.TestPaper, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.TestPaperKey(testID.String())).Result()
	if err == nil {
		var paper model.TestPaper
		if err := json.Unmarshal([]byte(raw), &paper); err == nil {
			return &paper, nil
		}
	}

	def, err := s.GetDefinition(ctx, testID)
	if err != nil {
		return nil, err
	}
	return def.Paper(), nil
}

// ListPublished returns the catalog of published tests, without questions.
func (s *CatalogService) ListPublished(ctx context.Context) ([]model.TestDefinition, error) {
	return s.testRepo.ListPublished(ctx)
}

// PrewarmAllCaches loads every published test into Redis on startup so the
// first wave of session starts never races a cold cache.
func (s *CatalogService) PrewarmAllCaches(ctx context.Context) error {
	tests, err := s.testRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published tests: %w", err)
	}

	warmed := 0
	for _, t := range tests {
		def, err := s.testRepo.GetByID(ctx, t.ID)
		if err != nil {
			s.log.Error().Err(err).Str("test_id", t.ID.String()).Msg("Prewarm load failed, skipping")
			continue
		}
		if len(def.Questions) == 0 {
			s.log.Warn().Str("test_id", t.ID.String()).Msg("Published test has no questions, skipping prewarm")
			continue
		}
		if err := s.warmCache(ctx, def); err != nil {
			s.log.Error().Err(err).Str("test_id", t.ID.String()).Msg("Prewarm cache write failed")
			continue
		}
		warmed++
	}

	s.log.Info().Int("count", warmed).Msg("Test caches prewarmed")
	return nil
}

func (s *CatalogService) loadPublished(ctx context.Context, testID uuid.UUID) (*model.TestDefinition, error) {
	def, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	if def.Status != model.TestStatusPublished {
		return nil, ErrTestNotPublished
	}
	if len(def.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	return def, nil
}

// warmCache writes both the full definition and the candidate-safe paper via
// a pipeline so the two keys never diverge.
func (s *CatalogService) warmCache(ctx context.Context, def *model.TestDefinition) error {
	defJSON, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	paperJSON, err := json.Marshal(def.Paper())
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.TestDefinitionKey(def.ID.String()), defJSON, 0)
	pipe.Set(ctx, config.CacheKey.TestPaperKey(def.ID.String()), paperJSON, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("test_id", def.ID.String()).
		Int("questions", len(def.Questions)).
		Msg("Cache warmed")
	return nil
}
