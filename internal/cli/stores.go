package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sos-dispatch-api/internal/models"
	"github.com/noah-isme/sos-dispatch-api/internal/repository"
	"github.com/noah-isme/sos-dispatch-api/pkg/config"
	"github.com/noah-isme/sos-dispatch-api/pkg/database"
)

type requestStore interface {
	Create(ctx context.Context, req *models.HelpRequest) error
	GetByID(ctx context.Context, id string) (*models.HelpRequest, error)
	List(ctx context.Context, filter models.HelpRequestFilter) ([]models.HelpRequest, error)
	Update(ctx context.Context, req *models.HelpRequest) error
}

type userStore interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	ListVerifiedAvailable(ctx context.Context) ([]string, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateLocation(ctx context.Context, id string, location models.Location, updatedAt time.Time) error
	SetVerified(ctx context.Context, id string, verified bool, updatedAt time.Time) error
	SetAvailability(ctx context.Context, id string, available bool, updatedAt time.Time) error
}

// stores bundles the repositories selected by the configured driver. db is nil
// for the memory driver.
type stores struct {
	driver   string
	db       *sqlx.DB
	requests requestStore
	users    userStore
}

func (s *stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *stores) ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func openDB(cfg *config.Config) (*sqlx.DB, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		return database.NewPostgres(cfg.Database)
	case config.StoreDriverSQLite:
		return database.NewSQLite(cfg.SQLite)
	default:
		return nil, fmt.Errorf("store driver %q has no database", cfg.Store.Driver)
	}
}

func openStores(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*stores, error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		s := &stores{
			driver:   cfg.Store.Driver,
			requests: repository.NewMemoryHelpRequestRepository(),
			users:    repository.NewMemoryUserRepository(),
		}
		if cfg.Store.SeedFile != "" {
			data, err := LoadSeed(cfg.Store.SeedFile)
			if err != nil {
				return nil, err
			}
			result, err := ApplySeed(ctx, data, s.users, s.requests)
			if err != nil {
				return nil, err
			}
			logr.Info("memory store seeded", zap.String("file", cfg.Store.SeedFile), zap.Int("users", result.Users), zap.Int("help_requests", result.HelpRequests))
		}
		return s, nil
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	if cfg.Store.Driver == config.StoreDriverSQLite {
		applied, err := database.Migrate(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		logr.Debug("sqlite schema ready", zap.Strings("migrations", applied))
	}

	return &stores{
		driver:   cfg.Store.Driver,
		db:       db,
		requests: repository.NewHelpRequestRepository(db),
		users:    repository.NewUserRepository(db),
	}, nil
}
