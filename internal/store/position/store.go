// Package position is the authoritative store for positions and their legs.
// Every state transition goes through AtomicUpdate so exactly one evaluator
// wins any race.
package position

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hedger/internal/types"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrNotFound = errors.New("position not found")
	// ErrConflict means the expected-state predicate did not match: another
	// writer transitioned the position first.
	ErrConflict = errors.New("position state conflict")
)

type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("position store: path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&positionModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: keep write contention low, monitoring reads are cheap.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

// NewStoreFromDB wraps an existing gorm handle (tests share one in-memory db).
func NewStoreFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("position store: nil db")
	}
	if err := db.AutoMigrate(&positionModel{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Insert(ctx context.Context, p types.Position) error {
	m, err := toModel(p)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	m.CreatedAtUnix = now
	m.UpdatedAtUnix = now
	return s.db.WithContext(ctx).Create(&m).Error
}

func (s *Store) Get(ctx context.Context, id string) (types.Position, error) {
	var m positionModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Position{}, ErrNotFound
	}
	if err != nil {
		return types.Position{}, err
	}
	return fromModel(m)
}

// ListByStatus returns positions in any of the given states, oldest first.
func (s *Store) ListByStatus(ctx context.Context, statuses ...types.PositionStatus) ([]types.Position, error) {
	raw := make([]string, len(statuses))
	for i, st := range statuses {
		raw[i] = string(st)
	}
	var models []positionModel
	if err := s.db.WithContext(ctx).
		Where("status IN ?", raw).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.Position, 0, len(models))
	for _, m := range models {
		p, err := fromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ListOpen returns every position the monitoring loop should evaluate.
func (s *Store) ListOpen(ctx context.Context) ([]types.Position, error) {
	return s.ListByStatus(ctx, types.PositionOpen, types.PositionActive, types.PositionClosing)
}

// AtomicUpdate applies mutate to the position iff its current status equals
// expected, as a single read-verify-write transaction. Returns ErrConflict
// when another writer got there first.
func (s *Store) AtomicUpdate(ctx context.Context, id string, expected types.PositionStatus, mutate func(*types.Position) error) (types.Position, error) {
	var result types.Position
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m positionModel
		if err := tx.Where("id = ?", id).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if m.Status != string(expected) {
			return fmt.Errorf("%w: have %s, want %s", ErrConflict, m.Status, expected)
		}
		p, err := fromModel(m)
		if err != nil {
			return err
		}
		if err := mutate(&p); err != nil {
			return err
		}
		next, err := toModel(p)
		if err != nil {
			return err
		}
		next.CreatedAtUnix = m.CreatedAtUnix
		next.UpdatedAtUnix = time.Now().Unix()
		// The status predicate re-applies inside the write so a concurrent
		// transition between read and write loses cleanly.
		res := tx.Model(&positionModel{}).
			Where("id = ? AND status = ?", id, string(expected)).
			Select("*").Omit("created_at").
			Updates(&next)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("%w: concurrent transition on %s", ErrConflict, id)
		}
		result = p
		return nil
	})
	return result, err
}
