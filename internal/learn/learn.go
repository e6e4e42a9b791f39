// Package learn keeps per-household item to category choices and uses them
// to bias categorization on both structuring paths.
package learn

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/household-docs/constants"
	"github.com/joseph-ayodele/household-docs/internal/common"
	"github.com/joseph-ayodele/household-docs/internal/entity"
)

// Store persists overrides. List must return rows in first-insertion order.
type Store interface {
	Upsert(ctx context.Context, o entity.CategoryOverride) error
	List(ctx context.Context, householdID string) ([]entity.CategoryOverride, error)
}

// Mapping is one learned (normalized name, category) pair.
type Mapping struct {
	Name     string
	Category string
}

// Mappings is a household's learned table, ordered by first insertion.
type Mappings []Mapping

// Match resolves a name: exact normalized match first, then the first
// mapping whose name contains the candidate or is contained in it.
func (m Mappings) Match(name string) (string, bool) {
	lower := entity.NormalizeItemName(name)
	if lower == "" {
		return "", false
	}
	for _, e := range m {
		if e.Name == lower {
			return e.Category, true
		}
	}
	for _, e := range m {
		if strings.Contains(lower, e.Name) || strings.Contains(e.Name, lower) {
			return e.Category, true
		}
	}
	return "", false
}

// Hints returns at most n mappings for prompt building.
func (m Mappings) Hints(n int) Mappings {
	if n >= 0 && len(m) > n {
		return m[:n]
	}
	return m
}

// Item is the minimal input to BulkRecord.
type Item struct {
	Name     string
	Category string
}

type Learner struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func New(store Store, logger *slog.Logger) *Learner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Learner{store: store, logger: logger, now: time.Now}
}

// Upsert records that name belongs to category for the household. The
// latest write for a name wins.
func (l *Learner) Upsert(ctx context.Context, householdID, name, category string) error {
	v := common.NewValidator().
		Field("household_id", householdID, common.Required).
		Field("item_name", strings.TrimSpace(name), common.Required, common.MaxLength(255)).
		Field("category", strings.TrimSpace(category), common.Required, common.MaxLength(64))
	if err := v.Error(); err != nil {
		return err
	}
	o := entity.CategoryOverride{
		HouseholdID: householdID,
		ItemName:    entity.NormalizeItemName(name),
		Category:    strings.TrimSpace(category),
		UpdatedAt:   l.now().UTC(),
	}
	if err := l.store.Upsert(ctx, o); err != nil {
		return common.WrapError(err, "upsert category override")
	}
	l.logger.Debug("learn.upsert", "household_id", householdID, "item_name", o.ItemName, "category", o.Category)
	return nil
}

// GetAll loads the household's full table.
func (l *Learner) GetAll(ctx context.Context, householdID string) (Mappings, error) {
	rows, err := l.store.List(ctx, householdID)
	if err != nil {
		return nil, common.WrapError(err, "list category overrides")
	}
	out := make(Mappings, 0, len(rows))
	for _, r := range rows {
		out = append(out, Mapping{Name: r.ItemName, Category: r.Category})
	}
	return out, nil
}

// BulkRecord upserts confirmed items, skipping empty names and
// Uncategorized ones, and returns how many were recorded.
func (l *Learner) BulkRecord(ctx context.Context, householdID string, items []Item) (int, error) {
	count := 0
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		category := strings.TrimSpace(it.Category)
		if name == "" || category == "" || category == string(constants.Uncategorized) {
			continue
		}
		if err := l.Upsert(ctx, householdID, name, category); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string][]entity.CategoryOverride
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string][]entity.CategoryOverride)}
}

var errEmptyHousehold = errors.New("household id is empty")

func (s *MemoryStore) Upsert(_ context.Context, o entity.CategoryOverride) error {
	if o.HouseholdID == "" {
		return errEmptyHousehold
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows[o.HouseholdID]
	for i := range rows {
		if rows[i].ItemName == o.ItemName {
			rows[i].Category = o.Category
			rows[i].UpdatedAt = o.UpdatedAt
			return nil
		}
	}
	s.rows[o.HouseholdID] = append(rows, o)
	return nil
}

func (s *MemoryStore) List(_ context.Context, householdID string) ([]entity.CategoryOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.rows[householdID]
	out := make([]entity.CategoryOverride, len(rows))
	copy(out, rows)
	return out, nil
}
