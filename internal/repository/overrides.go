package repository

import (
	"context"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/household-docs/internal/entity"
)

const overridesTable = "category_overrides"

// OverrideRepository stores learned categories; it implements learn.Store.
type OverrideRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewOverrideRepository(db *DB, logger *slog.Logger) *OverrideRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverrideRepository{db: db, logger: logger}
}

// Upsert inserts or replaces the category for (household, item). An
// existing row keeps its id, so List order stays first-insertion order.
func (r *OverrideRepository) Upsert(ctx context.Context, o entity.CategoryOverride) error {
	q, args := r.db.builder().Insert(overridesTable).
		Columns("household_id", "item_name", "category", "updated_at").
		Values(o.HouseholdID, o.ItemName, o.Category, o.UpdatedAt.UTC()).
		OnConflict(
			entsql.ConflictColumns("household_id", "item_name"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("category")
				u.SetExcluded("updated_at")
			}),
		).
		Query()
	if err := r.db.drv.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("override upsert failed", "household_id", o.HouseholdID, "item_name", o.ItemName, "error", err)
		return err
	}
	return nil
}

func (r *OverrideRepository) List(ctx context.Context, householdID string) ([]entity.CategoryOverride, error) {
	b := r.db.builder()
	q, args := b.Select("item_name", "category", "updated_at").
		From(b.Table(overridesTable)).
		Where(entsql.EQ("household_id", householdID)).
		OrderBy(entsql.Asc("id")).
		Query()

	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, q, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.CategoryOverride
	for rows.Next() {
		o := entity.CategoryOverride{HouseholdID: householdID}
		var updated any
		if err := rows.Scan(&o.ItemName, &o.Category, &updated); err != nil {
			return nil, err
		}
		t, err := asTime(updated)
		if err != nil {
			r.logger.Warn("override updated_at unreadable", "item_name", o.ItemName, "error", err)
		}
		o.UpdatedAt = t
		out = append(out, o)
	}
	return out, rows.Err()
}
