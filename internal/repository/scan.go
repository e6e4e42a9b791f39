package repository

import (
	"fmt"
	"time"

	"github.com/joseph-ayodele/household-docs/internal/entity"
)

// Postgres returns DATE and TIMESTAMPTZ columns as time.Time; SQLite may
// hand back the stored text.

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
	entity.DateLayout,
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unexpected time value %T", v)
	}
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func asDate(v any) (entity.Date, error) {
	t, err := asTime(v)
	if err != nil {
		return entity.Date{}, err
	}
	return entity.DateOf(t), nil
}
