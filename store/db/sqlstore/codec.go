package sqlstore

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// List-valued fields are stored as JSON text (JSONB on postgres).

func marshalJSON[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	bytes, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal column")
	}
	return string(bytes), nil
}

func unmarshalJSON[T any](raw string) ([]T, error) {
	out := []T{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal column")
	}
	return out, nil
}

// Timestamps are unix seconds.

func toTs(t time.Time) int64 {
	return t.Unix()
}

func fromTs(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}

func toNullTs(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromNullTs(ts sql.NullInt64) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := fromTs(ts.Int64)
	return &t
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
