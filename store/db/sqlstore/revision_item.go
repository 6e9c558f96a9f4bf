package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/hrygo/studypulse/plugin/study/review"
	"github.com/hrygo/studypulse/store"
)

type revisionItemRow struct {
	ID             string        `db:"id"`
	Owner          string        `db:"owner"`
	Title          string        `db:"title"`
	Content        string        `db:"content"`
	Subject        string        `db:"subject"`
	Tags           string        `db:"tags"`
	EaseFactor     float64       `db:"ease_factor"`
	IntervalDays   int           `db:"interval_days"`
	Repetitions    int           `db:"repetitions"`
	LastReviewedTs sql.NullInt64 `db:"last_reviewed_ts"`
	NextReviewTs   int64         `db:"next_review_ts"`
	Status         string        `db:"status"`
	MasteryLevel   int           `db:"mastery_level"`
	ReviewHistory  string        `db:"review_history"`
	CreatedTs      int64         `db:"created_ts"`
	UpdatedTs      int64         `db:"updated_ts"`
}

const revisionItemColumns = `id, owner, title, content, subject, tags, ease_factor, interval_days, repetitions,
	last_reviewed_ts, next_review_ts, status, mastery_level, review_history, created_ts, updated_ts`

func newRevisionItemRow(item *review.RevisionItem) (*revisionItemRow, error) {
	tags, err := marshalJSON(item.Tags)
	if err != nil {
		return nil, err
	}
	history, err := marshalJSON(item.ReviewHistory)
	if err != nil {
		return nil, err
	}
	return &revisionItemRow{
		ID:             item.ID,
		Owner:          item.Owner,
		Title:          item.Title,
		Content:        item.Content,
		Subject:        item.Subject,
		Tags:           tags,
		EaseFactor:     item.EaseFactor,
		IntervalDays:   item.IntervalDays,
		Repetitions:    item.Repetitions,
		LastReviewedTs: toNullTs(item.LastReviewed),
		NextReviewTs:   toTs(item.NextReview),
		Status:         string(item.Status),
		MasteryLevel:   item.MasteryLevel,
		ReviewHistory:  history,
		CreatedTs:      toTs(item.CreatedAt),
		UpdatedTs:      toTs(item.UpdatedAt),
	}, nil
}

func (r *revisionItemRow) toRevisionItem() (*review.RevisionItem, error) {
	tags, err := unmarshalJSON[string](r.Tags)
	if err != nil {
		return nil, errors.Wrapf(err, "revision item %s tags", r.ID)
	}
	history, err := unmarshalJSON[review.HistoryEntry](r.ReviewHistory)
	if err != nil {
		return nil, errors.Wrapf(err, "revision item %s review history", r.ID)
	}
	return &review.RevisionItem{
		ID:            r.ID,
		Owner:         r.Owner,
		Title:         r.Title,
		Content:       r.Content,
		Subject:       r.Subject,
		Tags:          tags,
		EaseFactor:    r.EaseFactor,
		IntervalDays:  r.IntervalDays,
		Repetitions:   r.Repetitions,
		LastReviewed:  fromNullTs(r.LastReviewedTs),
		NextReview:    fromTs(r.NextReviewTs),
		Status:        review.Status(r.Status),
		MasteryLevel:  r.MasteryLevel,
		ReviewHistory: history,
		CreatedAt:     fromTs(r.CreatedTs),
		UpdatedAt:     fromTs(r.UpdatedTs),
	}, nil
}

func (d *DB) CreateRevisionItem(ctx context.Context, create *review.RevisionItem) (*review.RevisionItem, error) {
	if create.ID == "" {
		create.ID = uuid.NewString()
	}
	row, err := newRevisionItemRow(create)
	if err != nil {
		return nil, err
	}

	stmt := `INSERT INTO revision_item (` + revisionItemColumns + `) VALUES (` + placeholders(16) + `)`
	if _, err := d.q.ExecContext(ctx, d.q.Rebind(stmt),
		row.ID, row.Owner, row.Title, row.Content, row.Subject, row.Tags, row.EaseFactor, row.IntervalDays, row.Repetitions,
		row.LastReviewedTs, row.NextReviewTs, row.Status, row.MasteryLevel, row.ReviewHistory, row.CreatedTs, row.UpdatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create revision item")
	}
	return row.toRevisionItem()
}

func (d *DB) ListRevisionItems(ctx context.Context, find *store.FindRevisionItem) ([]*review.RevisionItem, error) {
	if find == nil || find.Owner == "" {
		return nil, errors.New("owner is required")
	}
	where, args := []string{"owner = ?"}, []any{find.Owner}

	if v := find.ID; v != nil {
		where, args = append(where, "id = ?"), append(args, *v)
	}
	if v := find.Status; v != nil {
		where, args = append(where, "status = ?"), append(args, string(*v))
	}
	if v := find.DueBefore; v != nil {
		where, args = append(where, "next_review_ts <= ?"), append(args, toTs(*v))
	}

	query := `SELECT ` + revisionItemColumns + ` FROM revision_item WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY next_review_ts ASC, id ASC`
	if find.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, find.Limit)
	}

	rows := []revisionItemRow{}
	if err := sqlx.SelectContext(ctx, d.q, &rows, d.q.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "failed to list revision items")
	}

	list := make([]*review.RevisionItem, 0, len(rows))
	for i := range rows {
		item, err := rows[i].toRevisionItem()
		if err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	return list, nil
}

func (d *DB) UpdateRevisionItem(ctx context.Context, update *review.RevisionItem) error {
	row, err := newRevisionItemRow(update)
	if err != nil {
		return err
	}

	stmt := `UPDATE revision_item SET
		title = ?, content = ?, subject = ?, tags = ?, ease_factor = ?, interval_days = ?, repetitions = ?,
		last_reviewed_ts = ?, next_review_ts = ?, status = ?, mastery_level = ?, review_history = ?, updated_ts = ?
		WHERE owner = ? AND id = ?`
	result, err := d.q.ExecContext(ctx, d.q.Rebind(stmt),
		row.Title, row.Content, row.Subject, row.Tags, row.EaseFactor, row.IntervalDays, row.Repetitions,
		row.LastReviewedTs, row.NextReviewTs, row.Status, row.MasteryLevel, row.ReviewHistory, row.UpdatedTs,
		row.Owner, row.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update revision item")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return errors.Wrapf(store.ErrNotFound, "revision item %s", row.ID)
	}
	return nil
}
