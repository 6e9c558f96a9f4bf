package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/hrygo/studypulse/plugin/study/mastery"
	"github.com/hrygo/studypulse/store"
)

type conceptMasteryRow struct {
	Owner           string        `db:"owner"`
	ConceptKey      string        `db:"concept_key"`
	ConceptName     string        `db:"concept_name"`
	Subject         string        `db:"subject"`
	Tags            string        `db:"tags"`
	MasteryLevel    int           `db:"mastery_level"`
	ConfidenceScore float64       `db:"confidence_score"`
	Status          string        `db:"status"`
	Difficulty      float64       `db:"difficulty"`
	Importance      float64       `db:"importance"`
	TotalReviews    int           `db:"total_reviews"`
	RecentScore     float64       `db:"recent_score"`
	LastReviewedTs  sql.NullInt64 `db:"last_reviewed_ts"`
	NextReviewTs    sql.NullInt64 `db:"next_review_ts"`
	RelatedConcepts string        `db:"related_concepts"`
	Prerequisites   string        `db:"prerequisites"`
	ReviewHistory   string        `db:"review_history"`
	CreatedTs       int64         `db:"created_ts"`
	UpdatedTs       int64         `db:"updated_ts"`
}

var conceptMasteryColumns = []string{
	"owner", "concept_key", "concept_name", "subject", "tags",
	"mastery_level", "confidence_score", "status", "difficulty", "importance",
	"total_reviews", "recent_score", "last_reviewed_ts", "next_review_ts",
	"related_concepts", "prerequisites", "review_history", "created_ts", "updated_ts",
}

func newConceptMasteryRow(c *mastery.ConceptMastery) (*conceptMasteryRow, error) {
	tags, err := marshalJSON(c.Tags)
	if err != nil {
		return nil, err
	}
	related, err := marshalJSON(c.RelatedConcepts)
	if err != nil {
		return nil, err
	}
	prerequisites, err := marshalJSON(c.Prerequisites)
	if err != nil {
		return nil, err
	}
	history, err := marshalJSON(c.ReviewHistory)
	if err != nil {
		return nil, err
	}
	return &conceptMasteryRow{
		Owner:           c.Owner,
		ConceptKey:      c.ConceptKey,
		ConceptName:     c.ConceptName,
		Subject:         c.Subject,
		Tags:            tags,
		MasteryLevel:    c.MasteryLevel,
		ConfidenceScore: c.ConfidenceScore,
		Status:          string(c.Status),
		Difficulty:      c.Difficulty,
		Importance:      c.Importance,
		TotalReviews:    c.TotalReviews,
		RecentScore:     c.RecentScore,
		LastReviewedTs:  toNullTs(c.LastReviewed),
		NextReviewTs:    toNullTs(c.NextReview),
		RelatedConcepts: related,
		Prerequisites:   prerequisites,
		ReviewHistory:   history,
		CreatedTs:       toTs(c.CreatedAt),
		UpdatedTs:       toTs(c.UpdatedAt),
	}, nil
}

func (r *conceptMasteryRow) args() []any {
	return []any{
		r.Owner, r.ConceptKey, r.ConceptName, r.Subject, r.Tags,
		r.MasteryLevel, r.ConfidenceScore, r.Status, r.Difficulty, r.Importance,
		r.TotalReviews, r.RecentScore, r.LastReviewedTs, r.NextReviewTs,
		r.RelatedConcepts, r.Prerequisites, r.ReviewHistory, r.CreatedTs, r.UpdatedTs,
	}
}

func (r *conceptMasteryRow) toConceptMastery() (*mastery.ConceptMastery, error) {
	tags, err := unmarshalJSON[string](r.Tags)
	if err != nil {
		return nil, errors.Wrapf(err, "concept %s tags", r.ConceptKey)
	}
	related, err := unmarshalJSON[mastery.Relation](r.RelatedConcepts)
	if err != nil {
		return nil, errors.Wrapf(err, "concept %s related concepts", r.ConceptKey)
	}
	prerequisites, err := unmarshalJSON[mastery.Relation](r.Prerequisites)
	if err != nil {
		return nil, errors.Wrapf(err, "concept %s prerequisites", r.ConceptKey)
	}
	history, err := unmarshalJSON[mastery.HistoryEntry](r.ReviewHistory)
	if err != nil {
		return nil, errors.Wrapf(err, "concept %s review history", r.ConceptKey)
	}
	return &mastery.ConceptMastery{
		Owner:           r.Owner,
		ConceptKey:      r.ConceptKey,
		ConceptName:     r.ConceptName,
		Subject:         r.Subject,
		Tags:            tags,
		MasteryLevel:    r.MasteryLevel,
		ConfidenceScore: r.ConfidenceScore,
		Status:          mastery.Status(r.Status),
		Difficulty:      r.Difficulty,
		Importance:      r.Importance,
		TotalReviews:    r.TotalReviews,
		RecentScore:     r.RecentScore,
		LastReviewed:    fromNullTs(r.LastReviewedTs),
		NextReview:      fromNullTs(r.NextReviewTs),
		RelatedConcepts: related,
		Prerequisites:   prerequisites,
		ReviewHistory:   history,
		CreatedAt:       fromTs(r.CreatedTs),
		UpdatedAt:       fromTs(r.UpdatedTs),
	}, nil
}

func (d *DB) ListConceptMasteries(ctx context.Context, find *store.FindConceptMastery) ([]*mastery.ConceptMastery, error) {
	if find == nil || find.Owner == "" {
		return nil, errors.New("owner is required")
	}
	where, args := []string{"owner = ?"}, []any{find.Owner}

	if v := find.ConceptKey; v != nil {
		where, args = append(where, "concept_key = ?"), append(args, *v)
	}
	if v := find.Subject; v != nil {
		where, args = append(where, "subject = ?"), append(args, *v)
	}
	if v := find.DueBefore; v != nil {
		where, args = append(where, "next_review_ts IS NOT NULL AND next_review_ts <= ?"), append(args, toTs(*v))
	}

	query := `SELECT ` + strings.Join(conceptMasteryColumns, ", ") + ` FROM concept_mastery WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY concept_key ASC`

	rows := []conceptMasteryRow{}
	if err := sqlx.SelectContext(ctx, d.q, &rows, d.q.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "failed to list concept masteries")
	}

	list := make([]*mastery.ConceptMastery, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toConceptMastery()
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, nil
}

// upsertStmt builds an insert that, on conflict, overwrites only updateColumns.
func upsertStmt(updateColumns []string) string {
	sets := make([]string, 0, len(updateColumns))
	for _, col := range updateColumns {
		sets = append(sets, col+" = excluded."+col)
	}
	return `INSERT INTO concept_mastery (` + strings.Join(conceptMasteryColumns, ", ") + `)
		VALUES (` + placeholders(len(conceptMasteryColumns)) + `)
		ON CONFLICT (owner, concept_key) DO UPDATE SET ` + strings.Join(sets, ", ")
}

// syncUpsertStmt overwrites the derived columns of an existing row except that
// total_reviews never decreases, and rows pinned by a mastered override are
// left alone.
func (d *DB) syncUpsertStmt() string {
	greatest := "GREATEST"
	if d.schema == "sqlite" {
		greatest = "MAX"
	}
	sets := make([]string, 0, len(store.DerivedConceptColumns))
	for _, col := range store.DerivedConceptColumns {
		if col == "total_reviews" {
			sets = append(sets, col+" = "+greatest+"(concept_mastery."+col+", excluded."+col+")")
			continue
		}
		sets = append(sets, col+" = excluded."+col)
	}
	return `INSERT INTO concept_mastery (` + strings.Join(conceptMasteryColumns, ", ") + `)
		VALUES (` + placeholders(len(conceptMasteryColumns)) + `)
		ON CONFLICT (owner, concept_key) DO UPDATE SET ` + strings.Join(sets, ", ") + `
		WHERE NOT (concept_mastery.status = '` + string(mastery.StatusMastered) + `' AND concept_mastery.next_review_ts IS NULL)`
}

// fullReplaceColumns is every column except the key and created_ts.
var fullReplaceColumns = func() []string {
	cols := make([]string, 0, len(conceptMasteryColumns))
	for _, col := range conceptMasteryColumns {
		switch col {
		case "owner", "concept_key", "created_ts":
			continue
		}
		cols = append(cols, col)
	}
	return cols
}()

func (d *DB) UpsertConceptMastery(ctx context.Context, upsert *mastery.ConceptMastery) (*mastery.ConceptMastery, error) {
	row, err := newConceptMasteryRow(upsert)
	if err != nil {
		return nil, err
	}
	if _, err := d.q.ExecContext(ctx, d.q.Rebind(upsertStmt(fullReplaceColumns)), row.args()...); err != nil {
		return nil, errors.Wrapf(err, "failed to upsert concept %s", upsert.ConceptKey)
	}

	key := upsert.ConceptKey
	list, err := d.ListConceptMasteries(ctx, &store.FindConceptMastery{Owner: upsert.Owner, ConceptKey: &key})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Wrapf(store.ErrNotFound, "concept %s", key)
	}
	return list[0], nil
}

func (d *DB) BulkUpsertConceptMasteries(ctx context.Context, upserts []*mastery.ConceptMastery) (int, error) {
	if len(upserts) == 0 {
		return 0, nil
	}
	written := 0
	err := d.RunInTx(ctx, func(txDriver store.Driver) error {
		tx := txDriver.(*DB)
		stmt, err := tx.tx.PreparexContext(ctx, tx.tx.Rebind(tx.syncUpsertStmt()))
		if err != nil {
			return errors.Wrap(err, "failed to prepare bulk upsert")
		}
		defer stmt.Close()

		for _, c := range upserts {
			row, err := newConceptMasteryRow(c)
			if err != nil {
				return err
			}
			result, err := stmt.ExecContext(ctx, row.args()...)
			if err != nil {
				return errors.Wrapf(err, "failed to upsert concept %s", c.ConceptKey)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return errors.Wrap(err, "failed to get rows affected")
			}
			written += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}
