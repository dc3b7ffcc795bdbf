package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"car_feedback/internal/domain"
)

// Open opens (or creates) the local batch store at path and applies the schema.
// ":memory:" works for throwaway runs.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// each pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id         TEXT PRIMARY KEY,
		source     TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		total      INTEGER NOT NULL,
		failed     INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_batches_created ON batches(created_at);

	CREATE TABLE IF NOT EXISTS analysis_results (
		batch_id    TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		customer_id TEXT,
		text        TEXT NOT NULL,
		rating      REAL,
		sentiment   TEXT,
		confidence  REAL NOT NULL DEFAULT 0,
		score       REAL NOT NULL DEFAULT 0,
		issues      TEXT NOT NULL DEFAULT '[]',
		failure     TEXT,
		PRIMARY KEY (batch_id, position)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) SaveBatch(ctx context.Context, b domain.Batch) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO batches (id, source, created_at, total, failed) VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.Source, b.CreatedAt.UTC(), len(b.Results), b.FailedCount(),
	); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO analysis_results
			(batch_id, position, customer_id, text, rating, sentiment, confidence, score, issues, failure)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, res := range b.Results {
		issues, mErr := json.Marshal(res.Issues)
		if mErr != nil {
			return mErr
		}
		var sentiment, failure, customerID sql.NullString
		var rating sql.NullFloat64
		if res.Failed() {
			failure = sql.NullString{String: res.Failure, Valid: true}
		} else {
			sentiment = sql.NullString{String: string(res.Sentiment), Valid: true}
		}
		if res.Review.CustomerID != nil {
			customerID = sql.NullString{String: *res.Review.CustomerID, Valid: true}
		}
		if res.Review.Rating != nil {
			rating = sql.NullFloat64{Float64: *res.Review.Rating, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx,
			b.ID, i, customerID, res.Review.Text, rating, sentiment,
			res.Confidence, res.Score, string(issues), failure,
		); err != nil {
			return fmt.Errorf("insert result %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetBatch(ctx context.Context, id string) (domain.Batch, error) {
	var b domain.Batch
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, created_at FROM batches WHERE id = ?`, id,
	).Scan(&b.ID, &b.Source, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Batch{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Batch{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_id, text, rating, sentiment, confidence, score, issues, failure
		FROM analysis_results
		WHERE batch_id = ?
		ORDER BY position`, id)
	if err != nil {
		return domain.Batch{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			res        domain.AnalysisResult
			customerID sql.NullString
			rating     sql.NullFloat64
			sentiment  sql.NullString
			issues     string
			failure    sql.NullString
		)
		if err := rows.Scan(&customerID, &res.Review.Text, &rating, &sentiment,
			&res.Confidence, &res.Score, &issues, &failure); err != nil {
			return domain.Batch{}, err
		}
		if customerID.Valid {
			v := customerID.String
			res.Review.CustomerID = &v
		}
		if rating.Valid {
			v := rating.Float64
			res.Review.Rating = &v
		}
		res.Sentiment = domain.Sentiment(sentiment.String)
		res.Failure = failure.String
		res.Issues = []domain.IssueCategory{}
		if err := json.Unmarshal([]byte(issues), &res.Issues); err != nil {
			return domain.Batch{}, fmt.Errorf("decode issues: %w", err)
		}
		b.Results = append(b.Results, res)
	}
	if err := rows.Err(); err != nil {
		return domain.Batch{}, err
	}

	b.CreatedAt = b.CreatedAt.UTC()
	b.Summary = domain.Summarize(b.Results)
	return b, nil
}

func (s *Store) ListBatches(ctx context.Context, limit int) ([]domain.BatchInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, created_at, total, failed
		FROM batches
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.BatchInfo{}
	for rows.Next() {
		var bi domain.BatchInfo
		if err := rows.Scan(&bi.ID, &bi.Source, &bi.CreatedAt, &bi.Total, &bi.Failed); err != nil {
			return nil, err
		}
		bi.CreatedAt = bi.CreatedAt.UTC()
		out = append(out, bi)
	}
	return out, rows.Err()
}
