package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"car_feedback/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valSentiment(r domain.AnalysisResult) any {
	if r.Failed() || r.Sentiment == "" {
		return nil
	}
	return string(r.Sentiment)
}
func valFailure(r domain.AnalysisResult) any {
	if !r.Failed() {
		return nil
	}
	return r.Failure
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// SaveBatch writes the batch header and every result in one transaction.
func (r *Repo) SaveBatch(ctx context.Context, b domain.Batch) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, insertBatchSQL,
		b.ID, b.Source, b.CreatedAt.UTC(), len(b.Results), b.FailedCount(),
	); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	for start := 0; start < len(b.Results); start += resultsPerInsert {
		end := min(start+resultsPerInsert, len(b.Results))
		if err = insertResults(ctx, tx, b.ID, start, b.Results[start:end]); err != nil {
			return fmt.Errorf("insert results: %w", err)
		}
	}
	return tx.Commit()
}

func insertResults(ctx context.Context, tx *sql.Tx, batchID string, offset int, rs []domain.AnalysisResult) error {
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*10) // 10 params per row
	for i, res := range rs {
		issues, err := json.Marshal(issueNames(res.Issues))
		if err != nil {
			return err
		}
		values = append(values, "(?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			batchID,                       // batch_id
			offset+i,                      // position
			valStr(res.Review.CustomerID), // customer_id
			res.Review.Text,               // text
			valF64(res.Review.Rating),     // rating
			valSentiment(res),             // sentiment (NULL when failed)
			res.Confidence,                // confidence
			res.Score,                     // score
			string(issues),                // issues JSON array
			valFailure(res),               // failure
		)
	}
	_, err := tx.ExecContext(ctx, insertResultsPrefix+strings.Join(values, ","), args...)
	return err
}

func issueNames(xs []domain.IssueCategory) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = string(x)
	}
	return out
}

func (r *Repo) GetBatch(ctx context.Context, id string) (domain.Batch, error) {
	var b domain.Batch
	if err := r.db.QueryRowContext(ctx, getBatchSQL, id).Scan(&b.ID, &b.Source, &b.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Batch{}, domain.ErrNotFound
		}
		return domain.Batch{}, err
	}

	rows, err := r.db.QueryContext(ctx, listResultsSQL, id)
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
			issuesRaw  []byte
			failure    sql.NullString
		)
		if err := rows.Scan(
			&customerID,
			&res.Review.Text,
			&rating,
			&sentiment,
			&res.Confidence,
			&res.Score,
			&issuesRaw,
			&failure,
		); err != nil {
			return domain.Batch{}, err
		}

		if customerID.Valid {
			s := customerID.String
			res.Review.CustomerID = &s
		}
		if rating.Valid {
			f := rating.Float64
			res.Review.Rating = &f
		}
		if sentiment.Valid {
			res.Sentiment = domain.Sentiment(sentiment.String)
		}
		if failure.Valid {
			res.Failure = failure.String
		}
		res.Issues = []domain.IssueCategory{}
		if len(issuesRaw) > 0 {
			if err := json.Unmarshal(issuesRaw, &res.Issues); err != nil {
				return domain.Batch{}, fmt.Errorf("decode issues: %w", err)
			}
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

func (r *Repo) ListBatches(ctx context.Context, limit int) ([]domain.BatchInfo, error) {
	rows, err := r.db.QueryContext(ctx, listBatchesSQL, limit)
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
