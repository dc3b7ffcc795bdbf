package app

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"car_feedback/internal/domain"
)

/********** column alias registry **********/

var columnAliases = map[string][]string{
	"review":      {"review", "review_text", "text", "feedback", "comment"},
	"rating":      {"rating", "score", "stars"},
	"customer_id": {"customer_id", "customerid", "customer", "client_id"},
}

// resolveColumns maps each canonical column to its index in header, or -1.
func resolveColumns(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	out := make(map[string]int, len(columnAliases))
	for col, aliases := range columnAliases {
		out[col] = -1
		for _, a := range aliases {
			if i, ok := idx[a]; ok {
				out[col] = i
				break
			}
		}
	}
	return out
}

/********** CSV **********/

// LoadCSV reads a header row plus data rows. The review column is required; a header-only
// file is a valid empty batch.
func LoadCSV(r io.Reader) ([]domain.Review, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &domain.InputError{Reason: "empty input, expected a header row"}
	}
	if err != nil {
		return nil, &domain.InputError{Reason: "unreadable header", Err: err}
	}
	cols := resolveColumns(header)
	if cols["review"] < 0 {
		return nil, &domain.InputError{Column: "review", Reason: "missing required column"}
	}

	var out []domain.Review
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &domain.InputError{Row: row, Reason: "malformed row", Err: pe.Err}
			}
			return nil, &domain.InputError{Row: row, Reason: "malformed row", Err: err}
		}

		rv := domain.Review{Text: strings.TrimSpace(rec[cols["review"]])}
		if i := cols["customer_id"]; i >= 0 {
			rv.CustomerID = ptrStr(strings.TrimSpace(rec[i]))
		}
		if i := cols["rating"]; i >= 0 {
			f, err := parseRating(rec[i])
			if err != nil {
				return nil, &domain.InputError{Row: row, Column: "rating", Reason: "not a number", Err: err}
			}
			rv.Rating = f
		}
		out = append(out, rv)
	}
	return out, nil
}

/********** JSON **********/

type reviewRow struct {
	CustomerID any     `json:"customer_id"`
	Review     *string `json:"review"`
	Rating     any     `json:"rating"`
}

// LoadJSON reads {"reviews":[{"customer_id":..,"review":..,"rating":..}]}.
func LoadJSON(r io.Reader) ([]domain.Review, error) {
	var body struct {
		Reviews []reviewRow `json:"reviews"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, &domain.InputError{Reason: "invalid JSON body", Err: err}
	}

	out := make([]domain.Review, 0, len(body.Reviews))
	for i, row := range body.Reviews {
		if row.Review == nil {
			return nil, &domain.InputError{Row: i + 1, Column: "review", Reason: "missing required field"}
		}
		rv := domain.Review{Text: strings.TrimSpace(*row.Review)}
		rv.CustomerID = ptrStr(flexString(row.CustomerID))

		switch v := row.Rating.(type) {
		case nil:
		case float64:
			f := v
			rv.Rating = &f
		case string:
			f, err := parseRating(v)
			if err != nil {
				return nil, &domain.InputError{Row: i + 1, Column: "rating", Reason: "not a number", Err: err}
			}
			rv.Rating = f
		default:
			return nil, &domain.InputError{Row: i + 1, Column: "rating", Reason: fmt.Sprintf("unsupported type %T", v)}
		}
		out = append(out, rv)
	}
	return out, nil
}

/********** tiny helpers **********/

// parseRating accepts "4", "4.5", "4,5"; blank, N/A and NaN mean no rating.
func parseRating(s string) (*float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	switch strings.ToLower(s) {
	case "", "n/a", "na", "nan", "null":
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, nil
	}
	return &f, nil
}

func flexString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func ptrStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

/********** demo data **********/

// DemoReviews is the built-in sample batch.
func DemoReviews() []domain.Review {
	row := func(id, text string, rating float64) domain.Review {
		return domain.Review{CustomerID: ptrStr(id), Text: text, Rating: &rating}
	}
	return []domain.Review{
		row("1", "The car was clean but late.", 3),
		row("2", "Excellent service and very helpful staff.", 5),
		row("3", "Vehicle had a GPS issue.", 2),
		row("4", "Smooth ride, no complaints.", 4),
		row("5", "Hidden charges and rude staff.", 1),
	}
}
