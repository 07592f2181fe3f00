package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/capability.report/internal/analysis"
	"github.com/banshee-data/capability.report/internal/spc"
)

// ErrRunNotFound is returned when no stored run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is one line of the recent-runs listing.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	Analyst     string    `json:"analyst,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	GroupCount  int       `json:"group_count"`
	Accepted    int       `json:"accepted"`
	Complete    bool      `json:"complete"`
	MeanOfMeans *float64  `json:"mean_of_means,omitempty"`
	EstimatedSD *float64  `json:"estimated_sd,omitempty"`
	WorstCPK    *float64  `json:"worst_cpk,omitempty"`
	LimitPairs  int       `json:"limit_pairs"`
	GoodPairs   int       `json:"good_pairs"`
}

// SaveReport stores rep and its per-limit results in one transaction.
// Saving a run ID twice is an error.
func (db *DB) SaveReport(ctx context.Context, rep *analysis.Report) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	var mean, avgRange, sd sql.NullFloat64
	if s := rep.Summary; s != nil {
		mean = sql.NullFloat64{Float64: s.MeanOfMeans, Valid: true}
		avgRange = sql.NullFloat64{Float64: s.AverageRange, Valid: true}
		sd = sql.NullFloat64{Float64: s.EstimatedSD, Valid: true}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs (
			run_id, analyst, created_at, group_count, accepted, complete,
			subgroup_size, mean_of_means, average_range, estimated_sd, report_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, rep.Analyst, rep.CreatedAt.UnixNano(), rep.GroupCount, rep.Accepted, rep.Complete,
		rep.SubgroupSize, mean, avgRange, sd, string(body),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rep.RunID, err)
	}

	for i, l := range rep.Results {
		var cpl, cpu, cpk sql.NullFloat64
		var verdict, kind sql.NullString
		if r := l.Result; r != nil {
			cpl = sql.NullFloat64{Float64: r.CPL, Valid: true}
			cpu = sql.NullFloat64{Float64: r.CPU, Valid: true}
			cpk = sql.NullFloat64{Float64: r.CPK, Valid: true}
			verdict = sql.NullString{String: string(r.Verdict), Valid: true}
		}
		if l.ErrorKind != "" {
			kind = sql.NullString{String: l.ErrorKind, Valid: true}
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO limit_results (
				run_id, position, lcl, ucl, cpl, cpu, cpk, verdict, error_kind
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rep.RunID, i, l.Limits.LCL, l.Limits.UCL, cpl, cpu, cpk, verdict, kind,
		)
		if err != nil {
			return fmt.Errorf("insert limit result %d of run %s: %w", i, rep.RunID, err)
		}
	}
	return tx.Commit()
}

// GetReport loads a stored run.
func (db *DB) GetReport(ctx context.Context, runID string) (*analysis.Report, error) {
	var body string
	err := db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE run_id = ?`, runID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	var rep analysis.Report
	if err := json.Unmarshal([]byte(body), &rep); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &rep, nil
}

// ListRuns returns up to limit runs, newest first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := db.QueryContext(ctx, `SELECT
			r.run_id, r.analyst, r.created_at, r.group_count, r.accepted, r.complete,
			r.mean_of_means, r.estimated_sd,
			(SELECT MIN(l.cpk) FROM limit_results l WHERE l.run_id = r.run_id),
			(SELECT COUNT(*) FROM limit_results l WHERE l.run_id = r.run_id),
			(SELECT COUNT(*) FROM limit_results l WHERE l.run_id = r.run_id AND l.verdict = ?)
		FROM runs r
		ORDER BY r.created_at DESC, r.run_id
		LIMIT ?`, string(spc.VerdictGood), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var (
			s             RunSummary
			created       int64
			mean, sd, cpk sql.NullFloat64
		)
		if err := rows.Scan(
			&s.RunID, &s.Analyst, &created, &s.GroupCount, &s.Accepted, &s.Complete,
			&mean, &sd, &cpk, &s.LimitPairs, &s.GoodPairs,
		); err != nil {
			return nil, err
		}
		s.CreatedAt = time.Unix(0, created).UTC()
		s.MeanOfMeans = nullFloat(mean)
		s.EstimatedSD = nullFloat(sd)
		s.WorstCPK = nullFloat(cpk)
		runs = append(runs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// DeleteRun removes a run and its limit results.
func (db *DB) DeleteRun(ctx context.Context, runID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
