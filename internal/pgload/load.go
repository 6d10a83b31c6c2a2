// Package pgload loads one analysis run into PostgreSQL: the insights
// document into analysis_runs and the enriched Parquet tables into
// enriched_patients and enriched_encounters.
package pgload

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math/big"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"hospitalstats/internal/insights"
	"hospitalstats/internal/parquetio"
)

//go:embed schema.sql
var Schema string

const DefaultBatchSize = 500

var patientColumns = []string{
	"run_id", "id", "birth_date", "death_date", "age", "age_group",
	"gender", "race", "ethnicity", "marital", "state", "county", "city",
}

var encounterColumns = []string{
	"run_id", "id", "patient_id", "payer_id", "organization_id", "encounter_class",
	"description", "reason_description", "start_at", "stop_at",
	"base_encounter_cost", "total_claim_cost", "payer_coverage", "duration_hours",
	"coverage_rate", "out_of_pocket", "year", "month", "day_of_week", "hour",
}

// Connect opens a small pool and verifies the server is reachable.
func Connect(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection: %w", err)
	}
	poolConfig.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the run tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

type Loader struct {
	pool      *pgxpool.Pool
	batchSize int
}

func NewLoader(pool *pgxpool.Pool, batchSize int) *Loader {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Loader{pool: pool, batchSize: batchSize}
}

type Result struct {
	RunID      uuid.UUID
	Patients   int64
	Encounters int64
	Elapsed    time.Duration
}

// Load stores doc and the enriched Parquet files in dir. Loading the same
// run again replaces it.
func (l *Loader) Load(ctx context.Context, doc *insights.Document, dir string) (Result, error) {
	start := time.Now()
	res := Result{RunID: doc.Run.RunID}

	if err := l.StoreRun(ctx, doc); err != nil {
		return res, err
	}

	var err error
	res.Patients, err = l.LoadPatients(ctx, doc.Run.RunID, filepath.Join(dir, parquetio.PatientsFile))
	if err != nil {
		l.discardRun(ctx, doc.Run.RunID)
		return res, err
	}
	res.Encounters, err = l.LoadEncounters(ctx, doc.Run.RunID, filepath.Join(dir, parquetio.EncountersFile))
	if err != nil {
		l.discardRun(ctx, doc.Run.RunID)
		return res, err
	}
	res.Elapsed = time.Since(start)

	log.Info().
		Str("run_id", res.RunID.String()).
		Int64("patients", res.Patients).
		Int64("encounters", res.Encounters).
		Dur("elapsed", res.Elapsed).
		Msg("Run loaded into PostgreSQL")
	return res, nil
}

// StoreRun replaces the analysis_runs row for doc's run. Enriched rows of a
// previous load of the same run are removed by the cascade.
func (l *Loader) StoreRun(ctx context.Context, doc *insights.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal insights: %w", err)
	}
	failed := make([]string, 0, len(doc.Errors))
	for name := range doc.Errors {
		failed = append(failed, name)
	}
	sort.Strings(failed)

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	runID := toPgUUID(doc.Run.RunID)
	if _, err := tx.Exec(ctx, `DELETE FROM analysis_runs WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("delete previous run: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO analysis_runs (run_id, generated_at, reference_time, insights, failed_sections)
		 VALUES ($1, $2, $3, $4, $5)`,
		runID,
		pgtype.Timestamptz{Time: doc.Run.GeneratedAt, Valid: true},
		pgtype.Timestamptz{Time: doc.Run.ReferenceTime, Valid: true},
		string(data),
		failed,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// discardRun removes a run whose tables failed to load. Batches already
// committed go with it through the cascade. It still runs when ctx was
// cancelled.
func (l *Loader) discardRun(ctx context.Context, runID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if _, err := l.pool.Exec(ctx, `DELETE FROM analysis_runs WHERE run_id = $1`, toPgUUID(runID)); err != nil {
		log.Error().Err(err).Str("run_id", runID.String()).Msg("Partial run left in PostgreSQL")
		return
	}
	log.Warn().Str("run_id", runID.String()).Msg("Partial run removed")
}

func (l *Loader) LoadPatients(ctx context.Context, runID uuid.UUID, path string) (int64, error) {
	return copyParquet(ctx, l, "enriched_patients", patientColumns, path, runID,
		func(r parquetio.PatientRow) string { return r.RunID },
		func(id pgtype.UUID, r parquetio.PatientRow) []any {
			return []any{
				id, sanitizeUTF8(r.ID), toPgDate(r.BirthDate), toPgDate(r.DeathDate),
				floatToNumeric(r.Age), optToPgText(r.AgeGroup),
				sanitizeUTF8(r.Gender), sanitizeUTF8(r.Race), sanitizeUTF8(r.Ethnicity),
				sanitizeUTF8(r.Marital), sanitizeUTF8(r.State), sanitizeUTF8(r.County), sanitizeUTF8(r.City),
			}
		})
}

func (l *Loader) LoadEncounters(ctx context.Context, runID uuid.UUID, path string) (int64, error) {
	return copyParquet(ctx, l, "enriched_encounters", encounterColumns, path, runID,
		func(r parquetio.EncounterRow) string { return r.RunID },
		func(id pgtype.UUID, r parquetio.EncounterRow) []any {
			return []any{
				id, sanitizeUTF8(r.ID), sanitizeUTF8(r.PatientID), sanitizeUTF8(r.PayerID),
				sanitizeUTF8(r.OrganizationID), sanitizeUTF8(r.Class), sanitizeUTF8(r.Description),
				optToPgText(r.ReasonDescription), toPgTimestamptz(r.Start), toPgTimestamptz(r.Stop),
				floatToNumeric(r.BaseCost), floatToNumeric(r.TotalClaimCost), floatToNumeric(r.PayerCoverage),
				floatToNumeric(r.DurationHours), floatToNumeric(&r.CoverageRate), floatToNumeric(r.OutOfPocket),
				toPgInt4(r.Year), toPgInt4(r.Month), optToPgText(r.DayOfWeek), toPgInt4(r.Hour),
			}
		})
}

// copyParquet streams a Parquet file into table, committing one COPY per
// batch of l.batchSize rows. Every row must belong to runID.
func copyParquet[T any](
	ctx context.Context,
	l *Loader,
	table string,
	columns []string,
	path string,
	runID uuid.UUID,
	rowRunID func(T) string,
	values func(pgtype.UUID, T) []any,
) (int64, error) {
	start := time.Now()
	lastLog := start
	pgRunID := toPgUUID(runID)
	want := runID.String()

	pending := make([][]any, 0, l.batchSize)
	var copied int64

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		tx, err := l.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(pending))
		if err != nil {
			return fmt.Errorf("copy %s: %w", table, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		copied += n
		pending = pending[:0]
		return nil
	}

	_, err := parquetio.ReadBatches(path, func(batch []T) error {
		for _, r := range batch {
			if got := rowRunID(r); got != want {
				return fmt.Errorf("%s: row belongs to run %s, expected %s", filepath.Base(path), got, want)
			}
			pending = append(pending, values(pgRunID, r))
			if len(pending) >= l.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if time.Since(lastLog) >= 5*time.Second {
			log.Info().Str("table", table).Int64("rows", copied).
				Float64("rows_per_sec", float64(copied)/time.Since(start).Seconds()).
				Msg("Load progress")
			lastLog = time.Now()
		}
		return nil
	})
	if err != nil {
		return copied, err
	}
	if err := flush(); err != nil {
		return copied, err
	}
	log.Debug().Str("table", table).Int64("rows", copied).Dur("elapsed", time.Since(start)).Msg("Table copied")
	return copied, nil
}

// sanitizeUTF8 replaces invalid UTF-8 bytes with spaces.
func sanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, " ")
}

// pgtype helpers

func floatToNumeric(f *float64) pgtype.Numeric {
	if f == nil {
		return pgtype.Numeric{Valid: false}
	}
	bf := big.NewFloat(*f)
	text := bf.Text('f', -1)
	var num pgtype.Numeric
	num.Scan(text)
	return num
}

func optToPgText(s *string) pgtype.Text {
	if s == nil || *s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: sanitizeUTF8(*s), Valid: true}
}

func toPgDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), Valid: true}
}

func toPgTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func toPgInt4(v *int32) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: *v, Valid: true}
}

func toPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
