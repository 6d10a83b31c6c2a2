package parquetio

import (
	"time"

	"github.com/google/uuid"

	"hospitalstats/internal/features"
)

const (
	PatientsFile   = "enriched_patients.parquet"
	EncountersFile = "enriched_encounters.parquet"
)

// PatientRow is one enriched patient. Names are not exported.
//
// Categorical columns are low-cardinality strings and dictionary-encode.
type PatientRow struct {
	RunID     string     `parquet:"run_id"`
	ID        string     `parquet:"id"`
	BirthDate *time.Time `parquet:"birth_date,optional"`
	DeathDate *time.Time `parquet:"death_date,optional"`
	Age       *float64   `parquet:"age,optional"`
	AgeGroup  *string    `parquet:"age_group,optional"`
	Gender    string     `parquet:"gender"`
	Race      string     `parquet:"race"`
	Ethnicity string     `parquet:"ethnicity"`
	Marital   string     `parquet:"marital"`
	State     string     `parquet:"state"`
	County    string     `parquet:"county"`
	City      string     `parquet:"city"`
}

// EncounterRow is one enriched encounter with its derived columns.
type EncounterRow struct {
	RunID             string     `parquet:"run_id"`
	ID                string     `parquet:"id"`
	PatientID         string     `parquet:"patient_id"`
	PayerID           string     `parquet:"payer_id"`
	OrganizationID    string     `parquet:"organization_id"`
	Class             string     `parquet:"encounter_class"`
	Description       string     `parquet:"description"`
	ReasonDescription *string    `parquet:"reason_description,optional"`
	Start             *time.Time `parquet:"start,optional"`
	Stop              *time.Time `parquet:"stop,optional"`
	BaseCost          *float64   `parquet:"base_encounter_cost,optional"`
	TotalClaimCost    *float64   `parquet:"total_claim_cost,optional"`
	PayerCoverage     *float64   `parquet:"payer_coverage,optional"`
	DurationHours     *float64   `parquet:"duration_hours,optional"`
	CoverageRate      float64    `parquet:"coverage_rate"`
	OutOfPocket       *float64   `parquet:"out_of_pocket,optional"`
	Year              *int32     `parquet:"year,optional"`
	Month             *int32     `parquet:"month,optional"`
	DayOfWeek         *string    `parquet:"day_of_week,optional"`
	Hour              *int32     `parquet:"hour,optional"`
}

func PatientRows(runID uuid.UUID, patients []features.Patient) []PatientRow {
	id := runID.String()
	rows := make([]PatientRow, len(patients))
	for i, p := range patients {
		rows[i] = PatientRow{
			RunID:     id,
			ID:        p.ID,
			BirthDate: p.BirthDate,
			DeathDate: p.DeathDate,
			Age:       p.Age,
			AgeGroup:  p.AgeGroup,
			Gender:    p.Gender,
			Race:      p.Race,
			Ethnicity: p.Ethnicity,
			Marital:   p.Marital,
			State:     p.State,
			County:    p.County,
			City:      p.City,
		}
	}
	return rows
}

func EncounterRows(runID uuid.UUID, encs []features.Encounter) []EncounterRow {
	id := runID.String()
	rows := make([]EncounterRow, len(encs))
	for i, e := range encs {
		r := EncounterRow{
			RunID:             id,
			ID:                e.ID,
			PatientID:         e.PatientID,
			PayerID:           e.PayerID,
			OrganizationID:    e.OrganizationID,
			Class:             e.Class,
			Description:       e.Description,
			ReasonDescription: e.ReasonDescription,
			Start:             e.Start,
			Stop:              e.Stop,
			BaseCost:          e.BaseCost,
			TotalClaimCost:    e.TotalClaimCost,
			PayerCoverage:     e.PayerCoverage,
			DurationHours:     e.DurationHours,
			CoverageRate:      e.CoverageRate,
			OutOfPocket:       e.OutOfPocket,
		}
		if c := e.Calendar; c != nil {
			r.Year = i32Ptr(c.Year)
			r.Month = i32Ptr(c.Month)
			r.DayOfWeek = &c.DayOfWeek
			r.Hour = i32Ptr(c.Hour)
		}
		rows[i] = r
	}
	return rows
}

func i32Ptr(v int) *int32 {
	n := int32(v)
	return &n
}
