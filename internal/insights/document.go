// Package insights assembles the aggregate sections of one analysis run into
// a document and renders it as JSON, console text or Markdown.
package insights

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"hospitalstats/internal/aggregate"
	"hospitalstats/internal/features"
	"hospitalstats/internal/records"
)

const (
	SectionDemographics      = "demographics"
	SectionFinancial         = "financial"
	SectionClinical          = "clinical"
	SectionTemporal          = "temporal"
	SectionRisk              = "risk_analysis"
	SectionUtilization       = "utilization"
	SectionProcedureCoverage = "procedure_coverage"
)

// RunInfo identifies a run and records what was loaded.
type RunInfo struct {
	RunID         uuid.UUID                   `json:"run_id"`
	GeneratedAt   time.Time                   `json:"generated_at"`
	ReferenceTime time.Time                   `json:"reference_time"`
	Tables        map[string]int64            `json:"tables"`
	InvalidCells  map[string]map[string]int64 `json:"invalid_cells,omitempty"`
}

// Document is the insights file. A section that failed is absent and has an
// entry in Errors.
type Document struct {
	Run               RunInfo                      `json:"run"`
	Demographics      *aggregate.Demographics      `json:"demographics,omitempty"`
	Financial         *aggregate.Financial         `json:"financial,omitempty"`
	Clinical          *aggregate.Clinical          `json:"clinical,omitempty"`
	Temporal          *aggregate.Temporal          `json:"temporal,omitempty"`
	Risk              *aggregate.Risk              `json:"risk_analysis,omitempty"`
	Utilization       *aggregate.Utilization       `json:"utilization,omitempty"`
	ProcedureCoverage *aggregate.ProcedureCoverage `json:"procedure_coverage,omitempty"`
	Errors            map[string]string            `json:"errors,omitempty"`
}

// Input is the enriched data every section reduces.
type Input struct {
	Patients   []features.Patient
	Encounters []features.Encounter
	Procedures []records.Procedure
	PayerNames map[string]string
}

// Enrich runs the feature deriver over a loaded dataset.
func Enrich(ds *records.Dataset, now time.Time) *Input {
	return &Input{
		Patients:   features.DerivePatients(ds.Patients, now),
		Encounters: features.DeriveEncounters(ds.Encounters),
		Procedures: ds.Procedures,
		PayerNames: ds.PayerNames(),
	}
}

// NewRunInfo stamps a fresh run id and the load statistics of ds.
func NewRunInfo(ds *records.Dataset, now time.Time) RunInfo {
	info := RunInfo{
		RunID:         uuid.New(),
		GeneratedAt:   time.Now().UTC(),
		ReferenceTime: now.UTC(),
		Tables:        map[string]int64{},
	}
	for _, s := range ds.Stats {
		info.Tables[s.Table] = s.Rows
		if len(s.Invalid) > 0 {
			if info.InvalidCells == nil {
				info.InvalidCells = map[string]map[string]int64{}
			}
			info.InvalidCells[s.Table] = s.Invalid
		}
	}
	return info
}

func WriteJSON(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal insights: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func ReadJSON(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &doc, nil
}
