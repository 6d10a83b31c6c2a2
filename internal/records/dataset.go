package records

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Dataset holds the five source tables of one export.
type Dataset struct {
	Patients      []Patient
	Encounters    []Encounter
	Procedures    []Procedure
	Organizations []Organization
	Payers        []Payer

	Stats []TableStats
}

// PayerNames maps payer id to display name.
func (d *Dataset) PayerNames() map[string]string {
	names := make(map[string]string, len(d.Payers))
	for _, p := range d.Payers {
		names[p.ID] = p.Name
	}
	return names
}

// LoadDataset reads patients, encounters, procedures, organizations and payers
// from dir using their conventional file names. A missing file or required
// column fails the whole load.
func LoadDataset(dir string) (*Dataset, error) {
	ds := &Dataset{}

	var (
		st  TableStats
		err error
	)
	if ds.Patients, st, err = ReadPatients(filepath.Join(dir, PatientsSchema.File)); err != nil {
		return nil, err
	}
	ds.Stats = append(ds.Stats, st)

	if ds.Encounters, st, err = ReadEncounters(filepath.Join(dir, EncountersSchema.File)); err != nil {
		return nil, err
	}
	ds.Stats = append(ds.Stats, st)

	if ds.Procedures, st, err = ReadProcedures(filepath.Join(dir, ProceduresSchema.File)); err != nil {
		return nil, err
	}
	ds.Stats = append(ds.Stats, st)

	if ds.Organizations, st, err = ReadOrganizations(filepath.Join(dir, OrganizationsSchema.File)); err != nil {
		return nil, err
	}
	ds.Stats = append(ds.Stats, st)

	if ds.Payers, st, err = ReadPayers(filepath.Join(dir, PayersSchema.File)); err != nil {
		return nil, err
	}
	ds.Stats = append(ds.Stats, st)

	for _, s := range ds.Stats {
		ev := log.Info().Str("table", s.Table).Int64("rows", s.Rows)
		for col, n := range s.Invalid {
			ev = ev.Int64("invalid_"+col, n)
		}
		ev.Msg("Table loaded")
	}
	return ds, nil
}

func ReadPatients(path string) ([]Patient, TableStats, error) {
	return readTable(path, PatientsSchema, func(r *Reader) Patient {
		return Patient{
			ID:        r.Str("ID"),
			BirthDate: r.Time("BIRTHDATE"),
			DeathDate: r.Time("DEATHDATE"),
			Gender:    r.Str("GENDER"),
			Race:      r.Str("RACE"),
			Ethnicity: r.Str("ETHNICITY"),
			Marital:   r.Str("MARITAL"),
			State:     r.Str("STATE"),
			First:     r.Str("FIRST"),
			Last:      r.Str("LAST"),
			City:      r.Str("CITY"),
			County:    r.Str("COUNTY"),
		}
	})
}

func ReadEncounters(path string) ([]Encounter, TableStats, error) {
	return readTable(path, EncountersSchema, func(r *Reader) Encounter {
		return Encounter{
			ID:                r.Str("ID"),
			PatientID:         r.Str("PATIENT"),
			PayerID:           r.Str("PAYER"),
			OrganizationID:    r.Str("ORGANIZATION"),
			Start:             r.Time("START"),
			Stop:              r.Time("STOP"),
			Class:             r.Str("ENCOUNTERCLASS"),
			Description:       r.Str("DESCRIPTION"),
			BaseCost:          r.Float("BASE_ENCOUNTER_COST"),
			TotalClaimCost:    r.Float("TOTAL_CLAIM_COST"),
			PayerCoverage:     r.Float("PAYER_COVERAGE"),
			ReasonDescription: r.OptStr("REASONDESCRIPTION"),
		}
	})
}

func ReadProcedures(path string) ([]Procedure, TableStats, error) {
	return readTable(path, ProceduresSchema, func(r *Reader) Procedure {
		return Procedure{
			ID:          r.Str("ID"),
			EncounterID: r.Str("ENCOUNTER"),
			PatientID:   r.Str("PATIENT"),
			Start:       r.Time("START"),
			Description: r.Str("DESCRIPTION"),
			BaseCost:    r.Float("BASE_COST"),
		}
	})
}

func ReadOrganizations(path string) ([]Organization, TableStats, error) {
	return readTable(path, OrganizationsSchema, func(r *Reader) Organization {
		return Organization{
			ID:    r.Str("ID"),
			Name:  r.Str("NAME"),
			City:  r.Str("CITY"),
			State: r.Str("STATE"),
		}
	})
}

func ReadPayers(path string) ([]Payer, TableStats, error) {
	return readTable(path, PayersSchema, func(r *Reader) Payer {
		return Payer{ID: r.Str("ID"), Name: r.Str("NAME")}
	})
}

func readTable[T any](path string, schema Schema, decode func(*Reader) T) ([]T, TableStats, error) {
	r, err := NewReader(path, schema)
	if err != nil {
		return nil, TableStats{Table: schema.Table}, err
	}
	defer r.Close()

	var out []T
	for {
		err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, r.Stats(), fmt.Errorf("read %s row %d: %w", schema.Table, r.RowNum(), err)
		}
		out = append(out, decode(r))
	}
	return out, r.Stats(), nil
}
