package records

import "fmt"

// Schema names a table, its conventional file name and the header columns
// that must be present. Column names are matched case-insensitively.
type Schema struct {
	Table    string
	File     string
	Required []string
}

var (
	PatientsSchema = Schema{
		Table:    "patients",
		File:     "patients.csv",
		Required: []string{"ID", "BIRTHDATE", "DEATHDATE", "GENDER", "RACE", "ETHNICITY", "MARITAL", "STATE"},
	}
	EncountersSchema = Schema{
		Table: "encounters",
		File:  "encounters.csv",
		Required: []string{"ID", "START", "STOP", "PATIENT", "PAYER", "ENCOUNTERCLASS", "DESCRIPTION",
			"BASE_ENCOUNTER_COST", "TOTAL_CLAIM_COST", "PAYER_COVERAGE"},
	}
	ProceduresSchema = Schema{
		Table:    "procedures",
		File:     "procedures.csv",
		Required: []string{"START", "ENCOUNTER", "DESCRIPTION", "BASE_COST"},
	}
	OrganizationsSchema = Schema{
		Table:    "organizations",
		File:     "organizations.csv",
		Required: []string{"ID", "NAME"},
	}
	PayersSchema = Schema{
		Table:    "payers",
		File:     "payers.csv",
		Required: []string{"ID", "NAME"},
	}
)

// MissingColumnError is returned when a table's header lacks a required column.
type MissingColumnError struct {
	Table  string
	Column string
	Path   string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: required column %q missing from %s", e.Table, e.Column, e.Path)
}
