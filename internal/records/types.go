package records

import "time"

// Patient is one row of patients.csv. Empty categorical cells are kept as ""
// and treated as missing by the aggregates.
type Patient struct {
	ID        string
	BirthDate *time.Time
	DeathDate *time.Time
	Gender    string
	Race      string
	Ethnicity string
	Marital   string
	State     string

	First  string
	Last   string
	City   string
	County string
}

// Deceased reports whether the patient has a recorded death date.
func (p *Patient) Deceased() bool {
	return p.DeathDate != nil
}

// Encounter is one row of encounters.csv.
type Encounter struct {
	ID                string
	PatientID         string
	PayerID           string
	OrganizationID    string
	Start             *time.Time
	Stop              *time.Time
	Class             string
	Description       string
	BaseCost          *float64
	TotalClaimCost    *float64
	PayerCoverage     *float64
	ReasonDescription *string
}

// Procedure is one row of procedures.csv. Synthea exports carry no Id
// column for procedures, so ID may be empty.
type Procedure struct {
	ID          string
	EncounterID string
	PatientID   string
	Start       *time.Time
	Description string
	BaseCost    *float64
}

type Organization struct {
	ID    string
	Name  string
	City  string
	State string
}

type Payer struct {
	ID   string
	Name string
}

// TableStats summarizes one table load: rows read and, per column, the number
// of non-empty cells that could not be parsed and were nulled.
type TableStats struct {
	Table   string
	Rows    int64
	Invalid map[string]int64
}
