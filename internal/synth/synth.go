// Package synth writes a deterministic synthetic dataset in the Synthea CSV
// layout, so the pipeline can be run and demonstrated without patient data.
package synth

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog/log"

	"hospitalstats/internal/records"
)

type Options struct {
	Seed     uint64
	Patients int
	// End is the latest instant any generated date may take.
	End time.Time
}

// Summary counts the rows written per table.
type Summary struct {
	Patients      int
	Encounters    int
	Procedures    int
	Organizations int
	Payers        int
}

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05Z"
	noInsurance     = "NO_INSURANCE"
)

var payerNames = []string{
	"Medicare", "Medicaid", "Blue Cross Blue Shield", "Aetna", "UnitedHealthcare",
	"Cigna Health", "Humana", noInsurance,
}

type encounterClass struct {
	name      string
	minHours  float64
	maxHours  float64
	costScale float64
	visits    []string
}

var classes = []encounterClass{
	{"wellness", 0.25, 0.75, 1, []string{"Well child visit", "General examination of patient", "Encounter for check up"}},
	{"ambulatory", 0.25, 1, 1.5, []string{"Encounter for symptom", "Follow-up encounter", "Encounter for problem"}},
	{"outpatient", 0.5, 3, 2.5, []string{"Outpatient procedure", "Prenatal visit", "Patient-initiated encounter"}},
	{"urgentcare", 0.5, 2, 3, []string{"Urgent care clinic", "Encounter for symptom"}},
	{"emergency", 1, 8, 6, []string{"Emergency room admission", "Emergency Encounter"}},
	{"inpatient", 24, 240, 20, []string{"Hospital admission", "Admission to surgical department"}},
}

var reasons = []string{
	"Hypertension", "Acute bronchitis", "Viral sinusitis", "Prediabetes", "Chronic pain",
	"Otitis media", "Acute viral pharyngitis", "Diabetes", "Sprain of ankle", "Anemia",
}

var procedures = []struct {
	description string
	minCost     float64
	maxCost     float64
}{
	{"Medication reconciliation", 300, 600},
	{"Assessment of health and social care needs", 350, 500},
	{"Depression screening", 350, 450},
	{"Electrical cardioversion", 15000, 30000},
	{"Hemodialysis", 1000, 1500},
	{"Colonoscopy", 8000, 12000},
	{"Venipuncture", 50, 150},
	{"Plain chest X-ray", 200, 450},
}

var (
	races         = []string{"white", "white", "white", "black", "asian", "hispanic", "native", "other"}
	ethnicities   = []string{"nonhispanic", "nonhispanic", "nonhispanic", "hispanic"}
	maritalStates = []string{"M", "M", "S", "D", "W", ""}
)

type generator struct {
	f   *gofakeit.Faker
	end time.Time
}

// Generate writes patients, encounters, procedures, organizations and payers
// CSVs to dir. The same options always produce the same files.
func Generate(dir string, opts Options) (Summary, error) {
	if opts.Patients < 1 {
		return Summary{}, fmt.Errorf("synth: patients must be at least 1, got %d", opts.Patients)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Summary{}, fmt.Errorf("create %s: %w", dir, err)
	}
	end := opts.End.UTC().Truncate(time.Second)
	if opts.End.IsZero() {
		end = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	g := &generator{f: gofakeit.New(opts.Seed), end: end}

	var (
		payers   [][]string
		orgs     [][]string
		patients [][]string
		encs     [][]string
		procRows [][]string
		payerIDs []string
		orgIDs   []string
	)

	for _, name := range payerNames {
		id := g.f.UUID()
		payerIDs = append(payerIDs, id)
		payers = append(payers, []string{id, name, g.f.City(), g.f.StateAbr()})
	}
	for range 5 {
		id := g.f.UUID()
		orgIDs = append(orgIDs, id)
		orgs = append(orgs, []string{id, g.f.Company() + " Hospital", g.f.City(), g.f.StateAbr()})
	}

	for range opts.Patients {
		id := g.f.UUID()
		birth := g.date(g.end.AddDate(-95, 0, 0), g.end.AddDate(0, -6, 0))
		last := g.end
		death := ""
		if g.f.Float64Range(0, 1) < 0.08 {
			d := g.date(birth.AddDate(1, 0, 0), g.end)
			if !d.After(g.end) {
				last = d
				death = d.Format(dateLayout)
			}
		}
		gender := g.f.RandomString([]string{"M", "F"})
		city := g.f.City()
		patients = append(patients, []string{
			id, birth.Format(dateLayout), death, g.f.FirstName(), g.f.LastName(),
			g.f.RandomString(maritalStates), g.f.RandomString(races), g.f.RandomString(ethnicities),
			gender, city, g.f.State(), city + " County",
		})

		first := birth
		if lookback := last.AddDate(-10, 0, 0); lookback.After(first) {
			first = lookback
		}
		for range g.visitCount() {
			enc, procs := g.encounter(id, payerIDs, orgIDs, first, last)
			encs = append(encs, enc)
			procRows = append(procRows, procs...)
		}
	}

	files := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{records.PayersSchema.File, []string{"Id", "NAME", "CITY", "STATE_HEADQUARTERED"}, payers},
		{records.OrganizationsSchema.File, []string{"Id", "NAME", "CITY", "STATE"}, orgs},
		{records.PatientsSchema.File, []string{"Id", "BIRTHDATE", "DEATHDATE", "FIRST", "LAST", "MARITAL",
			"RACE", "ETHNICITY", "GENDER", "CITY", "STATE", "COUNTY"}, patients},
		{records.EncountersSchema.File, []string{"Id", "START", "STOP", "PATIENT", "ORGANIZATION", "PAYER",
			"ENCOUNTERCLASS", "DESCRIPTION", "BASE_ENCOUNTER_COST", "TOTAL_CLAIM_COST", "PAYER_COVERAGE",
			"REASONDESCRIPTION"}, encs},
		{records.ProceduresSchema.File, []string{"START", "STOP", "PATIENT", "ENCOUNTER", "DESCRIPTION",
			"BASE_COST"}, procRows},
	}
	for _, fl := range files {
		if err := writeCSV(filepath.Join(dir, fl.name), fl.header, fl.rows); err != nil {
			return Summary{}, err
		}
	}

	sum := Summary{
		Patients:      len(patients),
		Encounters:    len(encs),
		Procedures:    len(procRows),
		Organizations: len(orgs),
		Payers:        len(payers),
	}
	log.Info().
		Str("dir", dir).
		Uint64("seed", opts.Seed).
		Int("patients", sum.Patients).
		Int("encounters", sum.Encounters).
		Int("procedures", sum.Procedures).
		Msg("Synthetic dataset written")
	return sum, nil
}

// visitCount is skewed so that a minority of patients become high utilizers.
func (g *generator) visitCount() int {
	switch p := g.f.Float64Range(0, 1); {
	case p < 0.1:
		return 0
	case p < 0.8:
		return g.f.IntRange(1, 6)
	default:
		return g.f.IntRange(10, 30)
	}
}

func (g *generator) encounter(patientID string, payerIDs, orgIDs []string, from, to time.Time) ([]string, [][]string) {
	c := classes[g.f.IntRange(0, len(classes)-1)]
	start := g.date(from, to.AddDate(0, 0, -1)).Add(time.Duration(g.f.IntRange(7, 20)) * time.Hour).Truncate(time.Minute)
	stop := start.Add(time.Duration(g.f.Float64Range(c.minHours, c.maxHours) * float64(time.Hour))).Truncate(time.Minute)

	base := cents(g.f.Float64Range(75, 150))
	total := cents(base * c.costScale * g.f.Float64Range(1, 4))

	payerIdx := g.f.IntRange(0, len(payerIDs)-1)
	var covered float64
	switch p := g.f.Float64Range(0, 1); {
	case payerNames[payerIdx] == noInsurance:
		covered = 0
	case p < 0.3:
		covered = total
	case p < 0.97:
		covered = cents(total * g.f.Float64Range(0.4, 0.95))
	default:
		// Adjustments occasionally leave coverage above the claim.
		covered = cents(total * 1.05)
	}

	reason := ""
	if g.f.Float64Range(0, 1) < 0.4 {
		reason = g.f.RandomString(reasons)
	}

	id := g.f.UUID()
	enc := []string{
		id, start.Format(timestampLayout), stop.Format(timestampLayout), patientID,
		orgIDs[g.f.IntRange(0, len(orgIDs)-1)], payerIDs[payerIdx], c.name,
		c.visits[g.f.IntRange(0, len(c.visits)-1)], money(base), money(total), money(covered), reason,
	}

	var procs [][]string
	for range g.f.IntRange(0, 2) {
		pr := procedures[g.f.IntRange(0, len(procedures)-1)]
		procs = append(procs, []string{
			start.Format(timestampLayout), stop.Format(timestampLayout), patientID, id, pr.description,
			money(cents(g.f.Float64Range(pr.minCost, pr.maxCost))),
		})
	}
	return enc, procs
}

// date returns a random day in [from, to] at midnight UTC.
func (g *generator) date(from, to time.Time) time.Time {
	if !to.After(from) {
		return from.UTC().Truncate(24 * time.Hour)
	}
	return g.f.DateRange(from, to).UTC().Truncate(24 * time.Hour)
}

func cents(v float64) float64 {
	return math.Round(v*100) / 100
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
