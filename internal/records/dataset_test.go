package records

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const (
	patientsCSV = "\xef\xbb\xbfId,BIRTHDATE,DEATHDATE,FIRST,LAST,MARITAL,RACE,ETHNICITY,GENDER,CITY,STATE,COUNTY\n" +
		"p1,1980-05-01,,Ann,Lee,M,white,nonhispanic,F,Boston,Massachusetts,Suffolk\n" +
		"p2,1950-01-01,2020-03-04,Bob,Ray,,black,hispanic,M,Salem,Massachusetts,Essex\n" +
		"\n" +
		"p3,not-a-date,,Cy,Fox,S,asian,nonhispanic,M,Quincy,Massachusetts,Norfolk\n"

	encountersCSV = "Id,START,STOP,PATIENT,ORGANIZATION,PAYER,ENCOUNTERCLASS,CODE,DESCRIPTION,BASE_ENCOUNTER_COST,TOTAL_CLAIM_COST,PAYER_COVERAGE,REASONCODE,REASONDESCRIPTION\n" +
		"e1,2020-01-06T08:00:00Z,2020-01-06T10:30:00Z,p1,o1,pay1,ambulatory,1,Check up,100.50,\"1,000.00\",800,,\n" +
		"e2,2021-07-04 14:15:00,2021-07-04 15:15:00,p2,o1,pay2,emergency,2,ER visit,$250,abc,0,5,Fracture\n"

	proceduresCSV = "START,STOP,PATIENT,ENCOUNTER,CODE,DESCRIPTION,BASE_COST\n" +
		"2020-01-06T08:10:00Z,2020-01-06T08:20:00Z,p1,e1,1,Blood draw,45.5\n"

	organizationsCSV = "Id,NAME,ADDRESS,CITY,STATE\n" +
		"o1,General Hospital,1 Main St,Boston,MA\n"

	payersCSV = "Id,NAME,ADDRESS\n" +
		"pay1,Medicare,\n" +
		"pay2,NO_INSURANCE,\n"
)

func writeDataset(t *testing.T, overrides map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"patients.csv":      patientsCSV,
		"encounters.csv":    encountersCSV,
		"procedures.csv":    proceduresCSV,
		"organizations.csv": organizationsCSV,
		"payers.csv":        payersCSV,
	}
	for name, content := range overrides {
		files[name] = content
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoadDataset(t *testing.T) {
	ds, err := LoadDataset(writeDataset(t, nil))
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}

	if len(ds.Patients) != 3 {
		t.Fatalf("patients = %d, want 3 (blank line skipped)", len(ds.Patients))
	}
	if len(ds.Encounters) != 2 || len(ds.Procedures) != 1 || len(ds.Organizations) != 1 || len(ds.Payers) != 2 {
		t.Fatalf("unexpected table sizes: enc=%d proc=%d org=%d pay=%d",
			len(ds.Encounters), len(ds.Procedures), len(ds.Organizations), len(ds.Payers))
	}

	p1 := ds.Patients[0]
	if p1.ID != "p1" {
		t.Errorf("BOM not stripped from first header: id = %q", p1.ID)
	}
	if p1.BirthDate == nil || !p1.BirthDate.Equal(time.Date(1980, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("p1 birthdate = %v", p1.BirthDate)
	}
	if p1.Deceased() {
		t.Error("p1 should be alive")
	}
	if !ds.Patients[1].Deceased() {
		t.Error("p2 should be deceased")
	}
	if ds.Patients[1].Marital != "" {
		t.Errorf("p2 marital = %q, want empty", ds.Patients[1].Marital)
	}
	if ds.Patients[2].BirthDate != nil {
		t.Error("unparseable birthdate should be nil")
	}

	e1 := ds.Encounters[0]
	if e1.TotalClaimCost == nil || *e1.TotalClaimCost != 1000 {
		t.Errorf("e1 total claim cost = %v, want 1000", e1.TotalClaimCost)
	}
	if e1.ReasonDescription != nil {
		t.Errorf("e1 reason = %q, want nil", *e1.ReasonDescription)
	}
	if e1.Start.Hour() != 8 {
		t.Errorf("e1 start hour = %d", e1.Start.Hour())
	}

	e2 := ds.Encounters[1]
	if e2.BaseCost == nil || *e2.BaseCost != 250 {
		t.Errorf("e2 base cost = %v, want 250", e2.BaseCost)
	}
	if e2.TotalClaimCost != nil {
		t.Error("e2 unparseable total claim cost should be nil")
	}
	if e2.ReasonDescription == nil || *e2.ReasonDescription != "Fracture" {
		t.Errorf("e2 reason = %v", e2.ReasonDescription)
	}

	if pr := ds.Procedures[0]; pr.BaseCost == nil || math.Abs(*pr.BaseCost-45.5) > 1e-9 || pr.ID != "" {
		t.Errorf("procedure = %+v", pr)
	}

	if got := ds.PayerNames()["pay2"]; got != "NO_INSURANCE" {
		t.Errorf("payer name = %q", got)
	}

	stats := map[string]TableStats{}
	for _, s := range ds.Stats {
		stats[s.Table] = s
	}
	if stats["patients"].Invalid["BIRTHDATE"] != 1 {
		t.Errorf("patients invalid = %v", stats["patients"].Invalid)
	}
	if stats["encounters"].Invalid["TOTAL_CLAIM_COST"] != 1 {
		t.Errorf("encounters invalid = %v", stats["encounters"].Invalid)
	}
	if stats["patients"].Rows != 3 {
		t.Errorf("patients rows = %d, want 3", stats["patients"].Rows)
	}
}

func TestLoadDatasetMissingColumn(t *testing.T) {
	dir := writeDataset(t, map[string]string{
		"encounters.csv": "Id,START,STOP,PATIENT,PAYER,ENCOUNTERCLASS,DESCRIPTION,BASE_ENCOUNTER_COST,PAYER_COVERAGE\n",
	})

	_, err := LoadDataset(dir)
	var mce *MissingColumnError
	if !errors.As(err, &mce) {
		t.Fatalf("err = %v, want MissingColumnError", err)
	}
	if mce.Table != "encounters" || mce.Column != "TOTAL_CLAIM_COST" {
		t.Errorf("got %s/%s", mce.Table, mce.Column)
	}
}

func TestLoadDatasetMissingFile(t *testing.T) {
	dir := writeDataset(t, nil)
	if err := os.Remove(filepath.Join(dir, "payers.csv")); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDataset(dir); err == nil {
		t.Fatal("expected error for missing payers.csv")
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2020-01-06", time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC), true},
		{"2020-01-06T08:00:00Z", time.Date(2020, 1, 6, 8, 0, 0, 0, time.UTC), true},
		{"2020-01-06T08:00:00-05:00", time.Date(2020, 1, 6, 13, 0, 0, 0, time.UTC), true},
		{"2020-01-06 08:00:00", time.Date(2020, 1, 6, 8, 0, 0, 0, time.UTC), true},
		{"01/06/2020", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseTimestamp(tt.in)
		if ok != tt.ok || !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseTimestampKeepsOffset(t *testing.T) {
	got, ok := ParseTimestamp("2020-01-05T23:30:00-05:00")
	if !ok {
		t.Fatal("expected offset timestamp to parse")
	}
	if _, off := got.Zone(); off != -5*3600 {
		t.Errorf("offset = %d, want -18000", off)
	}
	if got.Hour() != 23 || got.Day() != 5 {
		t.Errorf("local clock = %v, want 2020-01-05 23:30", got)
	}
}
