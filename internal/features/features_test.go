package features

import (
	"math"
	"testing"
	"time"

	"hospitalstats/internal/records"
)

func f64Ptr(f float64) *float64 { return &f }

func timePtr(t time.Time) *time.Time { return &t }

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDeriveEncountersCoverageScenario(t *testing.T) {
	encs := []records.Encounter{
		{ID: "e1", TotalClaimCost: f64Ptr(1000), PayerCoverage: f64Ptr(800)},
		{ID: "e2", TotalClaimCost: f64Ptr(0), PayerCoverage: f64Ptr(0)},
		{ID: "e3", TotalClaimCost: f64Ptr(500), PayerCoverage: f64Ptr(500)},
	}
	got := DeriveEncounters(encs)

	wantRate := []float64{80, 0, 100}
	wantOOP := []float64{200, 0, 0}
	for i, e := range got {
		if !approxEqual(e.CoverageRate, wantRate[i]) {
			t.Errorf("%s coverage rate = %v, want %v", e.ID, e.CoverageRate, wantRate[i])
		}
		if e.OutOfPocket == nil || *e.OutOfPocket != wantOOP[i] {
			t.Errorf("%s out of pocket = %v, want %v", e.ID, e.OutOfPocket, wantOOP[i])
		}
	}
}

func TestCoverageRateEdgeCases(t *testing.T) {
	tests := []struct {
		name         string
		total, payer *float64
		wantRate     float64
		wantOOP      *float64
	}{
		{"zero total ignores coverage", f64Ptr(0), f64Ptr(50), 0, f64Ptr(-50)},
		{"missing total", nil, f64Ptr(50), 0, nil},
		{"missing coverage", f64Ptr(100), nil, 0, nil},
		{"over-covered kept above 100", f64Ptr(100), f64Ptr(150), 150, f64Ptr(-50)},
		{"uncovered", f64Ptr(300), f64Ptr(0), 0, f64Ptr(300)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DeriveEncounters([]records.Encounter{{TotalClaimCost: tt.total, PayerCoverage: tt.payer}})[0]
			if e.CoverageRate < 0 {
				t.Fatalf("negative coverage rate %v", e.CoverageRate)
			}
			if !approxEqual(e.CoverageRate, tt.wantRate) {
				t.Errorf("rate = %v, want %v", e.CoverageRate, tt.wantRate)
			}
			switch {
			case tt.wantOOP == nil && e.OutOfPocket != nil:
				t.Errorf("out of pocket = %v, want nil", *e.OutOfPocket)
			case tt.wantOOP != nil && (e.OutOfPocket == nil || *e.OutOfPocket != *tt.wantOOP):
				t.Errorf("out of pocket = %v, want %v", e.OutOfPocket, *tt.wantOOP)
			}
		})
	}
}

func TestDeriveEncountersCalendarAndDuration(t *testing.T) {
	// 2021-07-04 was a Sunday.
	start := time.Date(2021, 7, 4, 14, 15, 0, 0, time.UTC)
	stop := start.Add(90 * time.Minute)
	got := DeriveEncounters([]records.Encounter{
		{ID: "a", Start: timePtr(start), Stop: timePtr(stop)},
		{ID: "b", Start: nil, Stop: timePtr(stop)},
	})

	a := got[0]
	if a.DurationHours == nil || !approxEqual(*a.DurationHours, 1.5) {
		t.Errorf("duration = %v, want 1.5", a.DurationHours)
	}
	c := a.Calendar
	if c == nil {
		t.Fatal("calendar missing")
	}
	if c.Year != 2021 || c.Month != 7 || c.MonthName != "July" || c.DayOfWeek != "Sunday" || c.Hour != 14 {
		t.Errorf("calendar = %+v", c)
	}

	b := got[1]
	if b.DurationHours != nil || b.Calendar != nil {
		t.Errorf("missing start should null duration and calendar: %+v", b)
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Error("order not preserved")
	}
}

func TestDeriveEncountersCalendarUsesOwnOffset(t *testing.T) {
	start, ok := records.ParseTimestamp("2020-01-05T23:30:00-05:00")
	if !ok {
		t.Fatal("parse start")
	}
	stop, ok := records.ParseTimestamp("2020-01-06T05:30:00Z")
	if !ok {
		t.Fatal("parse stop")
	}
	got := DeriveEncounters([]records.Encounter{{ID: "a", Start: &start, Stop: &stop}})

	c := got[0].Calendar
	if c == nil {
		t.Fatal("calendar missing")
	}
	// 2020-01-05 was a Sunday; in UTC the same instant is Monday 04:30.
	if c.Hour != 23 || c.DayOfWeek != "Sunday" || c.Month != 1 || c.Year != 2020 {
		t.Errorf("calendar = %+v, want Sunday 23h", c)
	}
	if d := got[0].DurationHours; d == nil || !approxEqual(*d, 1) {
		t.Errorf("duration = %v, want 1 across offsets", d)
	}
}

func TestDerivePatientsTwentyYears(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	birth := time.Date(2006, 10, 16, 0, 0, 0, 0, time.UTC)

	got := DerivePatients([]records.Patient{
		{ID: "p1", BirthDate: &birth},
		{ID: "p2"},
	}, now)

	p1 := got[0]
	if p1.Age == nil || *p1.Age != 20.0 {
		t.Fatalf("age = %v, want 20.0", p1.Age)
	}
	if p1.AgeGroup == nil || *p1.AgeGroup != AgeGroup19to35 {
		t.Errorf("age group = %v, want 19-35", p1.AgeGroup)
	}
	if got[1].Age != nil || got[1].AgeGroup != nil {
		t.Error("null birthdate should give null age and group")
	}
}

func TestDerivePatientsDoesNotMutateInput(t *testing.T) {
	birth := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	in := []records.Patient{{ID: "p1", BirthDate: &birth, Gender: "F"}}
	_ = DerivePatients(in, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	if in[0].Gender != "F" || !in[0].BirthDate.Equal(birth) {
		t.Error("input mutated")
	}
}

func TestAgeGroupBoundaries(t *testing.T) {
	tests := []struct {
		age  float64
		want string
		ok   bool
	}{
		{0, "", false},
		{0.1, AgeGroup0to18, true},
		{18.0, AgeGroup0to18, true},
		{18.1, AgeGroup19to35, true},
		{35.0, AgeGroup19to35, true},
		{35.1, AgeGroup36to50, true},
		{50.0, AgeGroup36to50, true},
		{65.0, AgeGroup51to65, true},
		{65.1, AgeGroup65Plus, true},
		{100.0, AgeGroup65Plus, true},
		{100.1, "", false},
		{-3, "", false},
	}
	for _, tt := range tests {
		got, ok := AgeGroupOf(tt.age)
		if got != tt.want || ok != tt.ok {
			t.Errorf("AgeGroupOf(%v) = %q, %v; want %q, %v", tt.age, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAgeAtRounding(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// 3652 days / 365.25 = 9.9986 -> 10.0
	birth := now.AddDate(0, 0, -3652)
	if got := AgeAt(birth, now); got != 10.0 {
		t.Errorf("AgeAt = %v, want 10.0", got)
	}
	// Partial days are dropped before dividing.
	if got := AgeAt(now.Add(-36*time.Hour), now); got != 0.0 {
		t.Errorf("AgeAt(1.5 days) = %v, want 0", got)
	}
}
