// Package features derives per-row analytic columns from the raw patient and
// encounter tables. Derivation never fails: a missing or unparseable input
// yields a missing output for that row only.
package features

import (
	"math"
	"time"

	"hospitalstats/internal/records"
)

// Age groups in canonical order. Bins are right-closed: (0,18], (18,35], ...
const (
	AgeGroup0to18   = "0-18"
	AgeGroup19to35  = "19-35"
	AgeGroup36to50  = "36-50"
	AgeGroup51to65  = "51-65"
	AgeGroup65Plus  = "65+"
	daysPerYear     = 365.25
	maxAgeGroupEdge = 100
)

var AgeGroups = []string{AgeGroup0to18, AgeGroup19to35, AgeGroup36to50, AgeGroup51to65, AgeGroup65Plus}

var ageEdges = []float64{0, 18, 35, 50, 65, maxAgeGroupEdge}

var MonthNames = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// DayNames is ordered Monday first.
var DayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

type Patient struct {
	records.Patient
	Age      *float64
	AgeGroup *string
}

// Calendar holds the start-time fields of an encounter.
type Calendar struct {
	Year      int
	Month     int
	MonthName string
	DayOfWeek string
	Hour      int
}

type Encounter struct {
	records.Encounter
	DurationHours *float64
	// CoverageRate is a percentage; 0 when the claim total is zero or either
	// operand is missing.
	CoverageRate float64
	OutOfPocket  *float64
	Calendar     *Calendar
}

// DerivePatients computes AGE and AGE_GROUP for every patient relative to
// now. Input order is preserved.
func DerivePatients(patients []records.Patient, now time.Time) []Patient {
	out := make([]Patient, len(patients))
	for i, p := range patients {
		out[i].Patient = p
		if p.BirthDate == nil {
			continue
		}
		age := AgeAt(*p.BirthDate, now)
		out[i].Age = &age
		if g, ok := AgeGroupOf(age); ok {
			out[i].AgeGroup = &g
		}
	}
	return out
}

// DeriveEncounters computes duration, coverage, out-of-pocket and calendar
// fields for every encounter. Input order is preserved.
func DeriveEncounters(encounters []records.Encounter) []Encounter {
	out := make([]Encounter, len(encounters))
	for i, e := range encounters {
		out[i] = Encounter{
			Encounter:     e,
			DurationHours: durationHours(e.Start, e.Stop),
			CoverageRate:  coverageRate(e.TotalClaimCost, e.PayerCoverage),
			OutOfPocket:   outOfPocket(e.TotalClaimCost, e.PayerCoverage),
		}
		if e.Start != nil {
			out[i].Calendar = calendarOf(*e.Start)
		}
	}
	return out
}

// AgeAt returns whole elapsed days divided by 365.25, rounded half-to-even
// to one decimal. Both instants are compared as wall clocks.
func AgeAt(birth, now time.Time) float64 {
	days := math.Floor(wallClock(now).Sub(wallClock(birth)).Hours() / 24)
	return math.RoundToEven(days/daysPerYear*10) / 10
}

// AgeGroupOf buckets an age. Ages at or below 0 or above 100 have no group.
func AgeGroupOf(age float64) (string, bool) {
	if math.IsNaN(age) || age <= ageEdges[0] || age > ageEdges[len(ageEdges)-1] {
		return "", false
	}
	for i := 1; i < len(ageEdges); i++ {
		if age <= ageEdges[i] {
			return AgeGroups[i-1], true
		}
	}
	return "", false
}

func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func durationHours(start, stop *time.Time) *float64 {
	if start == nil || stop == nil {
		return nil
	}
	h := stop.Sub(*start).Hours()
	return &h
}

func coverageRate(total, covered *float64) float64 {
	if total == nil || covered == nil || *total == 0 {
		return 0
	}
	r := *covered / *total * 100
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

func outOfPocket(total, covered *float64) *float64 {
	if total == nil || covered == nil {
		return nil
	}
	v := *total - *covered
	return &v
}

func calendarOf(t time.Time) *Calendar {
	wd := (int(t.Weekday()) + 6) % 7 // Monday = 0
	return &Calendar{
		Year:      t.Year(),
		Month:     int(t.Month()),
		MonthName: MonthNames[t.Month()-1],
		DayOfWeek: DayNames[wd],
		Hour:      t.Hour(),
	}
}
