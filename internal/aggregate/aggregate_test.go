package aggregate

import (
	"fmt"
	"math"
	"testing"
	"time"

	"hospitalstats/internal/features"
	"hospitalstats/internal/records"
)

func f64Ptr(f float64) *float64 { return &f }

func strPtr(s string) *string { return &s }

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

// enc builds a raw encounter; tests run it through the deriver.
func enc(id, patient, class string, start time.Time, hours, claim, covered float64) records.Encounter {
	stop := start.Add(time.Duration(hours * float64(time.Hour)))
	return records.Encounter{
		ID:             id,
		PatientID:      patient,
		PayerID:        "pay-" + class,
		Class:          class,
		Description:    class + " visit",
		Start:          &start,
		Stop:           &stop,
		BaseCost:       f64Ptr(claim / 2),
		TotalClaimCost: f64Ptr(claim),
		PayerCoverage:  f64Ptr(covered),
	}
}

func sumPercent(shares []Share) float64 {
	var s float64
	for _, sh := range shares {
		s += sh.Percent
	}
	return s
}

func TestQuantileLinearInterpolation(t *testing.T) {
	costs := []float64{100, 30, 10, 50, 20, 90, 40, 70, 60, 80}
	if got := Quantile(costs, 0.9); !approxEqual(got, 91) {
		t.Errorf("P90 = %v, want 91", got)
	}
	if got := Median(costs); !approxEqual(got, 55) {
		t.Errorf("median = %v, want 55", got)
	}
	if got := Quantile([]float64{7}, 0.9); got != 7 {
		t.Errorf("single-value quantile = %v", got)
	}
	if !math.IsNaN(Quantile(nil, 0.5)) {
		t.Error("empty quantile should be NaN")
	}
	// Input must not be reordered.
	if costs[0] != 100 {
		t.Error("Quantile sorted its input")
	}
}

func TestStdIsSampleStd(t *testing.T) {
	got := Std([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(got-2.13809) > 1e-4 {
		t.Errorf("std = %v, want 2.13809", got)
	}
	if Std([]float64{3}) != 0 {
		t.Error("std of one value should be 0")
	}
}

func TestValueCountsStableTies(t *testing.T) {
	got := ValueCounts([]string{"b", "a", "", "c", "a", "b", "d"})
	want := []Count{{"b", 2}, {"a", 2}, {"c", 1}, {"d", 1}}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestHistogram(t *testing.T) {
	bins := Histogram([]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 10}, 5)
	if len(bins) != 5 {
		t.Fatalf("bins = %d", len(bins))
	}
	total := 0
	for _, b := range bins {
		total += b.Count
	}
	if total != 10 {
		t.Errorf("histogram dropped values: %d", total)
	}
	if bins[4].Count != 2 { // 8 and 10, max lands in last bin
		t.Errorf("last bin = %d, want 2", bins[4].Count)
	}
	if Histogram(nil, 5) != nil {
		t.Error("empty histogram should be nil")
	}
}

func TestSummarizeDemographics(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	birth := func(years int) *time.Time {
		b := now.AddDate(-years, 0, 0)
		return &b
	}
	death := now.AddDate(-1, 0, 0)
	pats := features.DerivePatients([]records.Patient{
		{ID: "1", BirthDate: birth(10), Gender: "F", Race: "white", State: "MA", Marital: "S"},
		{ID: "2", BirthDate: birth(30), Gender: "M", Race: "black", State: "NY", Marital: "M"},
		{ID: "3", BirthDate: birth(40), Gender: "F", Race: "white", State: "MA"},
		{ID: "4", BirthDate: birth(70), Gender: "M", Race: "asian", State: "NY", DeathDate: &death},
		{ID: "5", Gender: "F", Race: "white", State: "CA"},
	}, now)

	d := SummarizeDemographics(pats)
	if d.TotalPatients != 5 || d.DeceasedPatients != 1 || d.ActivePatients != 4 {
		t.Errorf("counts = %d/%d/%d", d.TotalPatients, d.ActivePatients, d.DeceasedPatients)
	}
	if !approxEqual(d.ActivePercent+d.DeceasedPercent, 100) {
		t.Errorf("active+deceased = %v", d.ActivePercent+d.DeceasedPercent)
	}
	if d.Age.Count != 4 || d.Age.Min != 10 || d.Age.Max != 70 {
		t.Errorf("age = %+v", d.Age)
	}

	for name, dist := range map[string][]Share{"gender": d.Gender, "race": d.Race, "states": d.TopStates} {
		if s := sumPercent(dist); math.Abs(s-100) > 0.1 {
			t.Errorf("%s percentages sum to %v", name, s)
		}
	}

	if len(d.AgeGroups) != len(features.AgeGroups) {
		t.Fatalf("age groups = %v", d.AgeGroups)
	}
	wantGroups := []int{1, 1, 1, 0, 1}
	for i, g := range d.AgeGroups {
		if g.Label != features.AgeGroups[i] || g.Count != wantGroups[i] {
			t.Errorf("age group %d = %+v, want %s/%d", i, g, features.AgeGroups[i], wantGroups[i])
		}
	}

	if d.Gender[0].Label != "F" || d.Gender[0].Count != 3 {
		t.Errorf("gender = %v", d.Gender)
	}
	// MA and NY tie at 2; MA was seen first.
	if d.TopStates[0].Label != "MA" || d.TopStates[1].Label != "NY" {
		t.Errorf("states = %v", d.TopStates)
	}
	// Empty marital status is not a category.
	if len(d.Marital) != 2 {
		t.Errorf("marital = %v", d.Marital)
	}
	if d.AgeGenderMatrix[features.AgeGroup65Plus]["M"] != 1 {
		t.Errorf("matrix = %v", d.AgeGenderMatrix)
	}
}

func TestSummarizeFinancialPartition(t *testing.T) {
	base := time.Date(2022, 3, 1, 9, 0, 0, 0, time.UTC)
	raw := []records.Encounter{
		enc("1", "p1", "ambulatory", base, 1, 120.10, 100),
		enc("2", "p1", "inpatient", base, 30, 10450.55, 9000),
		enc("3", "p2", "ambulatory", base, 1, 99.99, 0),
		enc("4", "p3", "emergency", base, 3, 1500.00, 1500),
		enc("5", "p3", "inpatient", base, 48, 8000.01, 8500),
	}
	encs := features.DeriveEncounters(raw)
	f := SummarizeFinancial(encs, map[string]string{"pay-inpatient": "Medicare"})

	var classTotal float64
	count := 0
	for _, c := range f.ByClass {
		classTotal += c.TotalCost
		count += c.Count
	}
	if !approxEqual(classTotal, f.TotalRevenue) {
		t.Errorf("class totals %v != total revenue %v", classTotal, f.TotalRevenue)
	}
	if count != len(raw) {
		t.Errorf("class counts = %d", count)
	}
	if f.TotalRevenue != 20170.65 {
		t.Errorf("total revenue = %v, want 20170.65", f.TotalRevenue)
	}
	if f.ByClass[0].Class != "inpatient" {
		t.Errorf("classes not sorted by total: %v", f.ByClass)
	}
	if f.TotalOutOfPocket != 1070.65 {
		t.Errorf("out of pocket = %v", f.TotalOutOfPocket)
	}

	if f.Coverage.Full != 1 || f.Coverage.None != 1 || f.Coverage.Partial != 2 || f.Coverage.Over != 1 {
		t.Errorf("coverage buckets = %+v", f.Coverage)
	}

	// Strictly above the P90 threshold.
	if f.HighCost.Count != 1 || f.HighCost.TotalCost != 10450.55 {
		t.Errorf("high cost = %+v", f.HighCost)
	}

	if f.TopPayers[0].Name != "Medicare" || f.TopPayers[0].Coverage != 17500 {
		t.Errorf("top payer = %+v", f.TopPayers[0])
	}
	if f.TopPayers[1].Name != UnknownPayer {
		t.Errorf("unmapped payer name = %q", f.TopPayers[1].Name)
	}
}

func TestSummarizeClinical(t *testing.T) {
	base := time.Date(2022, 3, 1, 9, 0, 0, 0, time.UTC)
	raw := []records.Encounter{
		enc("1", "p1", "ambulatory", base, 1, 100, 0),
		enc("2", "p1", "ambulatory", base, 2, 100, 0),
		enc("3", "p2", "emergency", base, 6, 100, 0),
	}
	raw[0].ReasonDescription = strPtr("Asthma")
	raw[2].ReasonDescription = strPtr("Asthma")
	procs := []records.Procedure{
		{EncounterID: "1", Description: "X-ray", BaseCost: f64Ptr(100)},
		{EncounterID: "1", Description: "X-ray", BaseCost: f64Ptr(200)},
		{EncounterID: "3", Description: "Surgery", BaseCost: f64Ptr(5000)},
		{EncounterID: "3", Description: "Bandage"},
	}
	c := SummarizeClinical(features.DeriveEncounters(raw), procs)

	if c.MostCommonEncounter != "ambulatory" {
		t.Errorf("most common = %q", c.MostCommonEncounter)
	}
	if !approxEqual(c.AvgDurationHours, 3) || !approxEqual(c.MedianDurationHours, 2) {
		t.Errorf("durations = %v / %v", c.AvgDurationHours, c.MedianDurationHours)
	}
	if s := sumPercent(c.EncounterClasses); math.Abs(s-100) > 0.1 {
		t.Errorf("class percentages = %v", s)
	}
	if c.TopProcedures[0].Label != "X-ray" || c.TopProcedures[0].Count != 2 {
		t.Errorf("top procedures = %v", c.TopProcedures)
	}
	if c.CostliestProcedures[0].Description != "Surgery" || c.CostliestProcedures[1].AvgCost != 150 {
		t.Errorf("costliest = %v", c.CostliestProcedures)
	}
	if len(c.CostliestProcedures) != 2 {
		t.Errorf("procedure without cost should not rank: %v", c.CostliestProcedures)
	}
	if c.TotalProcedureCost != 5300 {
		t.Errorf("total procedure cost = %v", c.TotalProcedureCost)
	}
	if len(c.TopReasons) != 1 || c.TopReasons[0].Count != 2 {
		t.Errorf("reasons = %v", c.TopReasons)
	}
}

func TestSummarizeTemporal(t *testing.T) {
	raw := []records.Encounter{
		// 2021-03-01 is a Monday.
		enc("1", "p", "a", time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC), 1, 10, 0),
		enc("2", "p", "a", time.Date(2021, 3, 2, 14, 0, 0, 0, time.UTC), 1, 20, 0),
		enc("3", "p", "a", time.Date(2022, 7, 4, 9, 0, 0, 0, time.UTC), 1, 30, 0),
		enc("4", "p", "a", time.Date(2020, 3, 6, 14, 0, 0, 0, time.UTC), 1, 40, 0),
		{ID: "5"},
	}
	tm := SummarizeTemporal(features.DeriveEncounters(raw))

	if len(tm.ByYear) != 3 || tm.ByYear[0].Year != 2020 || tm.ByYear[2].Year != 2022 {
		t.Errorf("years = %v", tm.ByYear)
	}
	if tm.YearsCovered != 3 {
		t.Errorf("years covered = %d", tm.YearsCovered)
	}
	if len(tm.ByMonth) != 12 || tm.ByMonth[0].Label != "January" || tm.ByMonth[2].Count != 3 || tm.ByMonth[0].Count != 0 {
		t.Errorf("months = %v", tm.ByMonth)
	}
	if len(tm.ByDayOfWeek) != 7 || tm.ByDayOfWeek[0].Label != "Monday" || tm.ByDayOfWeek[0].Count != 2 {
		t.Errorf("days = %v", tm.ByDayOfWeek)
	}
	if len(tm.ByHour) != 24 || tm.ByHour[9].Count != 2 || tm.ByHour[14].Count != 2 {
		t.Errorf("hours = %v", tm.ByHour)
	}
	// 9 and 14 tie; the earlier hour wins.
	if len(tm.PeakHours) != 2 || tm.PeakHours[0].Hour != 9 {
		t.Errorf("peak hours = %v", tm.PeakHours)
	}
	if tm.BusiestHour == nil || *tm.BusiestHour != 9 {
		t.Errorf("busiest hour = %v", tm.BusiestHour)
	}
	if tm.BusiestMonth != "March" {
		t.Errorf("busiest month = %q", tm.BusiestMonth)
	}
	if len(tm.MonthlyRevenue) != 3 || tm.MonthlyRevenue[1].Period != "2021-03" || tm.MonthlyRevenue[1].Amount != 30 {
		t.Errorf("monthly revenue = %v", tm.MonthlyRevenue)
	}
}

func TestSummarizeTemporalEmpty(t *testing.T) {
	tm := SummarizeTemporal(nil)
	if tm.BusiestHour != nil || len(tm.PeakHours) != 0 || len(tm.ByMonth) != 12 {
		t.Errorf("empty temporal = %+v", tm)
	}
}

// visitsFor creates n encounters for patient p.
func visitsFor(p string, n int, cost float64) []records.Encounter {
	var out []records.Encounter
	start := time.Date(2020, 1, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		out = append(out, enc(fmt.Sprintf("%s-%d", p, i), p, "ambulatory", start.AddDate(0, 0, i), 1, cost, 0))
	}
	return out
}

func TestSummarizeRiskHighUtilizers(t *testing.T) {
	var raw []records.Encounter
	raw = append(raw, visitsFor("a", 12, 100)...)
	raw = append(raw, visitsFor("b", 3, 100)...)
	raw = append(raw, visitsFor("c", 1, 100)...)
	raw = append(raw, visitsFor("d", 15, 100)...)

	r := SummarizeRisk(features.DeriveEncounters(raw), 4)
	if r.HighUtilizers.Count != 2 {
		t.Fatalf("high utilizers = %d, want 2", r.HighUtilizers.Count)
	}
	if r.HighUtilizers.PercentOfPatients != 50 {
		t.Errorf("percent = %v", r.HighUtilizers.PercentOfPatients)
	}
	if r.HighUtilizers.AvgEncounters != 13.5 || r.HighUtilizers.TotalCost != 2700 {
		t.Errorf("utilizers = %+v", r.HighUtilizers)
	}

	// Patient totals 1200, 300, 100, 1500: P90 = 1410, inclusive.
	if r.HighCostPatients.Count != 1 || r.HighCostPatients.Threshold != 1410 {
		t.Errorf("high cost patients = %+v", r.HighCostPatients)
	}
	if !approxEqual(r.HighCostPatients.PercentOfTotalCost, 48.39) {
		t.Errorf("share = %v", r.HighCostPatients.PercentOfTotalCost)
	}

	tiers := map[string]int{}
	for _, s := range r.RiskTiers {
		tiers[s.Label] = s.Count
	}
	if tiers[RiskTierLow] != 2 || tiers[RiskTierMedium] != 0 || tiers[RiskTierHigh] != 2 {
		t.Errorf("tiers = %v", r.RiskTiers)
	}
}

func TestSummarizeRiskCostShareIncludesUnlinkedEncounters(t *testing.T) {
	var raw []records.Encounter
	raw = append(raw, visitsFor("a", 12, 100)...)
	raw = append(raw, visitsFor("b", 3, 100)...)
	raw = append(raw, visitsFor("c", 1, 100)...)
	raw = append(raw, visitsFor("d", 15, 100)...)
	raw = append(raw, enc("orphan", "", "emergency", time.Date(2020, 3, 1, 9, 0, 0, 0, time.UTC), 1, 900, 0))

	r := SummarizeRisk(features.DeriveEncounters(raw), 4)
	// Patient d's 1500 out of 3100 linked plus 900 unlinked.
	if r.HighCostPatients.Count != 1 || r.HighCostPatients.TotalCost != 1500 {
		t.Fatalf("high cost patients = %+v", r.HighCostPatients)
	}
	if !approxEqual(r.HighCostPatients.PercentOfTotalCost, 37.5) {
		t.Errorf("share = %v, want 37.5", r.HighCostPatients.PercentOfTotalCost)
	}
	if r.PatientsWithEncounters != 4 {
		t.Errorf("patients with encounters = %d", r.PatientsWithEncounters)
	}
}

func TestSummarizeRiskMultiCondition(t *testing.T) {
	raw := visitsFor("a", 4, 10)
	raw[0].ReasonDescription = strPtr("Asthma")
	raw[1].ReasonDescription = strPtr("Diabetes")
	raw[2].ReasonDescription = strPtr("Asthma")
	raw[3].ReasonDescription = strPtr("Hypertension")
	raw = append(raw, visitsFor("b", 2, 10)...)

	r := SummarizeRisk(features.DeriveEncounters(raw), 10)
	if r.MultiCondition.Count != 1 || r.MultiCondition.AvgDiagnoses != 3 || r.MultiCondition.PercentOfPatients != 10 {
		t.Errorf("multi condition = %+v", r.MultiCondition)
	}
}

func TestPatientLevel(t *testing.T) {
	raw := visitsFor("b", 2, 50)
	raw = append(raw, visitsFor("a", 1, 20)...)
	raw[0].BaseCost = nil
	raw = append(raw, records.Encounter{ID: "orphan"})

	stats := PatientLevel(features.DeriveEncounters(raw))
	if len(stats) != 2 || stats[0].PatientID != "a" {
		t.Fatalf("stats = %+v", stats)
	}
	b := stats[1]
	if b.EncounterCount != 2 || b.TotalCost != 100 || b.AvgBaseCost == nil || *b.AvgBaseCost != 25 || b.TotalDurationHours != 2 {
		t.Errorf("b = %+v", b)
	}
}

func TestVisitBuckets(t *testing.T) {
	tests := []struct {
		visits int
		want   string
		ok     bool
	}{
		{0, "", false},
		{1, "1 visit", true},
		{2, "2-5 visits", true},
		{5, "2-5 visits", true},
		{6, "6-10 visits", true},
		{100, "51-100 visits", true},
		{101, "100+ visits", true},
		{1001, "", false},
	}
	for _, tt := range tests {
		got, ok := VisitBucketOf(tt.visits)
		if got != tt.want || ok != tt.ok {
			t.Errorf("VisitBucketOf(%d) = %q, %v", tt.visits, got, ok)
		}
	}
}

func TestSummarizeUtilization(t *testing.T) {
	var raw []records.Encounter
	raw = append(raw, visitsFor("a", 1, 100)...)
	raw = append(raw, visitsFor("b", 3, 200)...)
	raw = append(raw, enc("x", "c", "inpatient", time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC), 48, 1000, 0))

	u := SummarizeUtilization(features.DeriveEncounters(raw))
	if u.PatientsWithEncounters != 3 || u.ReadmittedPatients != 1 || !approxEqual(u.ReadmissionRate, 33.33) {
		t.Errorf("readmission = %+v", u)
	}
	if u.MaxEncounters != 3 {
		t.Errorf("max = %d", u.MaxEncounters)
	}
	if s := sumPercent(u.VisitBuckets); math.Abs(s-100) > 0.1 {
		t.Errorf("visit bucket percentages = %v", s)
	}
	if len(u.Yearly) != 2 || u.Yearly[0].Year != 2020 || u.Yearly[0].Encounters != 4 {
		t.Errorf("yearly = %+v", u.Yearly)
	}
	if u.LengthOfStay[0].Class != "inpatient" || u.LengthOfStay[0].AvgDays != 2 {
		t.Errorf("length of stay = %+v", u.LengthOfStay)
	}
	var share float64
	for _, c := range u.CostPerVisit {
		share += c.PercentOfTotal
	}
	if math.Abs(share-100) > 0.1 {
		t.Errorf("cost shares = %v", share)
	}
}

func TestSummarizeProcedureCoverage(t *testing.T) {
	base := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	encs := features.DeriveEncounters([]records.Encounter{
		enc("e1", "p", "ambulatory", base, 1, 1000, 800),
		enc("e2", "p", "ambulatory", base, 1, 500, 0),
		enc("e3", "p", "emergency", base, 1, 200, 200),
	})
	procs := []records.Procedure{
		{EncounterID: "e1"},
		{EncounterID: "e1"},
		{EncounterID: "e2"},
		{EncounterID: "e3"},
		{EncounterID: "missing"},
	}
	pc := SummarizeProcedureCoverage(procs, encs)

	if pc.TotalProcedures != 5 || pc.Covered != 3 || pc.NotCovered != 2 {
		t.Errorf("counts = %+v", pc)
	}
	if pc.CoveredPercent != 60 || pc.NotCoveredPercent != 40 {
		t.Errorf("percents = %v / %v", pc.CoveredPercent, pc.NotCoveredPercent)
	}
	if pc.TotalClaim != 2700 || pc.TotalCoverage != 1800 || pc.PatientResponsibility != 900 {
		t.Errorf("totals = %+v", pc)
	}
	if !approxEqual(pc.CoverageRate, 66.67) {
		t.Errorf("coverage rate = %v", pc.CoverageRate)
	}
	if pc.AvgCoverageWhenCovered != 600 {
		t.Errorf("avg when covered = %v", pc.AvgCoverageWhenCovered)
	}
	if pc.ByClass[0].Class != "emergency" || pc.ByClass[1].CoveredPercent != 66.67 {
		t.Errorf("by class = %+v", pc.ByClass)
	}
}
