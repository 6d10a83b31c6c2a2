package dashboard

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"hospitalstats/internal/aggregate"
	"hospitalstats/internal/features"
	"hospitalstats/internal/insights"
)

const ConsolidatedFile = "ai_consolidated_dashboard.html"

// Page is one dashboard HTML file.
type Page struct {
	File   string
	Title  string
	Stats  []Stat
	Charts []Chart
	// Notes lists sections that failed and were left out.
	Notes []string
}

type Stat struct {
	Label string
	Value string
}

var title = cases.Title(language.English)

// Pages builds the per-topic dashboards.
func Pages(in *insights.Input, doc *insights.Document) []Page {
	b := builder{in: in, doc: doc}
	return []Page{
		b.demographics(),
		b.financial(),
		b.clinical(),
		b.temporal(),
		b.risk(),
		b.admissions(),
		b.lengthOfStay(),
		b.costPerVisit(),
		b.insuranceCoverage(),
	}
}

// Consolidated builds the single-page overview dashboard.
func Consolidated(in *insights.Input, doc *insights.Document) Page {
	b := builder{in: in, doc: doc}
	p := Page{File: ConsolidatedFile, Title: "Hospital Analytics Dashboard"}

	if d := doc.Demographics; d != nil {
		p.Stats = append(p.Stats, Stat{"Patients", numPrinter.Sprintf("%d", d.TotalPatients)})
		p.Charts = append(p.Charts, Chart{Title: "Patient Age Groups", Kind: Bar, Points: sharePoints(d.AgeGroups, nil)})
	} else {
		b.missing(&p, insights.SectionDemographics)
	}
	if t := doc.Temporal; t != nil {
		p.Charts = append(p.Charts, Chart{Title: "Monthly Revenue Trend", Kind: Line, Points: periodPoints(t.MonthlyRevenue), Money: true})
	} else {
		b.missing(&p, insights.SectionTemporal)
	}
	if c := doc.Clinical; c != nil {
		p.Stats = append(p.Stats, Stat{"Encounters", numPrinter.Sprintf("%d", c.TotalEncounters)})
		p.Charts = append(p.Charts, Chart{Title: "Encounter Types", Kind: Pie, Points: sharePoints(c.EncounterClasses, title.String)})
	} else {
		b.missing(&p, insights.SectionClinical)
	}
	if f := doc.Financial; f != nil {
		p.Stats = append(p.Stats,
			Stat{"Total Revenue", numPrinter.Sprintf("$%.2f", f.TotalRevenue)},
			Stat{"Avg Coverage Rate", fmt.Sprintf("%.1f%%", f.AvgCoverageRate)},
		)
	}
	p.Charts = append(p.Charts, Chart{Title: "Insurance Coverage Rate Distribution", Kind: Bar,
		Points: histogramPoints(b.coverageRates(), 40, false)})
	if c := doc.Clinical; c != nil {
		p.Charts = append(p.Charts, Chart{Title: "Top 10 Procedures", Kind: HBar, Points: countPoints(top(c.TopProcedures, 10))})
	}
	if r := doc.Risk; r != nil {
		p.Charts = append(p.Charts, Chart{Title: "Patient Risk Tiers", Kind: Pie, Points: sharePoints(r.RiskTiers, nil)})
	} else {
		b.missing(&p, insights.SectionRisk)
	}
	return p
}

type builder struct {
	in  *insights.Input
	doc *insights.Document
}

func (b builder) missing(p *Page, section string) {
	msg := "unavailable"
	if err, ok := b.doc.Errors[section]; ok {
		msg = err
	}
	p.Notes = append(p.Notes, fmt.Sprintf("%s: %s", section, msg))
}

func (b builder) demographics() Page {
	p := Page{File: "demographics_dashboard.html", Title: "Patient Demographics"}
	d := b.doc.Demographics
	if d == nil {
		b.missing(&p, insights.SectionDemographics)
		return p
	}
	p.Stats = []Stat{
		{"Total Patients", numPrinter.Sprintf("%d", d.TotalPatients)},
		{"Active", numPrinter.Sprintf("%d (%.1f%%)", d.ActivePatients, d.ActivePercent)},
		{"Deceased", numPrinter.Sprintf("%d (%.1f%%)", d.DeceasedPatients, d.DeceasedPercent)},
		{"Average Age", fmt.Sprintf("%.1f", d.Age.Mean)},
	}

	var ages []float64
	for _, pt := range b.in.Patients {
		if pt.Age != nil {
			ages = append(ages, *pt.Age)
		}
	}
	var byGender []Point
	for _, g := range features.AgeGroups {
		for _, s := range d.Gender {
			byGender = append(byGender, Point{g + " " + s.Label, float64(d.AgeGenderMatrix[g][s.Label])})
		}
	}
	p.Charts = []Chart{
		{Title: "Age Distribution", Kind: Bar, Points: histogramPoints(ages, 20, false)},
		{Title: "Gender Distribution", Kind: Pie, Points: sharePoints(d.Gender, nil)},
		{Title: "Race Distribution", Kind: HBar, Points: sharePoints(d.Race, title.String)},
		{Title: "Age Groups by Gender", Kind: Bar, Points: byGender},
	}
	return p
}

func (b builder) financial() Page {
	p := Page{File: "financial_dashboard.html", Title: "Financial Overview"}
	f := b.doc.Financial
	if f == nil {
		b.missing(&p, insights.SectionFinancial)
		return p
	}
	p.Stats = []Stat{
		{"Total Revenue", numPrinter.Sprintf("$%.2f", f.TotalRevenue)},
		{"Payer Coverage", numPrinter.Sprintf("$%.2f", f.TotalPayerCoverage)},
		{"Out of Pocket", numPrinter.Sprintf("$%.2f", f.TotalOutOfPocket)},
		{"Avg Cost / Encounter", numPrinter.Sprintf("$%.2f", f.AvgCostPerEncounter)},
		{"High-Cost Threshold (P90)", numPrinter.Sprintf("$%.2f", f.HighCost.Threshold)},
	}

	var costs []float64
	type costly struct {
		label string
		cost  float64
	}
	var ranked []costly
	for _, e := range b.in.Encounters {
		if e.TotalClaimCost != nil {
			costs = append(costs, *e.TotalClaimCost)
			ranked = append(ranked, costly{e.Description, *e.TotalClaimCost})
		}
	}
	slices.SortStableFunc(ranked, func(a, b costly) int { return cmp.Compare(b.cost, a.cost) })
	var topCost []Point
	for _, r := range ranked[:min(10, len(ranked))] {
		topCost = append(topCost, Point{r.label, r.cost})
	}

	var revenue, avg []Point
	for _, c := range f.ByClass {
		revenue = append(revenue, Point{title.String(c.Class), c.TotalCost})
		avg = append(avg, Point{title.String(c.Class), c.AvgCost})
	}

	p.Charts = []Chart{
		{Title: "Claim Cost Distribution", Kind: Bar, Points: histogramPoints(costs, 30, true)},
		{Title: "Revenue by Encounter Type", Kind: Pie, Points: revenue, Money: true},
		{Title: "Insurance Coverage Rate", Kind: Pie, Points: []Point{
			{"Full", float64(f.Coverage.Full)},
			{"Partial", float64(f.Coverage.Partial)},
			{"None", float64(f.Coverage.None)},
			{"Over 100%", float64(f.Coverage.Over)},
		}},
		{Title: "Average Cost by Encounter Type", Kind: HBar, Points: avg, Money: true},
		{Title: "Top 10 Highest Cost Encounters", Kind: HBar, Points: topCost, Money: true},
	}
	if t := b.doc.Temporal; t != nil {
		p.Charts = slices.Insert(p.Charts, 2, Chart{Title: "Monthly Revenue Trend", Kind: Line, Points: periodPoints(t.MonthlyRevenue), Money: true})
	}
	return p
}

func (b builder) clinical() Page {
	p := Page{File: "clinical_dashboard.html", Title: "Clinical Operations"}
	c := b.doc.Clinical
	if c == nil {
		b.missing(&p, insights.SectionClinical)
		return p
	}
	p.Stats = []Stat{
		{"Encounters", numPrinter.Sprintf("%d", c.TotalEncounters)},
		{"Procedures", numPrinter.Sprintf("%d", c.TotalProcedures)},
		{"Avg Duration (h)", fmt.Sprintf("%.2f", c.AvgDurationHours)},
		{"Most Common", title.String(c.MostCommonEncounter)},
	}
	p.Charts = []Chart{
		{Title: "Encounter Volume by Type", Kind: Bar, Points: sharePoints(c.EncounterClasses, title.String)},
		{Title: "Most Common Procedures", Kind: HBar, Points: countPoints(c.TopProcedures)},
		{Title: "Encounter Duration Distribution (hours)", Kind: Bar, Points: histogramPoints(b.durations(), 30, false)},
		{Title: "Top 10 Encounter Types", Kind: HBar, Points: countPoints(top(c.TopEncounterDescriptions, 10))},
	}
	return p
}

func (b builder) temporal() Page {
	p := Page{File: "temporal_dashboard.html", Title: "Temporal Patterns"}
	t := b.doc.Temporal
	if t == nil {
		b.missing(&p, insights.SectionTemporal)
		return p
	}
	p.Stats = []Stat{
		{"Years Covered", strconv.Itoa(t.YearsCovered)},
		{"Busiest Month", orNA(t.BusiestMonth)},
		{"Busiest Day", orNA(t.BusiestDay)},
	}
	if t.BusiestHour != nil {
		p.Stats = append(p.Stats, Stat{"Busiest Hour", fmt.Sprintf("%02d:00", *t.BusiestHour)})
	}
	var years, hours []Point
	for _, y := range t.ByYear {
		years = append(years, Point{strconv.Itoa(y.Year), float64(y.Count)})
	}
	for _, h := range t.ByHour {
		hours = append(hours, Point{fmt.Sprintf("%02d:00", h.Hour), float64(h.Count)})
	}
	p.Charts = []Chart{
		{Title: "Encounter Volume by Year", Kind: Line, Points: years},
		{Title: "Seasonal Pattern (Monthly)", Kind: Bar, Points: sharePoints(t.ByMonth, nil)},
		{Title: "Weekly Pattern (Day of Week)", Kind: Bar, Points: sharePoints(t.ByDayOfWeek, nil)},
		{Title: "Daily Pattern (Hourly Distribution)", Kind: Bar, Points: hours},
	}
	return p
}

func (b builder) risk() Page {
	p := Page{File: "risk_analysis_dashboard.html", Title: "Patient Risk Analysis"}
	r := b.doc.Risk
	if r == nil {
		b.missing(&p, insights.SectionRisk)
		return p
	}
	p.Stats = []Stat{
		{"Patients with Encounters", numPrinter.Sprintf("%d", r.PatientsWithEncounters)},
		{"High Utilizers", numPrinter.Sprintf("%d (%.1f%%)", r.HighUtilizers.Count, r.HighUtilizers.PercentOfPatients)},
		{"High-Cost Patients", numPrinter.Sprintf("%d", r.HighCostPatients.Count)},
		{"Multi-Condition", numPrinter.Sprintf("%d", r.MultiCondition.Count)},
	}
	var visits, costs []float64
	for _, ps := range aggregate.PatientLevel(b.in.Encounters) {
		visits = append(visits, float64(ps.EncounterCount))
		costs = append(costs, ps.TotalCost)
	}
	p.Charts = []Chart{
		{Title: "Encounter Frequency per Patient", Kind: Bar, Points: histogramPoints(visits, 30, false)},
		{Title: "Total Cost per Patient", Kind: Bar, Points: histogramPoints(costs, 30, true)},
		{Title: "Patient Risk Stratification", Kind: Pie, Points: sharePoints(r.RiskTiers, nil)},
	}
	return p
}

func (b builder) admissions() Page {
	p := Page{File: "admissions_readmissions_dashboard.html", Title: "Admissions and Readmissions"}
	u := b.doc.Utilization
	if u == nil {
		b.missing(&p, insights.SectionUtilization)
		return p
	}
	p.Stats = []Stat{
		{"Readmission Rate", fmt.Sprintf("%.1f%%", u.ReadmissionRate)},
		{"Readmitted Patients", numPrinter.Sprintf("%d", u.ReadmittedPatients)},
		{"Avg Encounters / Patient", fmt.Sprintf("%.2f", u.AvgEncountersPerPatient)},
		{"Max Encounters", numPrinter.Sprintf("%d", u.MaxEncounters)},
	}
	var years []Point
	for _, y := range u.Yearly {
		years = append(years, Point{strconv.Itoa(y.Year), float64(y.Encounters)})
	}
	p.Charts = []Chart{
		{Title: "Total Admissions by Year", Kind: Bar, Points: years},
		{Title: "Patient Readmission Distribution", Kind: Bar, Points: sharePoints(u.VisitBuckets, nil)},
	}
	if t := b.doc.Temporal; t != nil {
		p.Charts = append(p.Charts, Chart{Title: "Admissions by Month (All Years)", Kind: Bar, Points: sharePoints(t.ByMonth, nil)})
	}
	return p
}

func (b builder) lengthOfStay() Page {
	p := Page{File: "length_of_stay_dashboard.html", Title: "Length of Stay"}
	u := b.doc.Utilization
	if u == nil {
		b.missing(&p, insights.SectionUtilization)
		return p
	}
	p.Stats = []Stat{
		{"Average Stay (h)", fmt.Sprintf("%.2f", u.AvgLengthOfStayHours)},
		{"Median Stay (h)", fmt.Sprintf("%.2f", u.MedianLengthOfStayHours)},
	}
	var byClass, trend []Point
	for _, c := range u.LengthOfStay {
		byClass = append(byClass, Point{title.String(c.Class), c.AvgHours})
	}
	for _, y := range u.Yearly {
		trend = append(trend, Point{strconv.Itoa(y.Year), y.AvgDurationHours})
	}
	p.Charts = []Chart{
		{Title: "Distribution of Stay Duration (hours)", Kind: Bar, Points: histogramPoints(b.durations(), 30, false)},
		{Title: "Average Stay Duration by Encounter Type (hours)", Kind: HBar, Points: byClass},
		{Title: "Average Stay Duration Trend (hours)", Kind: Line, Points: trend},
	}
	return p
}

func (b builder) costPerVisit() Page {
	p := Page{File: "cost_per_visit_dashboard.html", Title: "Cost per Visit"}
	u := b.doc.Utilization
	if u == nil {
		b.missing(&p, insights.SectionUtilization)
		return p
	}
	p.Stats = []Stat{
		{"Average Cost / Visit", numPrinter.Sprintf("$%.2f", u.AvgCostPerVisit)},
		{"Median Cost / Visit", numPrinter.Sprintf("$%.2f", u.MedianCostPerVisit)},
	}
	var costs []float64
	for _, e := range b.in.Encounters {
		if e.TotalClaimCost != nil {
			costs = append(costs, *e.TotalClaimCost)
		}
	}
	var byClass, trend []Point
	for _, c := range u.CostPerVisit {
		byClass = append(byClass, Point{title.String(c.Class), c.AvgCost})
	}
	for _, y := range u.Yearly {
		trend = append(trend, Point{strconv.Itoa(y.Year), y.AvgCost})
	}
	p.Charts = []Chart{
		{Title: "Distribution of Visit Costs", Kind: Bar, Points: histogramPoints(costs, 30, true)},
		{Title: "Average Cost by Encounter Type", Kind: HBar, Points: byClass, Money: true},
		{Title: "Average Cost per Visit Trend", Kind: Line, Points: trend, Money: true},
	}
	return p
}

func (b builder) insuranceCoverage() Page {
	p := Page{File: "insurance_coverage_dashboard.html", Title: "Procedure Insurance Coverage"}
	pc := b.doc.ProcedureCoverage
	if pc == nil {
		b.missing(&p, insights.SectionProcedureCoverage)
		return p
	}
	p.Stats = []Stat{
		{"Procedures", numPrinter.Sprintf("%d", pc.TotalProcedures)},
		{"Covered", numPrinter.Sprintf("%d (%.1f%%)", pc.Covered, pc.CoveredPercent)},
		{"Patient Responsibility", numPrinter.Sprintf("$%.2f", pc.PatientResponsibility)},
		{"Coverage Rate", fmt.Sprintf("%.1f%%", pc.CoverageRate)},
	}
	var rate, payment []Point
	for _, c := range pc.ByClass {
		rate = append(rate, Point{title.String(c.Class), c.CoveredPercent})
		payment = append(payment, Point{title.String(c.Class), c.AvgPayerCoverage})
	}
	p.Charts = []Chart{
		{Title: "Procedure Insurance Coverage Overview", Kind: Pie, Points: []Point{
			{"Covered", float64(pc.Covered)},
			{"Not Covered", float64(pc.NotCovered)},
		}},
		{Title: "Insurance Coverage Rate by Encounter Type (%)", Kind: Bar, Points: rate},
		{Title: "Average Insurance Payment per Procedure by Type", Kind: Bar, Points: payment, Money: true},
	}
	return p
}

func (b builder) durations() []float64 {
	var out []float64
	for _, e := range b.in.Encounters {
		if e.DurationHours != nil {
			out = append(out, *e.DurationHours)
		}
	}
	return out
}

func (b builder) coverageRates() []float64 {
	out := make([]float64, 0, len(b.in.Encounters))
	for _, e := range b.in.Encounters {
		out = append(out, e.CoverageRate)
	}
	return out
}

func sharePoints(shares []aggregate.Share, label func(string) string) []Point {
	out := make([]Point, len(shares))
	for i, s := range shares {
		l := s.Label
		if label != nil {
			l = label(l)
		}
		out[i] = Point{l, float64(s.Count)}
	}
	return out
}

func countPoints(counts []aggregate.Count) []Point {
	out := make([]Point, len(counts))
	for i, c := range counts {
		out[i] = Point{c.Label, float64(c.Count)}
	}
	return out
}

func periodPoints(periods []aggregate.PeriodAmount) []Point {
	out := make([]Point, len(periods))
	for i, pa := range periods {
		out[i] = Point{pa.Period, pa.Amount}
	}
	return out
}

func histogramPoints(values []float64, n int, money bool) []Point {
	bins := aggregate.Histogram(values, n)
	out := make([]Point, len(bins))
	for i, bin := range bins {
		var label string
		if money {
			label = numPrinter.Sprintf("$%.0f", bin.Lower)
		} else {
			label = numPrinter.Sprintf("%.1f", bin.Lower)
		}
		out[i] = Point{label, float64(bin.Count)}
	}
	return out
}

func top[T any](s []T, n int) []T {
	return s[:min(n, len(s))]
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
