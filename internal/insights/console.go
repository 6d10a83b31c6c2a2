package insights

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"hospitalstats/internal/aggregate"
)

var (
	genderLabels  = map[string]string{"M": "Male", "F": "Female"}
	maritalLabels = map[string]string{"M": "Married", "S": "Single", "D": "Divorced", "W": "Widowed"}
)

// printer accumulates the first write error so rendering code can stay
// linear.
type printer struct {
	w     io.Writer
	p     *message.Printer
	title cases.Caser
	err   error
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:     w,
		p:     message.NewPrinter(language.English),
		title: cases.Title(language.English),
	}
}

func (pr *printer) printf(format string, args ...any) {
	if pr.err != nil {
		return
	}
	_, pr.err = pr.p.Fprintf(pr.w, format, args...)
}

func (pr *printer) money(v float64) string {
	return pr.p.Sprintf("$%.2f", v)
}

func (pr *printer) num(n int) string {
	return pr.p.Sprintf("%d", n)
}

func (pr *printer) banner(title string) {
	rule := strings.Repeat("=", 80)
	pr.printf("\n%s\n%s\n%s\n", rule, title, rule)
}

func (pr *printer) shares(indent string, shares []aggregate.Share, label func(string) string) {
	for _, s := range shares {
		pr.printf("%s%s: %s (%.1f%%)\n", indent, label(s.Label), pr.num(s.Count), s.Percent)
	}
}

func (pr *printer) counts(counts []aggregate.Count, width int) {
	for i, c := range counts {
		pr.printf("  %d. %s: %s\n", i+1, truncate(c.Label, width), pr.num(c.Count))
	}
}

func lookup(labels map[string]string) func(string) string {
	return func(s string) string {
		if l, ok := labels[s]; ok {
			return l
		}
		return s
	}
}

func identity(s string) string { return s }

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// WriteConsole prints every present section as a plain-text report.
func WriteConsole(w io.Writer, doc *Document) error {
	pr := newPrinter(w)

	if d := doc.Demographics; d != nil {
		pr.banner("DEMOGRAPHIC ANALYSIS")
		pr.printf("\nPATIENT OVERVIEW:\n")
		pr.printf("  Total Patients: %s\n", pr.num(d.TotalPatients))
		pr.printf("  Active Patients: %s (%.1f%%)\n", pr.num(d.ActivePatients), d.ActivePercent)
		pr.printf("  Deceased Patients: %s (%.1f%%)\n", pr.num(d.DeceasedPatients), d.DeceasedPercent)

		pr.printf("\nAGE ANALYSIS:\n")
		pr.printf("  Average Age: %.1f years\n", d.Age.Mean)
		pr.printf("  Median Age: %.1f years\n", d.Age.Median)
		pr.printf("  Age Range: %.1f - %.1f years\n", d.Age.Min, d.Age.Max)
		pr.printf("  Standard Deviation: %.1f years\n", d.Age.Std)
		pr.printf("\n  Age Group Distribution:\n")
		pr.shares("    ", d.AgeGroups, identity)

		pr.printf("\nGENDER DISTRIBUTION:\n")
		pr.shares("  ", d.Gender, lookup(genderLabels))
		pr.printf("\nRACE DISTRIBUTION:\n")
		pr.shares("  ", d.Race, pr.title.String)
		pr.printf("\nETHNICITY DISTRIBUTION:\n")
		pr.shares("  ", d.Ethnicity, pr.title.String)
		pr.printf("\nMARITAL STATUS:\n")
		pr.shares("  ", d.Marital, lookup(maritalLabels))
		pr.printf("\nGEOGRAPHIC DISTRIBUTION:\n  Top 10 States:\n")
		pr.shares("    ", d.TopStates, identity)
	}

	if f := doc.Financial; f != nil {
		pr.banner("FINANCIAL ANALYSIS")
		pr.printf("\nOVERALL REVENUE METRICS:\n")
		pr.printf("  Total Base Encounter Cost: %s\n", pr.money(f.TotalBaseCost))
		pr.printf("  Total Claim Cost: %s\n", pr.money(f.TotalRevenue))
		pr.printf("  Total Payer Coverage: %s\n", pr.money(f.TotalPayerCoverage))
		pr.printf("  Total Patient Out-of-Pocket: %s\n", pr.money(f.TotalOutOfPocket))
		pr.printf("  Average Coverage Rate: %.2f%%\n", f.AvgCoverageRate)

		pr.printf("\nCOSTS BY ENCOUNTER TYPE:\n")
		for _, c := range f.ByClass {
			pr.printf("  %s:\n", pr.title.String(c.Class))
			pr.printf("    Count: %s\n", pr.num(c.Count))
			pr.printf("    Average Cost: %s\n", pr.money(c.AvgCost))
			pr.printf("    Total Revenue: %s\n", pr.money(c.TotalCost))
		}

		pr.printf("\nHIGH-COST ENCOUNTERS (Top 10%%):\n")
		pr.printf("  Threshold: %s\n", pr.money(f.HighCost.Threshold))
		pr.printf("  Count: %s\n", pr.num(f.HighCost.Count))
		pr.printf("  Total Cost: %s\n", pr.money(f.HighCost.TotalCost))
		pr.printf("  Average Cost: %s\n", pr.money(f.HighCost.AvgCost))

		pr.printf("\nINSURANCE COVERAGE ANALYSIS:\n")
		pr.printf("  Encounters with Full Coverage (100%%): %s\n", pr.num(f.Coverage.Full))
		pr.printf("  Encounters with No Coverage (0%%): %s\n", pr.num(f.Coverage.None))
		pr.printf("  Encounters with Partial Coverage: %s\n", pr.num(f.Coverage.Partial))
		if f.Coverage.Over > 0 {
			pr.printf("  Encounters Covered Above Claim: %s\n", pr.num(f.Coverage.Over))
		}

		pr.printf("\nTOP 10 PAYERS BY COVERAGE:\n")
		for i, p := range f.TopPayers {
			pr.printf("  %d. %s: %s\n", i+1, truncate(p.Name, 40), pr.money(p.Coverage))
		}
	}

	if c := doc.Clinical; c != nil {
		pr.banner("CLINICAL OPERATIONS ANALYSIS")
		pr.printf("\nENCOUNTER STATISTICS:\n")
		pr.printf("  Total Encounters: %s\n", pr.num(c.TotalEncounters))
		pr.printf("  Average Duration: %.2f hours\n", c.AvgDurationHours)
		pr.printf("  Median Duration: %.2f hours\n", c.MedianDurationHours)
		pr.printf("\nMOST COMMON ENCOUNTER TYPES:\n")
		pr.shares("  ", c.EncounterClasses, pr.title.String)
		pr.printf("\nTOP 10 ENCOUNTER DESCRIPTIONS:\n")
		pr.counts(c.TopEncounterDescriptions, 80)

		pr.printf("\nPROCEDURE STATISTICS:\n")
		pr.printf("  Total Procedures: %s\n", pr.num(c.TotalProcedures))
		pr.printf("  Average Procedure Cost: %s\n", pr.money(c.AvgProcedureCost))
		pr.printf("  Median Procedure Cost: %s\n", pr.money(c.MedianProcedureCost))
		pr.printf("  Total Procedure Revenue: %s\n", pr.money(c.TotalProcedureCost))
		pr.printf("\nTOP 15 MOST COMMON PROCEDURES:\n")
		pr.counts(c.TopProcedures, 60)
		pr.printf("\nTOP 10 HIGHEST COST PROCEDURES:\n")
		for i, p := range c.CostliestProcedures {
			pr.printf("  %d. %s: %s\n", i+1, truncate(p.Description, 60), pr.money(p.AvgCost))
		}
		pr.printf("\nTOP 10 REASONS FOR ENCOUNTERS:\n")
		pr.counts(c.TopReasons, 80)
	}

	if t := doc.Temporal; t != nil {
		pr.banner("TEMPORAL PATTERN ANALYSIS")
		pr.printf("\nENCOUNTERS BY YEAR:\n")
		for _, y := range t.ByYear {
			pr.printf("  %s: %s\n", strconv.Itoa(y.Year), pr.num(y.Count))
		}
		pr.printf("\nENCOUNTERS BY MONTH:\n")
		pr.shares("  ", t.ByMonth, identity)
		pr.printf("\nENCOUNTERS BY DAY OF WEEK:\n")
		pr.shares("  ", t.ByDayOfWeek, identity)
		pr.printf("\nPEAK HOURS (Top 10):\n")
		for _, h := range t.PeakHours {
			pr.printf("  %s - %s encounters\n", fmt.Sprintf("%02d:00", h.Hour), pr.num(h.Count))
		}
	}

	if r := doc.Risk; r != nil {
		pr.banner("RISK FACTOR ANALYSIS")
		pr.printf("\nHIGH UTILIZERS (>=10 encounters):\n")
		pr.printf("  Count: %s\n", pr.num(r.HighUtilizers.Count))
		pr.printf("  Percentage of Patients: %.2f%%\n", r.HighUtilizers.PercentOfPatients)
		pr.printf("  Average Encounters: %.1f\n", r.HighUtilizers.AvgEncounters)
		pr.printf("  Total Cost Impact: %s\n", pr.money(r.HighUtilizers.TotalCost))
		pr.printf("  Average Cost per Patient: %s\n", pr.money(r.HighUtilizers.AvgCostPerPatient))

		pr.printf("\nHIGH COST PATIENTS (Top 10%%):\n")
		pr.printf("  Count: %s\n", pr.num(r.HighCostPatients.Count))
		pr.printf("  Cost Threshold: %s\n", pr.money(r.HighCostPatients.Threshold))
		pr.printf("  Total Cost: %s\n", pr.money(r.HighCostPatients.TotalCost))
		pr.printf("  Average Cost: %s\n", pr.money(r.HighCostPatients.AvgCost))
		pr.printf("  Percentage of Total Costs: %.1f%%\n", r.HighCostPatients.PercentOfTotalCost)

		pr.printf("\nPATIENTS WITH MULTIPLE CONDITIONS (>=3 diagnoses):\n")
		pr.printf("  Count: %s\n", pr.num(r.MultiCondition.Count))
		pr.printf("  Percentage of Patients: %.2f%%\n", r.MultiCondition.PercentOfPatients)
		pr.printf("  Average Diagnoses: %.1f\n", r.MultiCondition.AvgDiagnoses)

		pr.printf("\nRISK TIERS:\n")
		pr.shares("  ", r.RiskTiers, identity)
	}

	if u := doc.Utilization; u != nil {
		pr.banner("UTILIZATION ANALYSIS")
		pr.printf("\n  Unique Patients: %s\n", pr.num(u.PatientsWithEncounters))
		pr.printf("  Patients with Readmissions: %s\n", pr.num(u.ReadmittedPatients))
		pr.printf("  Readmission Rate: %.1f%%\n", u.ReadmissionRate)
		pr.printf("  Average Encounters/Patient: %.2f\n", u.AvgEncountersPerPatient)
		pr.printf("  Maximum Encounters (1 patient): %s\n", pr.num(u.MaxEncounters))
		pr.printf("\nREADMISSION DISTRIBUTION:\n")
		pr.shares("  ", u.VisitBuckets, identity)
		pr.printf("\nLENGTH OF STAY BY TYPE:\n")
		for _, l := range u.LengthOfStay {
			pr.printf("  %-15s avg %8.2f h  median %8.2f h  avg %6.2f d  n=%s\n",
				l.Class, l.AvgHours, l.MedianHours, l.AvgDays, pr.num(l.Count))
		}
		pr.printf("\nCOST PER VISIT BY TYPE:\n")
		for _, c := range u.CostPerVisit {
			pr.printf("  %-15s avg %s  median %s  total %s (%.1f%%)\n",
				c.Class, pr.money(c.AvgCost), pr.money(c.MedianCost), pr.money(c.TotalCost), c.PercentOfTotal)
		}
	}

	if pc := doc.ProcedureCoverage; pc != nil {
		pr.banner("PROCEDURE INSURANCE COVERAGE")
		pr.printf("\n  Total Procedures: %s\n", pr.num(pc.TotalProcedures))
		pr.printf("  Procedures with Coverage: %s (%.1f%%)\n", pr.num(pc.Covered), pc.CoveredPercent)
		pr.printf("  Procedures without Coverage: %s (%.1f%%)\n", pr.num(pc.NotCovered), pc.NotCoveredPercent)
		pr.printf("  Total Claim Amount: %s\n", pr.money(pc.TotalClaim))
		pr.printf("  Total Insurance Coverage: %s\n", pr.money(pc.TotalCoverage))
		pr.printf("  Total Patient Responsibility: %s\n", pr.money(pc.PatientResponsibility))
		pr.printf("  Overall Coverage Rate: %.1f%%\n", pc.CoverageRate)
		pr.printf("  Avg Coverage (when covered): %s\n", pr.money(pc.AvgCoverageWhenCovered))
		for _, c := range pc.ByClass {
			pr.printf("  %-15s %5.1f%% (%s procedures)\n", c.Class, c.CoveredPercent, pr.num(c.Procedures))
		}
	}

	for _, name := range Sections() {
		if msg, ok := doc.Errors[name]; ok {
			pr.printf("\nSECTION %s FAILED: %s\n", strings.ToUpper(name), msg)
		}
	}
	if pr.err != nil {
		return fmt.Errorf("write console report: %w", pr.err)
	}
	return nil
}
