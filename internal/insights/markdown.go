package insights

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"hospitalstats/internal/aggregate"
)

// WriteMarkdown renders the document as the Markdown analysis report that the
// pdf step converts.
func WriteMarkdown(w io.Writer, doc *Document) error {
	pr := newPrinter(w)

	pr.printf("# Hospital Records Analysis Report\n\n")
	pr.printf("- Run: `%s`\n", doc.Run.RunID)
	pr.printf("- Generated: %s\n", doc.Run.GeneratedAt.Format("2006-01-02 15:04 MST"))
	pr.printf("- Reference time: %s\n\n", doc.Run.ReferenceTime.Format("2006-01-02"))

	if len(doc.Run.Tables) > 0 {
		pr.printf("| Table | Rows |\n|---|---:|\n")
		for _, t := range []string{"patients", "encounters", "procedures", "organizations", "payers"} {
			if n, ok := doc.Run.Tables[t]; ok {
				pr.printf("| %s | %s |\n", t, pr.num(int(n)))
			}
		}
		pr.printf("\n")
	}

	if d := doc.Demographics; d != nil {
		pr.printf("## Demographics\n\n")
		pr.printf("%s patients, %s active (%.1f%%), %s deceased (%.1f%%). ",
			pr.num(d.TotalPatients), pr.num(d.ActivePatients), d.ActivePercent, pr.num(d.DeceasedPatients), d.DeceasedPercent)
		pr.printf("Average age %.1f years (median %.1f, sd %.1f).\n\n", d.Age.Mean, d.Age.Median, d.Age.Std)
		pr.shareTable("Age group", d.AgeGroups, identity)
		pr.shareTable("Gender", d.Gender, lookup(genderLabels))
		pr.shareTable("Race", d.Race, pr.title.String)
		pr.shareTable("State", d.TopStates, identity)
	}

	if f := doc.Financial; f != nil {
		pr.printf("## Financial\n\n")
		pr.printf("| Metric | Value |\n|---|---:|\n")
		pr.printf("| Total revenue | %s |\n", pr.money(f.TotalRevenue))
		pr.printf("| Total payer coverage | %s |\n", pr.money(f.TotalPayerCoverage))
		pr.printf("| Total out-of-pocket | %s |\n", pr.money(f.TotalOutOfPocket))
		pr.printf("| Average cost per encounter | %s |\n", pr.money(f.AvgCostPerEncounter))
		pr.printf("| Average coverage rate | %.2f%% |\n", f.AvgCoverageRate)
		pr.printf("| High-cost threshold (P90) | %s |\n", pr.money(f.HighCost.Threshold))
		pr.printf("| High-cost encounters | %s |\n\n", pr.num(f.HighCost.Count))

		pr.printf("| Encounter class | Count | Average cost | Total cost |\n|---|---:|---:|---:|\n")
		for _, c := range f.ByClass {
			pr.printf("| %s | %s | %s | %s |\n", pr.title.String(c.Class), pr.num(c.Count), pr.money(c.AvgCost), pr.money(c.TotalCost))
		}
		pr.printf("\n")
	}

	if c := doc.Clinical; c != nil {
		pr.printf("## Clinical operations\n\n")
		pr.printf("%s encounters averaging %.2f hours; %s procedures averaging %s.\n\n",
			pr.num(c.TotalEncounters), c.AvgDurationHours, pr.num(c.TotalProcedures), pr.money(c.AvgProcedureCost))
		pr.shareTable("Encounter class", c.EncounterClasses, pr.title.String)
		pr.countTable("Procedure", c.TopProcedures)
		pr.countTable("Reason", c.TopReasons)
	}

	if t := doc.Temporal; t != nil {
		pr.printf("## Temporal patterns\n\n")
		busiest := "n/a"
		if t.BusiestHour != nil {
			busiest = fmt.Sprintf("%02d:00", *t.BusiestHour)
		}
		pr.printf("%d years covered. Busiest month %s, busiest day %s, busiest hour %s.\n\n",
			t.YearsCovered, orNA(t.BusiestMonth), orNA(t.BusiestDay), busiest)
		pr.printf("| Year | Encounters |\n|---|---:|\n")
		for _, y := range t.ByYear {
			pr.printf("| %s | %s |\n", strconv.Itoa(y.Year), pr.num(y.Count))
		}
		pr.printf("\n")
	}

	if r := doc.Risk; r != nil {
		pr.printf("## Risk analysis\n\n")
		pr.printf("- High utilizers: %s (%.2f%% of patients), average cost %s\n",
			pr.num(r.HighUtilizers.Count), r.HighUtilizers.PercentOfPatients, pr.money(r.HighUtilizers.AvgCostPerPatient))
		pr.printf("- High-cost patients: %s above %s, %.1f%% of all claim cost\n",
			pr.num(r.HighCostPatients.Count), pr.money(r.HighCostPatients.Threshold), r.HighCostPatients.PercentOfTotalCost)
		pr.printf("- Multi-condition patients: %s (%.2f%% of patients)\n\n",
			pr.num(r.MultiCondition.Count), r.MultiCondition.PercentOfPatients)
		pr.shareTable("Risk tier", r.RiskTiers, identity)
	}

	if u := doc.Utilization; u != nil {
		pr.printf("## Utilization\n\n")
		pr.printf("Readmission rate %.1f%% (%s of %s patients). Average length of stay %.2f hours.\n\n",
			u.ReadmissionRate, pr.num(u.ReadmittedPatients), pr.num(u.PatientsWithEncounters), u.AvgLengthOfStayHours)
		pr.shareTable("Visits", u.VisitBuckets, identity)
	}

	if pc := doc.ProcedureCoverage; pc != nil {
		pr.printf("## Procedure coverage\n\n")
		pr.printf("%s of %s procedures covered (%.1f%%). Patient responsibility %s.\n\n",
			pr.num(pc.Covered), pr.num(pc.TotalProcedures), pc.CoveredPercent, pr.money(pc.PatientResponsibility))
	}

	if len(doc.Errors) > 0 {
		pr.printf("## Failed sections\n\n")
		for _, name := range Sections() {
			if msg, ok := doc.Errors[name]; ok {
				pr.printf("- **%s**: %s\n", name, escapePipes(msg))
			}
		}
		pr.printf("\n")
	}

	if pr.err != nil {
		return fmt.Errorf("write markdown report: %w", pr.err)
	}
	return nil
}

func (pr *printer) shareTable(heading string, shares []aggregate.Share, label func(string) string) {
	if len(shares) == 0 {
		return
	}
	pr.printf("| %s | Count | Percent |\n|---|---:|---:|\n", heading)
	for _, s := range shares {
		pr.printf("| %s | %s | %.1f%% |\n", escapePipes(label(s.Label)), pr.num(s.Count), s.Percent)
	}
	pr.printf("\n")
}

func (pr *printer) countTable(heading string, counts []aggregate.Count) {
	if len(counts) == 0 {
		return
	}
	pr.printf("| %s | Count |\n|---|---:|\n", heading)
	for _, c := range counts {
		pr.printf("| %s | %s |\n", escapePipes(c.Label), pr.num(c.Count))
	}
	pr.printf("\n")
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
