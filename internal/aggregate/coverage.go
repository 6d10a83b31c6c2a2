package aggregate

import (
	"sort"

	"hospitalstats/internal/features"
	"hospitalstats/internal/records"
)

type ClassCoverage struct {
	Class            string  `json:"class"`
	Procedures       int     `json:"procedures"`
	Covered          int     `json:"covered"`
	CoveredPercent   float64 `json:"covered_percent"`
	AvgPayerCoverage float64 `json:"avg_payer_coverage"`
}

// ProcedureCoverage attributes encounter coverage to procedures. Shares
// divide by the number of procedure rows.
type ProcedureCoverage struct {
	TotalProcedures        int             `json:"total_procedures"`
	Covered                int             `json:"covered"`
	NotCovered             int             `json:"not_covered"`
	CoveredPercent         float64         `json:"covered_percent"`
	NotCoveredPercent      float64         `json:"not_covered_percent"`
	TotalClaim             float64         `json:"total_claim"`
	TotalCoverage          float64         `json:"total_coverage"`
	PatientResponsibility  float64         `json:"patient_responsibility"`
	CoverageRate           float64         `json:"coverage_rate"`
	AvgCoverageWhenCovered float64         `json:"avg_coverage_when_covered"`
	ByClass                []ClassCoverage `json:"by_class"`
}

// SummarizeProcedureCoverage left-joins procedures to their encounters. A
// procedure counts as covered when its encounter's payer coverage is above
// zero; unmatched procedures are uncovered.
func SummarizeProcedureCoverage(procedures []records.Procedure, encounters []features.Encounter) *ProcedureCoverage {
	byID := make(map[string]*features.Encounter, len(encounters))
	for i := range encounters {
		if _, dup := byID[encounters[i].ID]; !dup {
			byID[encounters[i].ID] = &encounters[i]
		}
	}

	pc := &ProcedureCoverage{TotalProcedures: len(procedures)}
	var claims, coverages, coveredAmounts []float64
	classes := newCounter()
	classCov := map[string][]float64{}
	classCovered := map[string]int{}

	for _, p := range procedures {
		e := byID[p.EncounterID]
		if e == nil {
			continue
		}
		claims = append(claims, present(e.TotalClaimCost)...)
		coverages = append(coverages, present(e.PayerCoverage)...)
		covered := e.PayerCoverage != nil && *e.PayerCoverage > 0
		if covered {
			pc.Covered++
			coveredAmounts = append(coveredAmounts, *e.PayerCoverage)
		}
		if e.Class != "" {
			classes.add(e.Class)
			classCov[e.Class] = append(classCov[e.Class], present(e.PayerCoverage)...)
			if covered {
				classCovered[e.Class]++
			}
		}
	}
	pc.NotCovered = pc.TotalProcedures - pc.Covered
	pc.CoveredPercent = percent(pc.Covered, pc.TotalProcedures)
	pc.NotCoveredPercent = percent(pc.NotCovered, pc.TotalProcedures)

	claim := MoneySum(claims)
	coverage := MoneySum(coverages)
	pc.TotalClaim = cents(claim)
	pc.TotalCoverage = cents(coverage)
	pc.PatientResponsibility = cents(claim.Sub(coverage))
	if claim.IsPositive() {
		pc.CoverageRate = round2(coverage.Div(claim).InexactFloat64() * 100)
	}
	pc.AvgCoverageWhenCovered = cents(moneyMean(coveredAmounts))

	for _, class := range classes.order {
		n := classes.counts[class]
		pc.ByClass = append(pc.ByClass, ClassCoverage{
			Class:            class,
			Procedures:       n,
			Covered:          classCovered[class],
			CoveredPercent:   percent(classCovered[class], n),
			AvgPayerCoverage: cents(moneyMean(classCov[class])),
		})
	}
	sort.SliceStable(pc.ByClass, func(i, j int) bool { return pc.ByClass[i].CoveredPercent > pc.ByClass[j].CoveredPercent })
	return pc
}
