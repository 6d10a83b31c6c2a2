package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"hospitalstats/internal/features"
)

const (
	HighCostQuantile = 0.90
	UnknownPayer     = "Unknown"
)

type ClassCost struct {
	Class     string  `json:"class"`
	Count     int     `json:"count"`
	AvgCost   float64 `json:"avg_cost"`
	TotalCost float64 `json:"total_cost"`

	total decimal.Decimal
}

// HighCostEncounters are encounters strictly above the P90 claim cost.
type HighCostEncounters struct {
	Threshold float64 `json:"threshold"`
	Count     int     `json:"count"`
	TotalCost float64 `json:"total_cost"`
	AvgCost   float64 `json:"avg_cost"`
}

// CoverageBuckets counts encounters by coverage rate. Over counts rates
// above 100.
type CoverageBuckets struct {
	Full    int `json:"full"`
	None    int `json:"none"`
	Partial int `json:"partial"`
	Over    int `json:"over"`
}

type PayerCoverage struct {
	PayerID  string  `json:"payer_id"`
	Name     string  `json:"name"`
	Coverage float64 `json:"coverage"`
}

type Financial struct {
	TotalBaseCost       float64            `json:"total_base_cost"`
	TotalRevenue        float64            `json:"total_revenue"`
	TotalPayerCoverage  float64            `json:"total_payer_coverage"`
	TotalOutOfPocket    float64            `json:"total_out_of_pocket"`
	AvgCostPerEncounter float64            `json:"avg_cost_per_encounter"`
	AvgCoverageRate     float64            `json:"avg_coverage_rate"`
	ByClass             []ClassCost        `json:"by_class"`
	HighCost            HighCostEncounters `json:"high_cost"`
	Coverage            CoverageBuckets    `json:"coverage"`
	TopPayers           []PayerCoverage    `json:"top_payers"`
}

// SummarizeFinancial reduces encounter costs. payerNames resolves payer ids;
// unknown ids are reported as "Unknown".
func SummarizeFinancial(encounters []features.Encounter, payerNames map[string]string) *Financial {
	var base, claim, covered, oop, rates []float64
	classes := newCounter()
	classCosts := map[string][]float64{}
	payerOrder := []string{}
	payerCov := map[string][]float64{}
	var buckets CoverageBuckets

	for _, e := range encounters {
		base = append(base, present(e.BaseCost)...)
		claim = append(claim, present(e.TotalClaimCost)...)
		covered = append(covered, present(e.PayerCoverage)...)
		oop = append(oop, present(e.OutOfPocket)...)
		rates = append(rates, e.CoverageRate)

		switch r := e.CoverageRate; {
		case r == 100:
			buckets.Full++
		case r == 0:
			buckets.None++
		case r > 100:
			buckets.Over++
		default:
			buckets.Partial++
		}

		if e.Class != "" {
			classes.add(e.Class)
			classCosts[e.Class] = append(classCosts[e.Class], present(e.TotalClaimCost)...)
		}
		if e.PayerID != "" {
			if _, ok := payerCov[e.PayerID]; !ok {
				payerOrder = append(payerOrder, e.PayerID)
				payerCov[e.PayerID] = nil
			}
			payerCov[e.PayerID] = append(payerCov[e.PayerID], present(e.PayerCoverage)...)
		}
	}

	f := &Financial{
		TotalBaseCost:       cents(MoneySum(base)),
		TotalRevenue:        cents(MoneySum(claim)),
		TotalPayerCoverage:  cents(MoneySum(covered)),
		TotalOutOfPocket:    cents(MoneySum(oop)),
		AvgCostPerEncounter: cents(moneyMean(claim)),
		AvgCoverageRate:     round2(Mean(rates)),
		Coverage:            buckets,
	}

	for _, c := range classes.order {
		costs := classCosts[c]
		total := MoneySum(costs)
		f.ByClass = append(f.ByClass, ClassCost{
			Class:     c,
			Count:     len(costs),
			AvgCost:   cents(moneyMean(costs)),
			TotalCost: cents(total),
			total:     total,
		})
	}
	sort.SliceStable(f.ByClass, func(i, j int) bool {
		return f.ByClass[i].total.GreaterThan(f.ByClass[j].total)
	})

	if len(claim) > 0 {
		threshold := Quantile(claim, HighCostQuantile)
		var above []float64
		for _, c := range claim {
			if c > threshold {
				above = append(above, c)
			}
		}
		f.HighCost = HighCostEncounters{
			Threshold: round2(threshold),
			Count:     len(above),
			TotalCost: cents(MoneySum(above)),
			AvgCost:   cents(moneyMean(above)),
		}
	}

	type payerTotal struct {
		id    string
		total decimal.Decimal
	}
	totals := make([]payerTotal, 0, len(payerOrder))
	for _, id := range payerOrder {
		totals = append(totals, payerTotal{id: id, total: MoneySum(payerCov[id])})
	}
	sort.SliceStable(totals, func(i, j int) bool { return totals[i].total.GreaterThan(totals[j].total) })
	if len(totals) > 10 {
		totals = totals[:10]
	}
	for _, pt := range totals {
		name, ok := payerNames[pt.id]
		if !ok {
			name = UnknownPayer
		}
		f.TopPayers = append(f.TopPayers, PayerCoverage{PayerID: pt.id, Name: name, Coverage: cents(pt.total)})
	}
	return f
}
