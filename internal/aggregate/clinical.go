package aggregate

import (
	"sort"

	"hospitalstats/internal/features"
	"hospitalstats/internal/records"
)

type DescriptionCost struct {
	Description string  `json:"description"`
	AvgCost     float64 `json:"avg_cost"`
}

// Clinical class percentages are shares of all encounters.
type Clinical struct {
	TotalEncounters          int               `json:"total_encounters"`
	AvgDurationHours         float64           `json:"avg_duration_hours"`
	MedianDurationHours      float64           `json:"median_duration_hours"`
	EncounterClasses         []Share           `json:"encounter_classes"`
	MostCommonEncounter      string            `json:"most_common_encounter"`
	TopEncounterDescriptions []Count           `json:"top_encounter_descriptions"`
	TotalProcedures          int               `json:"total_procedures"`
	AvgProcedureCost         float64           `json:"avg_procedure_cost"`
	MedianProcedureCost      float64           `json:"median_procedure_cost"`
	TotalProcedureCost       float64           `json:"total_procedure_cost"`
	TopProcedures            []Count           `json:"top_procedures"`
	CostliestProcedures      []DescriptionCost `json:"costliest_procedures"`
	TopReasons               []Count           `json:"top_reasons"`
}

func SummarizeClinical(encounters []features.Encounter, procedures []records.Procedure) *Clinical {
	c := &Clinical{TotalEncounters: len(encounters), TotalProcedures: len(procedures)}

	classes, descs, reasons := newCounter(), newCounter(), newCounter()
	var durations []float64
	for _, e := range encounters {
		classes.add(e.Class)
		descs.add(e.Description)
		if e.ReasonDescription != nil {
			reasons.add(*e.ReasonDescription)
		}
		durations = append(durations, present(e.DurationHours)...)
	}
	if len(durations) > 0 {
		c.AvgDurationHours = round2(Mean(durations))
		c.MedianDurationHours = round2(Median(durations))
	}
	classCounts := classes.sorted()
	c.EncounterClasses = shares(classCounts, c.TotalEncounters)
	c.MostCommonEncounter = firstLabel(classCounts)
	c.TopEncounterDescriptions = top(descs.sorted(), 10)
	c.TopReasons = top(reasons.sorted(), 10)

	procs := newCounter()
	byDesc := map[string][]float64{}
	var costs []float64
	for _, p := range procedures {
		procs.add(p.Description)
		costs = append(costs, present(p.BaseCost)...)
		if p.Description != "" && p.BaseCost != nil {
			byDesc[p.Description] = append(byDesc[p.Description], *p.BaseCost)
		}
	}
	if len(costs) > 0 {
		c.AvgProcedureCost = cents(moneyMean(costs))
		c.MedianProcedureCost = round2(Median(costs))
		c.TotalProcedureCost = cents(MoneySum(costs))
	}
	c.TopProcedures = top(procs.sorted(), 15)
	c.CostliestProcedures = costliest(byDesc, 10)
	return c
}

// costliest ranks descriptions by mean cost, descending. Ties order by
// description.
func costliest(byDesc map[string][]float64, n int) []DescriptionCost {
	out := make([]DescriptionCost, 0, len(byDesc))
	for d, costs := range byDesc {
		out = append(out, DescriptionCost{Description: d, AvgCost: Mean(costs)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgCost != out[j].AvgCost {
			return out[i].AvgCost > out[j].AvgCost
		}
		return out[i].Description < out[j].Description
	})
	if len(out) > n {
		out = out[:n]
	}
	for i := range out {
		out[i].AvgCost = round2(out[i].AvgCost)
	}
	return out
}
