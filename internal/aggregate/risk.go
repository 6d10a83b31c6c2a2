package aggregate

import (
	"sort"

	"hospitalstats/internal/features"
)

const (
	HighUtilizerVisits   = 10
	MultiConditionCount  = 3
	MediumRiskVisits     = 5
	RiskTierLow          = "Low Risk (<5)"
	RiskTierMedium       = "Medium Risk (5-9)"
	RiskTierHigh         = "High Risk (>=10)"
	highCostPatientQuant = 0.90
)

var RiskTiers = []string{RiskTierLow, RiskTierMedium, RiskTierHigh}

// PatientStats is the per-patient reduction of the encounter table.
type PatientStats struct {
	PatientID          string
	EncounterCount     int
	TotalCost          float64
	AvgBaseCost        *float64
	TotalDurationHours float64
	DistinctReasons    int
}

// PatientLevel groups encounters by patient reference, ordered by patient id.
// Encounters without a patient reference are ignored.
func PatientLevel(encounters []features.Encounter) []PatientStats {
	type acc struct {
		costs, bases, durations []float64
		count                   int
		reasons                 map[string]struct{}
	}
	byPatient := map[string]*acc{}
	for _, e := range encounters {
		if e.PatientID == "" {
			continue
		}
		a := byPatient[e.PatientID]
		if a == nil {
			a = &acc{reasons: map[string]struct{}{}}
			byPatient[e.PatientID] = a
		}
		a.count++
		a.costs = append(a.costs, present(e.TotalClaimCost)...)
		a.bases = append(a.bases, present(e.BaseCost)...)
		a.durations = append(a.durations, present(e.DurationHours)...)
		if e.ReasonDescription != nil && *e.ReasonDescription != "" {
			a.reasons[*e.ReasonDescription] = struct{}{}
		}
	}

	out := make([]PatientStats, 0, len(byPatient))
	for id, a := range byPatient {
		ps := PatientStats{
			PatientID:          id,
			EncounterCount:     a.count,
			TotalCost:          MoneySum(a.costs).InexactFloat64(),
			TotalDurationHours: sum(a.durations),
			DistinctReasons:    len(a.reasons),
		}
		if len(a.bases) > 0 {
			m := Mean(a.bases)
			ps.AvgBaseCost = &m
		}
		out = append(out, ps)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatientID < out[j].PatientID })
	return out
}

type HighUtilizers struct {
	Count             int     `json:"count"`
	PercentOfPatients float64 `json:"percent_of_patients"`
	AvgEncounters     float64 `json:"avg_encounters"`
	TotalCost         float64 `json:"total_cost"`
	AvgCostPerPatient float64 `json:"avg_cost_per_patient"`
}

type HighCostPatients struct {
	Count              int     `json:"count"`
	Threshold          float64 `json:"threshold"`
	TotalCost          float64 `json:"total_cost"`
	AvgCost            float64 `json:"avg_cost"`
	PercentOfTotalCost float64 `json:"percent_of_total_cost"`
}

type MultiCondition struct {
	Count             int     `json:"count"`
	PercentOfPatients float64 `json:"percent_of_patients"`
	AvgDiagnoses      float64 `json:"avg_diagnoses"`
}

// Risk percentages of patients divide by the patient table size; tier
// percentages divide by patients with at least one encounter.
type Risk struct {
	PatientsWithEncounters int              `json:"patients_with_encounters"`
	HighUtilizers          HighUtilizers    `json:"high_utilizers"`
	HighCostPatients       HighCostPatients `json:"high_cost_patients"`
	MultiCondition         MultiCondition   `json:"multi_condition"`
	RiskTiers              []Share          `json:"risk_tiers"`
}

// SummarizeRisk segments patients. totalPatients is the size of the patient
// table.
func SummarizeRisk(encounters []features.Encounter, totalPatients int) *Risk {
	stats := PatientLevel(encounters)
	r := &Risk{PatientsWithEncounters: len(stats)}

	var utilVisits, utilCosts, allCosts, multiReasons []float64
	tiers := newCounter()
	for _, ps := range stats {
		allCosts = append(allCosts, ps.TotalCost)
		if ps.EncounterCount >= HighUtilizerVisits {
			utilVisits = append(utilVisits, float64(ps.EncounterCount))
			utilCosts = append(utilCosts, ps.TotalCost)
		}
		if ps.DistinctReasons >= MultiConditionCount {
			multiReasons = append(multiReasons, float64(ps.DistinctReasons))
		}
		tiers.add(RiskTierOf(ps.EncounterCount))
	}

	r.HighUtilizers = HighUtilizers{
		Count:             len(utilVisits),
		PercentOfPatients: percent(len(utilVisits), totalPatients),
		AvgEncounters:     round2(Mean(utilVisits)),
		TotalCost:         cents(MoneySum(utilCosts)),
		AvgCostPerPatient: cents(moneyMean(utilCosts)),
	}

	if len(allCosts) > 0 {
		threshold := Quantile(allCosts, highCostPatientQuant)
		var hc []float64
		for _, c := range allCosts {
			if c >= threshold {
				hc = append(hc, c)
			}
		}
		// The share is of all claim cost, including encounters without a
		// patient reference.
		var claims []float64
		for _, e := range encounters {
			claims = append(claims, present(e.TotalClaimCost)...)
		}
		grand := MoneySum(claims)
		hcSum := MoneySum(hc)
		share := 0.0
		if !grand.IsZero() {
			share = hcSum.Div(grand).InexactFloat64() * 100
		}
		r.HighCostPatients = HighCostPatients{
			Count:              len(hc),
			Threshold:          round2(threshold),
			TotalCost:          cents(hcSum),
			AvgCost:            cents(moneyMean(hc)),
			PercentOfTotalCost: round2(share),
		}
	}

	r.MultiCondition = MultiCondition{
		Count:             len(multiReasons),
		PercentOfPatients: percent(len(multiReasons), totalPatients),
		AvgDiagnoses:      round2(Mean(multiReasons)),
	}
	r.RiskTiers = shares(tiers.inOrder(RiskTiers), len(stats))
	return r
}

// RiskTierOf buckets a patient's encounter count.
func RiskTierOf(visits int) string {
	switch {
	case visits >= HighUtilizerVisits:
		return RiskTierHigh
	case visits >= MediumRiskVisits:
		return RiskTierMedium
	default:
		return RiskTierLow
	}
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}
