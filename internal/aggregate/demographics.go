package aggregate

import "hospitalstats/internal/features"

// AgeStats summarizes known ages.
type AgeStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Std    float64 `json:"std"`
}

// Demographics percentages are shares of all patients.
type Demographics struct {
	TotalPatients    int      `json:"total_patients"`
	ActivePatients   int      `json:"active_patients"`
	DeceasedPatients int      `json:"deceased_patients"`
	ActivePercent    float64  `json:"active_percent"`
	DeceasedPercent  float64  `json:"deceased_percent"`
	Age              AgeStats `json:"age"`
	AgeGroups        []Share  `json:"age_groups"`
	Gender           []Share  `json:"gender"`
	Race             []Share  `json:"race"`
	Ethnicity        []Share  `json:"ethnicity"`
	Marital          []Share  `json:"marital"`
	TopStates        []Share  `json:"top_states"`
	// AgeGenderMatrix counts patients per age group (canonical order) and
	// gender.
	AgeGenderMatrix map[string]map[string]int `json:"age_gender_matrix"`
}

func SummarizeDemographics(patients []features.Patient) *Demographics {
	d := &Demographics{TotalPatients: len(patients), AgeGenderMatrix: map[string]map[string]int{}}

	gender, race, eth, marital, state, groups := newCounter(), newCounter(), newCounter(), newCounter(), newCounter(), newCounter()
	var ages []float64
	for _, p := range patients {
		if p.Deceased() {
			d.DeceasedPatients++
		}
		gender.add(p.Gender)
		race.add(p.Race)
		eth.add(p.Ethnicity)
		marital.add(p.Marital)
		state.add(p.State)
		if p.Age != nil {
			ages = append(ages, *p.Age)
		}
		if p.AgeGroup != nil {
			groups.add(*p.AgeGroup)
			if p.Gender != "" {
				row := d.AgeGenderMatrix[*p.AgeGroup]
				if row == nil {
					row = map[string]int{}
					d.AgeGenderMatrix[*p.AgeGroup] = row
				}
				row[p.Gender]++
			}
		}
	}
	d.ActivePatients = d.TotalPatients - d.DeceasedPatients
	d.ActivePercent = percent(d.ActivePatients, d.TotalPatients)
	d.DeceasedPercent = percent(d.DeceasedPatients, d.TotalPatients)

	if len(ages) > 0 {
		lo, hi := minMax(ages)
		d.Age = AgeStats{
			Count:  len(ages),
			Mean:   round2(Mean(ages)),
			Median: round2(Median(ages)),
			Min:    lo,
			Max:    hi,
			Std:    round2(Std(ages)),
		}
	}

	n := d.TotalPatients
	d.AgeGroups = shares(groups.inOrder(features.AgeGroups), n)
	d.Gender = shares(gender.sorted(), n)
	d.Race = shares(race.sorted(), n)
	d.Ethnicity = shares(eth.sorted(), n)
	d.Marital = shares(marital.sorted(), n)
	d.TopStates = shares(top(state.sorted(), 10), n)
	return d
}
