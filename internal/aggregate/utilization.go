package aggregate

import (
	"sort"

	"hospitalstats/internal/features"
)

// Visit buckets are right-closed on the per-patient encounter count.
var (
	VisitBuckets     = []string{"1 visit", "2-5 visits", "6-10 visits", "11-20 visits", "21-50 visits", "51-100 visits", "100+ visits"}
	visitBucketEdges = []int{0, 1, 5, 10, 20, 50, 100, 1000}
)

type YearTrend struct {
	Year             int     `json:"year"`
	Encounters       int     `json:"encounters"`
	AvgDurationHours float64 `json:"avg_duration_hours"`
	AvgCost          float64 `json:"avg_cost"`
}

type ClassDuration struct {
	Class       string  `json:"class"`
	Count       int     `json:"count"`
	AvgHours    float64 `json:"avg_hours"`
	MedianHours float64 `json:"median_hours"`
	AvgDays     float64 `json:"avg_days"`
}

type ClassVisitCost struct {
	Class          string  `json:"class"`
	Count          int     `json:"count"`
	AvgCost        float64 `json:"avg_cost"`
	MedianCost     float64 `json:"median_cost"`
	TotalCost      float64 `json:"total_cost"`
	PercentOfTotal float64 `json:"percent_of_total"`
}

// Utilization covers admissions, length of stay and cost per visit. Visit
// bucket percentages and the readmission rate divide by patients with at
// least one encounter.
type Utilization struct {
	PatientsWithEncounters  int              `json:"patients_with_encounters"`
	ReadmittedPatients      int              `json:"readmitted_patients"`
	ReadmissionRate         float64          `json:"readmission_rate"`
	AvgEncountersPerPatient float64          `json:"avg_encounters_per_patient"`
	MaxEncounters           int              `json:"max_encounters"`
	VisitBuckets            []Share          `json:"visit_buckets"`
	Yearly                  []YearTrend      `json:"yearly"`
	AvgLengthOfStayHours    float64          `json:"avg_length_of_stay_hours"`
	MedianLengthOfStayHours float64          `json:"median_length_of_stay_hours"`
	LengthOfStay            []ClassDuration  `json:"length_of_stay"`
	AvgCostPerVisit         float64          `json:"avg_cost_per_visit"`
	MedianCostPerVisit      float64          `json:"median_cost_per_visit"`
	CostPerVisit            []ClassVisitCost `json:"cost_per_visit"`
}

func SummarizeUtilization(encounters []features.Encounter) *Utilization {
	u := &Utilization{}

	buckets := newCounter()
	var visits []float64
	for _, ps := range PatientLevel(encounters) {
		visits = append(visits, float64(ps.EncounterCount))
		if ps.EncounterCount > 1 {
			u.ReadmittedPatients++
		}
		if ps.EncounterCount > u.MaxEncounters {
			u.MaxEncounters = ps.EncounterCount
		}
		if b, ok := VisitBucketOf(ps.EncounterCount); ok {
			buckets.add(b)
		}
	}
	u.PatientsWithEncounters = len(visits)
	u.ReadmissionRate = percent(u.ReadmittedPatients, u.PatientsWithEncounters)
	u.AvgEncountersPerPatient = round2(Mean(visits))
	u.VisitBuckets = shares(buckets.inOrder(VisitBuckets), u.PatientsWithEncounters)

	type yearAcc struct {
		count           int
		durations, cost []float64
	}
	years := map[int]*yearAcc{}
	classOrder := newCounter()
	classDur := map[string][]float64{}
	classCost := map[string][]float64{}
	var durations, costs []float64

	for _, e := range encounters {
		if c := e.Calendar; c != nil {
			y := years[c.Year]
			if y == nil {
				y = &yearAcc{}
				years[c.Year] = y
			}
			y.count++
			y.durations = append(y.durations, present(e.DurationHours)...)
			y.cost = append(y.cost, present(e.TotalClaimCost)...)
		}
		durations = append(durations, present(e.DurationHours)...)
		costs = append(costs, present(e.TotalClaimCost)...)
		if e.Class != "" {
			classOrder.add(e.Class)
			classDur[e.Class] = append(classDur[e.Class], present(e.DurationHours)...)
			classCost[e.Class] = append(classCost[e.Class], present(e.TotalClaimCost)...)
		}
	}

	for year, y := range years {
		u.Yearly = append(u.Yearly, YearTrend{
			Year:             year,
			Encounters:       y.count,
			AvgDurationHours: round2(Mean(y.durations)),
			AvgCost:          cents(moneyMean(y.cost)),
		})
	}
	sort.Slice(u.Yearly, func(i, j int) bool { return u.Yearly[i].Year < u.Yearly[j].Year })

	if len(durations) > 0 {
		u.AvgLengthOfStayHours = round2(Mean(durations))
		u.MedianLengthOfStayHours = round2(Median(durations))
	}
	if len(costs) > 0 {
		u.AvgCostPerVisit = cents(moneyMean(costs))
		u.MedianCostPerVisit = round2(Median(costs))
	}
	grand := MoneySum(costs)

	for _, class := range classOrder.order {
		d := classDur[class]
		cd := ClassDuration{Class: class, Count: len(d)}
		if len(d) > 0 {
			avg := Mean(d)
			cd.AvgHours = round2(avg)
			cd.MedianHours = round2(Median(d))
			cd.AvgDays = round2(avg / 24)
		}
		u.LengthOfStay = append(u.LengthOfStay, cd)

		c := classCost[class]
		total := MoneySum(c)
		vc := ClassVisitCost{Class: class, Count: len(c), TotalCost: cents(total)}
		if len(c) > 0 {
			vc.AvgCost = cents(moneyMean(c))
			vc.MedianCost = round2(Median(c))
		}
		if !grand.IsZero() {
			vc.PercentOfTotal = round2(total.Div(grand).InexactFloat64() * 100)
		}
		u.CostPerVisit = append(u.CostPerVisit, vc)
	}
	sort.SliceStable(u.LengthOfStay, func(i, j int) bool { return u.LengthOfStay[i].AvgHours > u.LengthOfStay[j].AvgHours })
	sort.SliceStable(u.CostPerVisit, func(i, j int) bool { return u.CostPerVisit[i].AvgCost > u.CostPerVisit[j].AvgCost })
	return u
}

// VisitBucketOf places a per-patient encounter count in its visit bucket.
// Counts outside (0, 1000] have none.
func VisitBucketOf(visits int) (string, bool) {
	if visits <= visitBucketEdges[0] || visits > visitBucketEdges[len(visitBucketEdges)-1] {
		return "", false
	}
	for i := 1; i < len(visitBucketEdges); i++ {
		if visits <= visitBucketEdges[i] {
			return VisitBuckets[i-1], true
		}
	}
	return "", false
}
