package aggregate

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"hospitalstats/internal/features"
)

type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// PeriodAmount is a money total for a YYYY-MM period.
type PeriodAmount struct {
	Period string  `json:"period"`
	Amount float64 `json:"amount"`
}

// Temporal month and weekday percentages are shares of all encounters.
type Temporal struct {
	ByYear         []YearCount    `json:"by_year"`
	ByMonth        []Share        `json:"by_month"`
	ByDayOfWeek    []Share        `json:"by_day_of_week"`
	ByHour         []HourCount    `json:"by_hour"`
	PeakHours      []HourCount    `json:"peak_hours"`
	YearsCovered   int            `json:"years_covered"`
	BusiestMonth   string         `json:"busiest_month,omitempty"`
	BusiestDay     string         `json:"busiest_day,omitempty"`
	BusiestHour    *int           `json:"busiest_hour,omitempty"`
	MonthlyRevenue []PeriodAmount `json:"monthly_revenue"`
}

func SummarizeTemporal(encounters []features.Encounter) *Temporal {
	t := &Temporal{}

	years := map[int]int{}
	months, days := newCounter(), newCounter()
	hours := make([]int, 24)
	revenue := map[string]decimal.Decimal{}
	seenHour := false

	for _, e := range encounters {
		c := e.Calendar
		if c == nil {
			continue
		}
		years[c.Year]++
		months.add(c.MonthName)
		days.add(c.DayOfWeek)
		hours[c.Hour]++
		seenHour = true
		if e.TotalClaimCost != nil {
			period := fmt.Sprintf("%04d-%02d", c.Year, c.Month)
			revenue[period] = revenue[period].Add(decimal.NewFromFloat(*e.TotalClaimCost))
		}
	}

	for y, n := range years {
		t.ByYear = append(t.ByYear, YearCount{Year: y, Count: n})
	}
	sort.Slice(t.ByYear, func(i, j int) bool { return t.ByYear[i].Year < t.ByYear[j].Year })
	t.YearsCovered = len(t.ByYear)

	total := len(encounters)
	t.ByMonth = shares(months.inOrder(features.MonthNames), total)
	t.ByDayOfWeek = shares(days.inOrder(features.DayNames), total)
	t.BusiestMonth = firstLabel(months.sorted())
	t.BusiestDay = firstLabel(days.sorted())

	t.ByHour = make([]HourCount, 24)
	for h, n := range hours {
		t.ByHour[h] = HourCount{Hour: h, Count: n}
	}
	peak := append([]HourCount(nil), t.ByHour...)
	sort.SliceStable(peak, func(i, j int) bool { return peak[i].Count > peak[j].Count })
	for _, h := range peak {
		if h.Count == 0 || len(t.PeakHours) == 10 {
			break
		}
		t.PeakHours = append(t.PeakHours, h)
	}
	if seenHour {
		h := peak[0].Hour
		t.BusiestHour = &h
	}

	for p, amt := range revenue {
		t.MonthlyRevenue = append(t.MonthlyRevenue, PeriodAmount{Period: p, Amount: cents(amt)})
	}
	sort.Slice(t.MonthlyRevenue, func(i, j int) bool { return t.MonthlyRevenue[i].Period < t.MonthlyRevenue[j].Period })
	return t
}
