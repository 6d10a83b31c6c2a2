package dashboard

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"hospitalstats/internal/insights"
	"hospitalstats/internal/records"
)

func f64Ptr(f float64) *float64 { return &f }

func testRun(t *testing.T) (*insights.Input, *insights.Document) {
	t.Helper()
	birth := time.Date(1990, 1, 15, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	stop := start.Add(4 * time.Hour)
	ds := &records.Dataset{
		Patients: []records.Patient{
			{ID: "p1", BirthDate: &birth, Gender: "F", Race: "white"},
			{ID: "p2", BirthDate: &birth, Gender: "M", Race: "black"},
		},
		Encounters: []records.Encounter{
			{ID: "e1", PatientID: "p1", Class: "inpatient", Description: "Hospital admission",
				Start: &start, Stop: &stop, TotalClaimCost: f64Ptr(5000), PayerCoverage: f64Ptr(4000)},
			{ID: "e2", PatientID: "p2", Class: "wellness", Description: "Check up",
				Start: &start, Stop: &stop, TotalClaimCost: f64Ptr(150), PayerCoverage: f64Ptr(150)},
		},
		Procedures: []records.Procedure{{EncounterID: "e1", Description: "Venipuncture", BaseCost: f64Ptr(80)}},
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	in := insights.Enrich(ds, now)
	doc, err := insights.Build(context.Background(), in, insights.NewRunInfo(ds, now), insights.Options{Concurrency: 2})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return in, doc
}

func TestPages(t *testing.T) {
	in, doc := testRun(t)
	pages := Pages(in, doc)
	if len(pages) != 9 {
		t.Fatalf("got %d pages, want 9", len(pages))
	}
	seen := map[string]bool{}
	for _, p := range pages {
		if seen[p.File] {
			t.Errorf("duplicate file %s", p.File)
		}
		seen[p.File] = true
		if len(p.Charts) == 0 {
			t.Errorf("%s has no charts", p.File)
		}
		if len(p.Notes) != 0 {
			t.Errorf("%s notes = %v", p.File, p.Notes)
		}
	}
	if !seen["insurance_coverage_dashboard.html"] || !seen["length_of_stay_dashboard.html"] {
		t.Errorf("missing pages: %v", seen)
	}
}

func TestPagesWithFailedSection(t *testing.T) {
	in, doc := testRun(t)
	doc.Financial = nil
	doc.Errors = map[string]string{insights.SectionFinancial: "boom"}

	for _, p := range Pages(in, doc) {
		if p.File != "financial_dashboard.html" {
			continue
		}
		if len(p.Charts) != 0 || len(p.Notes) != 1 || p.Notes[0] != "financial: boom" {
			t.Errorf("financial page = %+v", p)
		}
		var buf bytes.Buffer
		if err := Render(&buf, p, doc.Run.RunID.String(), doc.Run.GeneratedAt); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "financial: boom") {
			t.Error("rendered page should list the failed section")
		}
		return
	}
	t.Fatal("financial page not found")
}

func TestConsolidated(t *testing.T) {
	in, doc := testRun(t)
	p := Consolidated(in, doc)
	if p.File != ConsolidatedFile {
		t.Errorf("file = %s", p.File)
	}
	if len(p.Charts) != 6 {
		t.Errorf("got %d charts, want 6", len(p.Charts))
	}

	var buf bytes.Buffer
	if err := Render(&buf, p, doc.Run.RunID.String(), doc.Run.GeneratedAt); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	if n := strings.Count(out, "echarts.init("); n != 6 {
		t.Errorf("chart count = %d, want 6", n)
	}
	for _, want := range []string{"Hospital Analytics Dashboard", "Monthly Revenue Trend", "$5,150.00", doc.Run.RunID.String()} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestWritePages(t *testing.T) {
	in, doc := testRun(t)
	dir := t.TempDir()
	paths, err := WritePages(dir, Pages(in, doc), doc.Run.RunID.String(), doc.Run.GeneratedAt)
	if err != nil {
		t.Fatalf("WritePages: %v", err)
	}
	if len(paths) != 9 {
		t.Fatalf("wrote %d files", len(paths))
	}
	data, err := os.ReadFile(filepath.Join(dir, "temporal_dashboard.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Daily Pattern (Hourly Distribution)") {
		t.Error("temporal page missing hourly chart")
	}
}

func TestSeriesOrder(t *testing.T) {
	points := []Point{{"a", 10}, {"b", 5.256}, {"c", 0}}

	labels, values := Chart{Kind: Bar, Points: points}.series()
	if !slices.Equal(labels, []string{"a", "b", "c"}) || !slices.Equal(values, []float64{10, 5.26, 0}) {
		t.Errorf("bar series = %v %v", labels, values)
	}

	labels, values = Chart{Kind: HBar, Points: points}.series()
	if !slices.Equal(labels, []string{"c", "b", "a"}) || values[2] != 10 {
		t.Errorf("hbar should list the first point last (drawn on top): %v %v", labels, values)
	}

	labels, _ = Chart{Kind: Pie, Points: points}.series()
	if !slices.Equal(labels, []string{"a", "b"}) {
		t.Errorf("pie should drop empty slices: %v", labels)
	}

	long := strings.Repeat("x", 40)
	labels, _ = Chart{Kind: Bar, Points: []Point{{long, 1}}}.series()
	if n := len([]rune(labels[0])); n != labelRunes {
		t.Errorf("label length = %d, want %d", n, labelRunes)
	}
}

func TestRenderChartKinds(t *testing.T) {
	p := Page{File: "kinds.html", Title: "Kinds", Charts: []Chart{
		{Title: "Visits by Year", Kind: Line, Points: []Point{{"2022", 1}, {"2023", 4}}},
		{Title: "Payer Mix", Kind: Pie, Points: []Point{{"Medicaid", 3}, {"Zeroed Payer", 0}}},
		{Title: "Top Procedures", Kind: HBar, Points: []Point{{"Venipuncture", 8}}},
		{Title: "Nothing Here", Kind: Bar},
	}}
	var buf bytes.Buffer
	if err := Render(&buf, p, "run-1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	if n := strings.Count(out, "echarts.init("); n != 4 {
		t.Errorf("chart count = %d, want 4", n)
	}
	for _, want := range []string{`"type":"line"`, `"type":"pie"`, `"type":"bar"`, "Medicaid", "Venipuncture", "No data", "<title>Kinds</title>"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "Zeroed Payer") {
		t.Error("zero pie slice should not be rendered")
	}
	if strings.Index(out, "<h1>Kinds</h1>") < strings.Index(out, "<body") {
		t.Error("summary header should be inside the body")
	}
}

func TestInsertAfterBody(t *testing.T) {
	got := string(insertAfterBody([]byte(`<html><body class="x"><p>chart</p></body></html>`), []byte("<h1>H</h1>")))
	if got != `<html><body class="x"><h1>H</h1><p>chart</p></body></html>` {
		t.Errorf("got %s", got)
	}
	if got := string(insertAfterBody([]byte("<p>chart</p>"), []byte("<h1>H</h1>"))); got != "<h1>H</h1><p>chart</p>" {
		t.Errorf("without body: %s", got)
	}
}
