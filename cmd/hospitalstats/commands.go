package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"hospitalstats/internal/dashboard"
	"hospitalstats/internal/insights"
	"hospitalstats/internal/logging"
	"hospitalstats/internal/parquetio"
	"hospitalstats/internal/pdfgen"
	"hospitalstats/internal/pgload"
	"hospitalstats/internal/records"
	"hospitalstats/internal/synth"
)

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Compute insights, print the console report and write the insights JSON",
		RunE:  runAnalyze,
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	return run(cmd, func(ctx context.Context, e *env) error {
		_, doc, err := analyze(ctx, e)
		if err != nil {
			return err
		}
		return insights.WriteConsole(e.cmd.OutOrStdout(), doc)
	})
}

func dashboardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboards",
		Short: "Write one HTML dashboard per analysis area",
		RunE: runE(func(ctx context.Context, e *env) error {
			in, doc, err := analyze(ctx, e)
			if err != nil {
				return err
			}
			paths, err := dashboard.WritePages(e.cfg.OutputDir, dashboard.Pages(in, doc), doc.Run.RunID.String(), doc.Run.GeneratedAt)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(e.cmd.OutOrStdout(), p)
			}
			return nil
		}),
	}
}

func consolidatedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consolidated",
		Short: "Write the single-page consolidated dashboard",
		RunE: runE(func(ctx context.Context, e *env) error {
			in, doc, err := analyze(ctx, e)
			if err != nil {
				return err
			}
			paths, err := dashboard.WritePages(e.cfg.OutputDir, []dashboard.Page{dashboard.Consolidated(in, doc)},
				doc.Run.RunID.String(), doc.Run.GeneratedAt)
			if err != nil {
				return err
			}
			fmt.Fprintln(e.cmd.OutOrStdout(), paths[0])
			return nil
		}),
	}
}

func reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Write the Markdown report",
		RunE: runE(func(ctx context.Context, e *env) error {
			_, doc, err := analyze(ctx, e)
			if err != nil {
				return err
			}
			path := e.cfg.OutputPath(e.cfg.MarkdownReport)
			if err := writeMarkdown(path, doc); err != nil {
				return err
			}
			fmt.Fprintln(e.cmd.OutOrStdout(), path)
			return nil
		}),
	}
}

func pdfCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pdf",
		Short: "Convert the Markdown report to PDF, or to printable HTML without pandoc",
		Long: `pdf converts MARKDOWN_REPORT (written by "report") to PDF_OUTPUT with
pandoc and PDF_ENGINE. When pandoc is missing or fails, a print-ready HTML
file is written next to PDF_OUTPUT instead.`,
		RunE: runE(func(ctx context.Context, e *env) error {
			md := e.cfg.OutputPath(e.cfg.MarkdownReport)
			if _, err := os.Stat(md); errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%s not found; run \"hospitalstats report\" first", md)
			}
			res, err := pdfgen.Convert(ctx, md, e.cfg.OutputPath(e.cfg.PDFOutput), pdfgen.Options{
				Pandoc: e.cfg.PandocPath,
				Engine: e.cfg.PDFEngine,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(e.cmd.OutOrStdout(), res.Path)
			return nil
		}),
	}
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the insights JSON and the enriched tables as Parquet",
		RunE: runE(func(ctx context.Context, e *env) error {
			in, doc, err := analyze(ctx, e)
			if err != nil {
				return err
			}
			runID := doc.Run.RunID

			patients := e.cfg.OutputPath(parquetio.PatientsFile)
			n, err := parquetio.WriteAll(patients, parquetio.PatientRows(runID, in.Patients), e.cfg.ParquetBatchSize)
			if err != nil {
				return err
			}
			log.Info().Str("file", patients).Int("rows", n).Msg("Patients exported")

			encounters := e.cfg.OutputPath(parquetio.EncountersFile)
			n, err = parquetio.WriteAll(encounters, parquetio.EncounterRows(runID, in.Encounters), e.cfg.ParquetBatchSize)
			if err != nil {
				return err
			}
			log.Info().Str("file", encounters).Int("rows", n).Msg("Encounters exported")

			fmt.Fprintln(e.cmd.OutOrStdout(), patients)
			fmt.Fprintln(e.cmd.OutOrStdout(), encounters)
			return nil
		}),
	}
}

func loadPGCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load-pg",
		Short: "Load the exported run into PostgreSQL (DATABASE_URL)",
		Long: `load-pg reads INSIGHTS_FILE and the Parquet files written by "export" from
OUTPUT_DIR and stores them in PostgreSQL. Loading the same run twice replaces
the earlier copy.`,
		RunE: runE(func(ctx context.Context, e *env) error {
			if e.cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for load-pg")
			}
			doc, err := insights.ReadJSON(e.cfg.OutputPath(e.cfg.InsightsFile))
			if err != nil {
				return err
			}
			logging.WithRun(doc.Run.RunID.String())

			pool, err := pgload.Connect(ctx, e.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := pgload.EnsureSchema(ctx, pool); err != nil {
				return err
			}

			res, err := pgload.NewLoader(pool, e.cfg.PGBatchSize).Load(ctx, doc, e.cfg.OutputDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.cmd.OutOrStdout(), "run %s: %d patients, %d encounters loaded in %s\n",
				res.RunID, res.Patients, res.Encounters, res.Elapsed.Round(time.Millisecond))
			return nil
		}),
	}
}

func synthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "synth",
		Short: "Generate a synthetic dataset into DATA_DIR",
		RunE: runE(func(ctx context.Context, e *env) error {
			end, err := e.cfg.Reference(time.Now())
			if err != nil {
				return err
			}
			sum, err := synth.Generate(e.cfg.DataDir, synth.Options{
				Seed:     e.cfg.SynthSeed,
				Patients: e.cfg.SynthPatients,
				End:      end,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(e.cmd.OutOrStdout(), "%s: %d patients, %d encounters, %d procedures, %d organizations, %d payers\n",
				e.cfg.DataDir, sum.Patients, sum.Encounters, sum.Procedures, sum.Organizations, sum.Payers)
			return nil
		}),
	}
}

// analyze loads the dataset, builds every section and writes the insights
// JSON. Section failures are logged and kept in the document.
func analyze(ctx context.Context, e *env) (*insights.Input, *insights.Document, error) {
	now, err := e.cfg.Reference(time.Now())
	if err != nil {
		return nil, nil, err
	}
	ds, err := records.LoadDataset(e.cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load dataset: %w", err)
	}
	e.metrics.RecordLoad(ds.Stats)

	in := insights.Enrich(ds, now)
	info := insights.NewRunInfo(ds, now)
	logging.WithRun(info.RunID.String())

	doc, err := insights.Build(ctx, in, info, insights.Options{
		Concurrency: e.cfg.SectionConcurrency,
		Observer:    e.metrics,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(doc.Errors) > 0 {
		failed := make([]string, 0, len(doc.Errors))
		for name := range doc.Errors {
			failed = append(failed, name)
		}
		sort.Strings(failed)
		log.Warn().Strs("sections", failed).Msg("Insights are incomplete")
	}

	path := e.cfg.OutputPath(e.cfg.InsightsFile)
	if err := insights.WriteJSON(path, doc); err != nil {
		return nil, nil, err
	}
	log.Info().Str("file", path).Msg("Insights written")
	return in, doc, nil
}

func writeMarkdown(path string, doc *insights.Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := insights.WriteMarkdown(f, doc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	log.Info().Str("file", path).Msg("Markdown report written")
	return nil
}
