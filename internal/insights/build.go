package insights

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"hospitalstats/internal/aggregate"
)

// ErrAllSectionsFailed is returned by Build when no section produced output.
var ErrAllSectionsFailed = errors.New("every insights section failed")

// Observer is notified once per section.
type Observer interface {
	ObserveSection(name string, elapsed time.Duration, err error)
}

type Options struct {
	// Concurrency bounds parallel sections; values below 1 mean one.
	Concurrency int
	Observer    Observer
}

type section struct {
	name string
	run  func(in *Input, doc *Document) error
}

// Sections lists section names in document order.
func Sections() []string {
	names := make([]string, len(sections))
	for i, s := range sections {
		names[i] = s.name
	}
	return names
}

var sections = []section{
	{SectionDemographics, func(in *Input, doc *Document) error {
		doc.Demographics = aggregate.SummarizeDemographics(in.Patients)
		return nil
	}},
	{SectionFinancial, func(in *Input, doc *Document) error {
		doc.Financial = aggregate.SummarizeFinancial(in.Encounters, in.PayerNames)
		return nil
	}},
	{SectionClinical, func(in *Input, doc *Document) error {
		doc.Clinical = aggregate.SummarizeClinical(in.Encounters, in.Procedures)
		return nil
	}},
	{SectionTemporal, func(in *Input, doc *Document) error {
		doc.Temporal = aggregate.SummarizeTemporal(in.Encounters)
		return nil
	}},
	{SectionRisk, func(in *Input, doc *Document) error {
		doc.Risk = aggregate.SummarizeRisk(in.Encounters, len(in.Patients))
		return nil
	}},
	{SectionUtilization, func(in *Input, doc *Document) error {
		doc.Utilization = aggregate.SummarizeUtilization(in.Encounters)
		return nil
	}},
	{SectionProcedureCoverage, func(in *Input, doc *Document) error {
		doc.ProcedureCoverage = aggregate.SummarizeProcedureCoverage(in.Procedures, in.Encounters)
		return nil
	}},
}

// Build computes every section concurrently. Each section writes only its
// own document field. A section that errors or panics is recorded in
// doc.Errors and the rest continue.
func Build(ctx context.Context, in *Input, run RunInfo, opts Options) (*Document, error) {
	return build(ctx, in, run, opts, sections)
}

func build(ctx context.Context, in *Input, run RunInfo, opts Options, secs []section) (*Document, error) {
	doc := &Document{Run: run}

	var (
		mu     sync.Mutex
		failed = map[string]string{}
	)
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for _, s := range secs {
		g.Go(func() error {
			start := time.Now()
			err := runSection(ctx, s, in, doc)
			elapsed := time.Since(start)

			if opts.Observer != nil {
				opts.Observer.ObserveSection(s.name, elapsed, err)
			}
			if err != nil {
				log.Error().Err(err).Str("section", s.name).Msg("Section failed")
				mu.Lock()
				failed[s.name] = err.Error()
				mu.Unlock()
				return nil
			}
			log.Debug().Str("section", s.name).Dur("elapsed", elapsed).Msg("Section done")
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		doc.Errors = failed
	}
	if len(secs) > 0 && len(failed) == len(secs) {
		return doc, ErrAllSectionsFailed
	}
	return doc, nil
}

func runSection(ctx context.Context, s section, in *Input, doc *Document) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", s.name, r)
		}
	}()
	return s.run(in, doc)
}
