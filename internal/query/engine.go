package query

import (
	"context"
	"log/slog"
	"time"

	"agmipx/internal/dataset"
)

// ResultTable is the flat subset of records matching a search, in dataset order.
// It is read-only; a new search replaces it wholesale.
type ResultTable struct {
	Criteria Criteria
	Records  []dataset.Record
}

// Len returns the number of matching records
func (t *ResultTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Head returns at most n records; n <= 0 returns all of them
func (t *ResultTable) Head(n int) []dataset.Record {
	if t == nil {
		return nil
	}
	if n <= 0 || n >= len(t.Records) {
		return t.Records
	}
	return t.Records[:n:n]
}

// Engine evaluates criteria against a dataset
type Engine struct {
	ds     *dataset.Dataset
	logger *slog.Logger
}

// NewEngine creates a query engine over ds
func NewEngine(ds *dataset.Dataset, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		ds:     ds,
		logger: logger.With(slog.String("component", "query_engine")),
	}
}

// Dataset returns the dataset the engine searches
func (e *Engine) Dataset() *dataset.Dataset { return e.ds }

// Search returns the records matching c. Unconstrained criteria return the whole
// dataset without evaluating any row.
func (e *Engine) Search(ctx context.Context, c Criteria) (*ResultTable, error) {
	if err := c.Years.validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	if c.IsUnconstrained() {
		e.logger.DebugContext(ctx, "search matched all records",
			slog.Int("records", e.ds.Len()))
		return &ResultTable{Criteria: c, Records: e.ds.Records()}, nil
	}

	var matched []dataset.Record
	for _, r := range e.ds.Records() {
		if c.Match(r) {
			matched = append(matched, r)
		}
	}

	e.logger.DebugContext(ctx, "search completed",
		slog.String("criteria", c.String()),
		slog.Int("matched", len(matched)),
		slog.Int("scanned", e.ds.Len()),
		slog.Duration("duration", time.Since(start)))

	return &ResultTable{Criteria: c, Records: matched}, nil
}
