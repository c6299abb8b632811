package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"agmipx/internal/config"
	"agmipx/internal/dataset"
	"agmipx/internal/exporter"
	"agmipx/internal/operations"
	"agmipx/internal/query"
	"agmipx/internal/reshape"
	api "agmipx/pkg/contracts/api/v1"
)

// Export targets
const (
	TargetResults = "results"
	TargetPivot   = "pivot"
)

// ExplorerService owns the dataset and the explorer session
type ExplorerService struct {
	mu       sync.RWMutex
	ds       *dataset.Dataset
	session  *operations.Session
	loadedAt time.Time

	loader   *dataset.Loader
	manager  *operations.Manager
	exporter *exporter.Exporter
	display  config.DisplayConfig
	logger   *slog.Logger
}

// NewExplorerService creates a service with no dataset loaded
func NewExplorerService(loader *dataset.Loader, manager *operations.Manager, exp *exporter.Exporter, display config.DisplayConfig, logger *slog.Logger) *ExplorerService {
	if logger == nil {
		logger = slog.Default()
	}
	if loader == nil {
		loader = dataset.NewLoader(logger, false)
	}
	if manager == nil {
		manager = operations.NewManager(operations.NewPipelineRegistry(), logger)
	}

	return &ExplorerService{
		loader:   loader,
		manager:  manager,
		exporter: exp,
		display:  display,
		logger:   logger.With(slog.String("service", "explorer")),
	}
}

// Load reads the dataset at path and starts a fresh session over it
func (s *ExplorerService) Load(ctx context.Context, path string) error {
	ds, err := s.loader.Load(ctx, path)
	if err != nil {
		return err
	}
	return s.Attach(ds)
}

// Attach starts a fresh session over ds. It fails while a run is in flight.
func (s *ExplorerService) Attach(ds *dataset.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil && s.session.Busy() {
		return operations.ErrOperationRunning
	}
	engine := query.NewEngine(ds, s.logger)
	s.ds = ds
	s.session = operations.NewSession(engine, s.manager, s.logger)
	s.loadedAt = time.Now()

	s.logger.Info("dataset attached",
		slog.String("source", ds.Source()),
		slog.Int("records", ds.Len()))
	return nil
}

// Loaded reports whether a dataset is attached
func (s *ExplorerService) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds != nil
}

func (s *ExplorerService) current() (*dataset.Dataset, *operations.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ds == nil {
		return nil, nil, ErrDatasetNotLoaded
	}
	return s.ds, s.session, nil
}

// DatasetInfo describes the loaded dataset
func (s *ExplorerService) DatasetInfo() (*api.DatasetInfo, error) {
	ds, _, err := s.current()
	if err != nil {
		return nil, err
	}

	fields := make([]string, len(dataset.Fields))
	for i, f := range dataset.Fields {
		fields[i] = f.String()
	}

	s.mu.RLock()
	loadedAt := s.loadedAt
	s.mu.RUnlock()

	return &api.DatasetInfo{
		Source:   ds.Source(),
		Records:  ds.Len(),
		Fields:   fields,
		Models:   ds.Models(),
		Years:    ds.Years(),
		LoadedAt: loadedAt,
	}, nil
}

// Uniques lists the values of a categorical field, narrowed to the given
// models. Selecting models therefore cascades into the other choices.
func (s *ExplorerService) Uniques(req api.UniquesRequest) (*api.UniquesResponse, error) {
	ds, _, err := s.current()
	if err != nil {
		return nil, err
	}

	f, err := dataset.ParseField(req.Field)
	if err != nil || !f.IsCategorical() {
		return nil, &query.QueryError{Field: req.Field, Reason: "not a selectable field"}
	}

	values := ds.Uniques().Choices(f, req.Models)
	if values == nil {
		values = []string{}
	}
	return &api.UniquesResponse{
		Field:  f.String(),
		Models: req.Models,
		Values: values,
	}, nil
}

// Presets lists the canned pivot layouts in menu order
func (s *ExplorerService) Presets() []api.Preset {
	out := make([]api.Preset, len(operations.Presets))
	for i, p := range operations.Presets {
		out[i] = api.Preset{
			Name:        p.Name,
			Description: p.Description,
			Harmonize:   p.Harmonize,
		}
		if p.Name != operations.PresetCustom {
			out[i].Row = p.Row.String()
			out[i].Col = p.Col.String()
		}
	}
	return out
}

// Search filters the dataset and returns the match count with a preview
func (s *ExplorerService) Search(ctx context.Context, req api.SearchRequest) (*api.SearchResponse, error) {
	_, session, err := s.current()
	if err != nil {
		return nil, err
	}

	years, err := yearConstraint(req)
	if err != nil {
		return nil, session.Reject(ctx, err)
	}
	criteria, err := query.NewCriteria(req.Selections, years)
	if err != nil {
		return nil, session.Reject(ctx, err)
	}

	res, err := session.Search(ctx, criteria)
	if err != nil {
		return nil, err
	}
	return s.preview(res, req.Limit), nil
}

// RejectSearch returns the session to idle after a search request failed
// validation and hands back err, or ErrOperationRunning if an action is in flight
func (s *ExplorerService) RejectSearch(ctx context.Context, err error) error {
	_, session, cerr := s.current()
	if cerr != nil {
		return err
	}
	if rerr := session.Reject(ctx, err); errors.Is(rerr, operations.ErrOperationRunning) {
		return rerr
	}
	return err
}

func yearConstraint(req api.SearchRequest) (query.YearConstraint, error) {
	year := dataset.FieldYear.String()
	switch {
	case req.YearFrom != nil && len(req.Years) > 0:
		return query.AnyYear(), &query.QueryError{Field: year, Reason: "cannot combine a year range with explicit years"}
	case req.YearFrom != nil && req.YearTo != nil:
		return query.YearRange(*req.YearFrom, *req.YearTo), nil
	case req.YearFrom != nil || req.YearTo != nil:
		return query.AnyYear(), &query.QueryError{Field: year, Reason: "a year range needs both ends"}
	}
	return query.Years(req.Years...), nil
}

// Results previews the current search result. A limit of 0 uses the
// configured default; a negative limit returns every record.
func (s *ExplorerService) Results(limit int) (*api.SearchResponse, error) {
	_, session, err := s.current()
	if err != nil {
		return nil, err
	}
	res := session.Results()
	if res == nil {
		return nil, operations.ErrNoResults
	}
	return s.preview(res, limit), nil
}

func (s *ExplorerService) preview(res *query.ResultTable, limit int) *api.SearchResponse {
	if limit == 0 {
		limit = s.display.ResultLimit
	}
	head := res.Head(limit)

	records := make([]api.Record, len(head))
	for i, r := range head {
		records[i] = toRecord(r)
	}
	return &api.SearchResponse{
		Criteria: res.Criteria.String(),
		Total:    res.Len(),
		Shown:    len(records),
		Records:  records,
	}
}

// Pivot runs the reshape pipeline over the current search result
func (s *ExplorerService) Pivot(ctx context.Context, req api.PivotRequest) (*api.PivotResponse, error) {
	_, session, err := s.current()
	if err != nil {
		return nil, err
	}

	opts, err := PivotOptions(req)
	if err != nil {
		return nil, err
	}

	out, err := session.Run(ctx, opts)
	if err != nil {
		return nil, err
	}
	return toPivotResponse(out), nil
}

// Output returns the last successful pivot
func (s *ExplorerService) Output() (*api.PivotResponse, error) {
	_, session, err := s.current()
	if err != nil {
		return nil, err
	}
	out := session.Output()
	if out == nil {
		return nil, ErrNoOutput
	}
	return toPivotResponse(out), nil
}

// PivotOptions converts a request into reshape options, applying the preset
func PivotOptions(req api.PivotRequest) (reshape.Options, error) {
	var opts reshape.Options

	if req.Preset == "" || req.Preset == operations.PresetCustom {
		row, err := parseAxis("row", req.Row)
		if err != nil {
			return opts, err
		}
		col, err := parseAxis("col", req.Col)
		if err != nil {
			return opts, err
		}
		value := dataset.FieldValue
		if req.Value != "" {
			if value, err = parseAxis("value", req.Value); err != nil {
				return opts, err
			}
		}
		agg, err := reshape.ParseAggregation(req.Aggregation)
		if err != nil {
			return opts, err
		}
		opts.Pivot = reshape.PivotSpec{Row: row, Col: col, Value: value, Agg: agg}
	}

	fill, err := reshape.ParseFillMethod(req.Fill)
	if err != nil {
		return opts, err
	}
	opts.Fill = fill

	if req.Index != nil {
		opts.Index = &reshape.IndexOptions{
			Reference: req.Index.Reference,
			OnRow:     req.Index.Axis != "col",
		}
	}
	if req.Harmonize != nil {
		opts.Harmonize = &reshape.HarmonizeOptions{
			BaseRow: req.Harmonize.BaseRow,
			BaseCol: req.Harmonize.BaseCol,
		}
	}

	return operations.Preset(req.Preset, opts)
}

func parseAxis(name, value string) (dataset.Field, error) {
	f, err := dataset.ParseField(value)
	if err != nil {
		return f, &reshape.PivotConfigError{Field: name, Reason: err.Error()}
	}
	return f, nil
}

// Status reports the session's phase and what it holds
func (s *ExplorerService) Status() api.SessionStatus {
	_, session, err := s.current()
	if err != nil {
		return api.SessionStatus{Phase: string(operations.PhaseIdle)}
	}
	return api.SessionStatus{
		Phase:     string(session.Phase()),
		Busy:      session.Busy(),
		RunID:     session.RunID(),
		Results:   session.Results().Len(),
		HasOutput: session.Output() != nil,
	}
}

// Cancel stops the in-flight run, reporting whether there was one
func (s *ExplorerService) Cancel() bool {
	_, session, err := s.current()
	if err != nil {
		return false
	}
	return session.Cancel()
}

// Reset discards the search result and output
func (s *ExplorerService) Reset() error {
	_, session, err := s.current()
	if err != nil {
		return err
	}
	return session.Reset()
}

// Frame builds the export frame for target
func (s *ExplorerService) Frame(target string) (*exporter.Frame, error) {
	_, session, err := s.current()
	if err != nil {
		return nil, err
	}

	switch target {
	case TargetResults:
		res := session.Results()
		if res == nil {
			return nil, operations.ErrNoResults
		}
		return exporter.FromRecords(res.Records, "Records matching "+res.Criteria.String()), nil
	case TargetPivot:
		out := session.Output()
		if out == nil {
			return nil, ErrNoOutput
		}
		return exporter.FromTable(out.Table, out.Title), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
}

// Export writes target in format to w and returns the number of bytes written
func (s *ExplorerService) Export(ctx context.Context, w io.Writer, target string, format exporter.Format) (int64, error) {
	frame, err := s.Frame(target)
	if err != nil {
		return 0, err
	}
	return s.exporter.Write(ctx, w, frame, format)
}

// ExportFile saves target in format under path, or under the exports
// directory with the download name when path is empty
func (s *ExplorerService) ExportFile(ctx context.Context, target string, format exporter.Format, path string) (string, error) {
	frame, err := s.Frame(target)
	if err != nil {
		return "", err
	}
	if path == "" {
		return s.exporter.Save(ctx, frame, format)
	}
	return s.exporter.SaveAs(ctx, path, frame, format)
}

// FileName returns the download name for format
func (s *ExplorerService) FileName(format exporter.Format) string {
	return s.exporter.FileName(format)
}

func toRecord(r dataset.Record) api.Record {
	return api.Record{
		Model:     r.Model,
		Scenario:  r.Scenario,
		Year:      r.Year,
		Sector:    r.Sector,
		Region:    r.Region,
		Indicator: r.Indicator,
		Unit:      r.Unit,
		Value:     valuePtr(r.Value),
	}
}

func valuePtr(v dataset.Value) *float64 {
	f, ok := v.Get()
	if !ok {
		return nil
	}
	return &f
}

func toPivotResponse(out *operations.Output) *api.PivotResponse {
	t := out.Table
	data := make([][]*float64, t.NumRows())
	for i := range data {
		row := make([]*float64, t.NumCols())
		for j := range row {
			row[j] = valuePtr(t.At(i, j))
		}
		data[i] = row
	}

	steps := make([]api.StepSummary, len(out.Steps))
	for i, st := range out.Steps {
		steps[i] = api.StepSummary{
			ID:         st.ID,
			Name:       st.Name,
			Status:     string(st.Status),
			DurationMS: st.Duration.Milliseconds(),
			Message:    st.Message,
		}
	}

	return &api.PivotResponse{
		RunID:    out.RunID,
		Title:    out.Title,
		RowField: t.RowField().String(),
		ColField: t.ColField().String(),
		XNumeric: out.XNumeric,
		YNumeric: out.YNumeric,
		Rows:     t.Rows(),
		Cols:     t.Cols(),
		Data:     data,
		Steps:    steps,
	}
}
