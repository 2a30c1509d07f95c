// Package reports runs the stored dashboard report templates against the
// engine.
package reports

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jrsteele09/dashboard-gateway/engine"
	gwerrors "github.com/jrsteele09/dashboard-gateway/internal/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

var ErrEmptyResult = gwerrors.ErrTemplateExecutionEmpty

// Engine executes SQL on behalf of the executor.
type Engine interface {
	Execute(ctx context.Context, sql string, opts engine.QueryOptions) (*engine.QueryResult, error)
}

// EmptyResultError reports a query that produced no rows, with the context
// needed to diagnose it.
type EmptyResultError struct {
	Message string
	Details map[string]any
}

func (e *EmptyResultError) Error() string {
	return e.Message
}

func (e *EmptyResultError) Unwrap() error {
	return ErrEmptyResult
}

// WidgetValue is the first row of one widget report.
type WidgetValue struct {
	ReportID     int `json:"ReportID"`
	ReportValue1 any `json:"reportValue1"`
	ReportValue2 any `json:"reportValue2"`
	ReportValue3 any `json:"reportValue3"`
	ReportValue4 any `json:"reportValue4"`
	ReportValue5 any `json:"reportValue5"`
	ReportValue6 any `json:"reportValue6"`
}

// BranchSummary is one row of the per-branch report.
type BranchSummary struct {
	BranchID     int     `json:"BranchID"`
	ReportValue1 string  `json:"reportValue1"` // branch name
	ReportValue2 float64 `json:"reportValue2"`
	ReportValue3 float64 `json:"reportValue3"`
	ReportValue4 float64 `json:"reportValue4"`
	ReportValue5 float64 `json:"reportValue5"`
	ReportValue6 float64 `json:"reportValue6"`
	ReportValue7 float64 `json:"reportValue7"`
	ReportValue8 float64 `json:"reportValue8"`
	ReportValue9 float64 `json:"reportValue9"`
}

type reportTemplate struct {
	ReportID     int
	ReportQuery  string
	ReportQuery2 string
}

func (t reportTemplate) sql() string {
	if strings.TrimSpace(t.ReportQuery) != "" {
		return t.ReportQuery
	}
	return t.ReportQuery2
}

type Executor struct {
	engine         Engine
	queries        *Queries
	branchReportID string
	concurrency    int
}

type ExecutorOption func(*Executor)

func WithBranchReportID(id string) ExecutorOption {
	return func(e *Executor) {
		e.branchReportID = id
	}
}

// WithConcurrency bounds how many report templates run at once.
func WithConcurrency(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func NewExecutor(eng Engine, queries *Queries, opts ...ExecutorOption) *Executor {
	e := &Executor{
		engine:         eng,
		queries:        queries,
		branchReportID: "522",
		concurrency:    defaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Queries() *Queries {
	return e.queries
}

// BranchReportID is the report that backs the branch summary rather than a
// widget.
func (e *Executor) BranchReportID() string {
	return e.branchReportID
}

// Run executes the templates of reportIDs concurrently. Reports that fail or
// return no rows are left out; ErrEmptyResult is returned when none remain.
func (e *Executor) Run(ctx context.Context, reportIDs []int, p Params, opts engine.QueryOptions) ([]WidgetValue, error) {
	if len(reportIDs) == 0 {
		return nil, gwerrors.Wrapf(gwerrors.ErrInvalidRequest, "reportId is required")
	}
	templates, err := e.templates(ctx, joinIDs(reportIDs), opts)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, &EmptyResultError{Message: "No data returned from query"}
	}

	values := make([]*WidgetValue, len(templates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, tmpl := range templates {
		if tmpl.sql() == "" {
			continue
		}
		g.Go(func() error {
			result, err := e.execute(gctx, Render(tmpl.sql(), p), opts)
			if err != nil {
				log.Warn().Err(err).Int("report_id", tmpl.ReportID).Msg("Report query failed, dropping report")
				return nil
			}
			if result.Empty() {
				return nil
			}
			values[i] = widgetValue(tmpl.ReportID, result.Data[0])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]WidgetValue, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, *v)
		}
	}
	if len(out) == 0 {
		return nil, &EmptyResultError{Message: "No valid results found"}
	}
	return out, nil
}

// RunBranches executes the branch report and returns one summary per row.
func (e *Executor) RunBranches(ctx context.Context, p Params, opts engine.QueryOptions) ([]BranchSummary, error) {
	templates, err := e.templates(ctx, e.branchReportID, opts)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 || templates[0].sql() == "" {
		return nil, &EmptyResultError{
			Message: "No data returned from query",
			Details: map[string]any{
				"sql":      e.queries.WidgetTemplates,
				"reportId": e.branchReportID,
			},
		}
	}

	sql := Render(templates[0].sql(), p)
	result, err := e.execute(ctx, sql, opts)
	if err != nil {
		return nil, err
	}
	if result.Empty() {
		return nil, &EmptyResultError{
			Message: "No branch data found",
			Details: map[string]any{
				"sql":    sql,
				"params": p.templateParams(),
			},
		}
	}

	summaries := make([]BranchSummary, 0, len(result.Data))
	for _, row := range result.Data {
		summaries = append(summaries, branchSummary(row))
	}
	return summaries, nil
}

// Query runs a stored query and returns its rows as is.
func (e *Executor) Query(ctx context.Context, sql string, templateParams map[string]any, opts engine.QueryOptions) ([]engine.Row, error) {
	opts.TemplateParams = templateParams
	result, err := e.engine.Execute(ctx, sql, opts)
	if err != nil {
		return nil, err
	}
	if result.Data == nil {
		return []engine.Row{}, nil
	}
	return result.Data, nil
}

func (e *Executor) templates(ctx context.Context, reportIDs string, opts engine.QueryOptions) ([]reportTemplate, error) {
	rows, err := e.Query(ctx, e.queries.WidgetTemplates, map[string]any{"reportId": reportIDs}, opts)
	if err != nil {
		return nil, err
	}
	templates := make([]reportTemplate, 0, len(rows))
	for _, row := range rows {
		templates = append(templates, reportTemplate{
			ReportID:     cast.ToInt(row["ReportID"]),
			ReportQuery:  cast.ToString(row["ReportQuery"]),
			ReportQuery2: cast.ToString(row["ReportQuery2"]),
		})
	}
	return templates, nil
}

func (e *Executor) execute(ctx context.Context, sql string, opts engine.QueryOptions) (*engine.QueryResult, error) {
	opts.TemplateParams = nil
	result, err := e.engine.Execute(ctx, sql, opts)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("engine returned no result for %q", sql)
	}
	return result, nil
}

func widgetValue(reportID int, row engine.Row) *WidgetValue {
	return &WidgetValue{
		ReportID:     reportID,
		ReportValue1: row["reportValue1"],
		ReportValue2: row["reportValue2"],
		ReportValue3: row["reportValue3"],
		ReportValue4: row["reportValue4"],
		ReportValue5: row["reportValue5"],
		ReportValue6: row["reportValue6"],
	}
}

func branchSummary(row engine.Row) BranchSummary {
	return BranchSummary{
		BranchID:     cast.ToInt(numeric(row["BranchID"])),
		ReportValue1: cast.ToString(row["reportValue1"]),
		ReportValue2: cast.ToFloat64(numeric(row["reportValue2"])),
		ReportValue3: cast.ToFloat64(numeric(row["reportValue3"])),
		ReportValue4: cast.ToFloat64(numeric(row["reportValue4"])),
		ReportValue5: cast.ToFloat64(numeric(row["reportValue5"])),
		ReportValue6: cast.ToFloat64(numeric(row["reportValue6"])),
		ReportValue7: cast.ToFloat64(numeric(row["reportValue7"])),
		ReportValue8: cast.ToFloat64(numeric(row["reportValue8"])),
		ReportValue9: cast.ToFloat64(numeric(row["reportValue9"])),
	}
}

// numeric trims string values so that " 12.5" still coerces; cast returns
// zero for anything it cannot read.
func numeric(v any) any {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return 0
		}
		return s
	}
	return v
}
