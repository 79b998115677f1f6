package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"fareboard/internal/core"
	"fareboard/internal/log"
	"fareboard/internal/report"
)

// ReportService is the part of report.Service the handlers use.
type ReportService interface {
	AggregateRevenue(ctx context.Context, owner core.OwnerID, start, end core.Date, g core.Granularity) ([]core.PeriodRevenue, error)
	ComputeMetrics(ctx context.Context, owner core.OwnerID, start, end core.Date) (core.Metrics, error)
	ComputePeriodPerformance(ctx context.Context, owner core.OwnerID, start, end core.Date, g core.Granularity) (core.PeriodPerformance, bool, error)
	ExpenseBreakdown(ctx context.Context, owner core.OwnerID, start, end core.Date) ([]core.ExpenseTypeAmount, error)
	BuildSummary(ctx context.Context, owner core.OwnerID, start, end core.Date, g core.Granularity) (report.Summary, error)
}

type performanceResult struct {
	perf core.PeriodPerformance
	ok   bool
}

// reportHandler resolves owner and query, then serves a cached JSON body
// produced by compute.
func (s *Server) reportHandler(kind string, compute func(ctx context.Context, owner core.OwnerID, q reportQuery) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, q, err := s.reportRequest(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		// The result is shared with concurrent callers of the same key, so
		// it must not die with the first caller's connection.
		ctx := context.WithoutCancel(r.Context())
		v, err := s.reports.Get(owner, q.key(kind), func() (any, error) {
			return compute(ctx, owner, q)
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		if res, ok := v.(performanceResult); ok {
			if !res.ok {
				NewResponse().Status(http.StatusNoContent).Write(w)
				return
			}
			v = res.perf
		}
		NewResponse().JSON(v).Write(w)
	}
}

func (s *Server) reportRequest(r *http.Request) (core.OwnerID, reportQuery, error) {
	owner, err := ownerOf(r)
	if err != nil {
		return "", reportQuery{}, err
	}
	q, err := parseReportQuery(r.URL.Query(), s.today())
	return owner, q, err
}

func (s *Server) handleRevenue() http.HandlerFunc {
	return s.reportHandler("revenue", func(ctx context.Context, owner core.OwnerID, q reportQuery) (any, error) {
		periods, err := s.reporter.AggregateRevenue(ctx, owner, q.Start, q.End, q.Granularity)
		if err != nil {
			return nil, err
		}
		if periods == nil {
			periods = []core.PeriodRevenue{}
		}
		return map[string]any{
			"start":       q.Start,
			"end":         q.End,
			"granularity": q.Granularity,
			"periods":     periods,
		}, nil
	})
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return s.reportHandler("metrics", func(ctx context.Context, owner core.OwnerID, q reportQuery) (any, error) {
		return s.reporter.ComputeMetrics(ctx, owner, q.Start, q.End)
	})
}

func (s *Server) handlePerformance() http.HandlerFunc {
	return s.reportHandler("performance", func(ctx context.Context, owner core.OwnerID, q reportQuery) (any, error) {
		perf, ok, err := s.reporter.ComputePeriodPerformance(ctx, owner, q.Start, q.End, q.Granularity)
		if err != nil {
			return nil, err
		}
		return performanceResult{perf: perf, ok: ok}, nil
	})
}

func (s *Server) handleExpenseBreakdown() http.HandlerFunc {
	return s.reportHandler("expenses", func(ctx context.Context, owner core.OwnerID, q reportQuery) (any, error) {
		items, err := s.reporter.ExpenseBreakdown(ctx, owner, q.Start, q.End)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []core.ExpenseTypeAmount{}
		}
		return map[string]any{"start": q.Start, "end": q.End, "expenses": items}, nil
	})
}

// handleSummaryDocument renders the summary as a PDF or plain-text
// attachment. Rendering happens into a buffer so failures still get a
// JSON error.
func (s *Server) handleSummaryDocument(contentType, ext string, render func(*bytes.Buffer, report.Summary) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, q, err := s.reportRequest(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		sum, err := s.reporter.BuildSummary(r.Context(), owner, q.Start, q.End, q.Granularity)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var buf bytes.Buffer
		if err := render(&buf, sum); err != nil {
			writeError(w, r, fmt.Errorf("render summary: %w", err))
			return
		}

		s.logger.DebugContext(r.Context(), "Summary rendered",
			log.FieldOwner, owner,
			log.FieldStart, q.Start.String(),
			log.FieldEnd, q.End.String(),
			"bytes", buf.Len())

		filename := fmt.Sprintf("fareboard-%s-%s_%s.%s", owner, q.Start, q.End, ext)
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

func renderPDF(buf *bytes.Buffer, sum report.Summary) error  { return report.RenderPDF(buf, sum) }
func renderText(buf *bytes.Buffer, sum report.Summary) error { return report.WriteText(buf, sum) }
