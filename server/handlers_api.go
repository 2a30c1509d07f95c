package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/dashboard-gateway/engine"
	gwerrors "github.com/jrsteele09/dashboard-gateway/internal/errors"
	"github.com/jrsteele09/dashboard-gateway/reports"
	"github.com/rs/zerolog/log"
)

const maxRequestBody = 1 << 20

// reportRequest is the body shared by the widget endpoints. Branches and
// report ids arrive either as JSON arrays or comma separated strings.
type reportRequest struct {
	Date1    string `json:"date1"`
	Date2    string `json:"date2"`
	Branches any    `json:"branches"`
	ReportID any    `json:"reportId"`
}

func (s *Server) queryOptions(r *http.Request) engine.QueryOptions {
	ctx := r.Context()
	return engine.QueryOptions{DatabaseID: s.databaseID(ctx, TenantFromContext(ctx))}
}

func decodeReportRequest(w http.ResponseWriter, r *http.Request) (reportRequest, bool) {
	var req reportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request", "request body must be JSON", nil)
		return req, false
	}
	return req, true
}

// writeQueryError maps report and engine failures to responses. Empty
// results keep their diagnostic details.
func writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	var empty *reports.EmptyResultError
	switch {
	case errors.As(err, &empty):
		writeJSONError(w, http.StatusBadRequest, empty.Message, "", empty.Details)
	case errors.Is(err, gwerrors.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, "Invalid request", err.Error(), nil)
	default:
		log.Err(err).Str("path", r.URL.Path).Msg("Query failed")
		writeJSONError(w, http.StatusInternalServerError, "Internal server error", err.Error(), nil)
	}
}

// BranchesHandler lists the branches the session is authorized for.
func (s *Server) BranchesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || claims.Branches == "" {
			writeJSONError(w, http.StatusBadRequest, "No branches found in token", "", nil)
			return
		}

		rows, err := s.reports.Query(r.Context(), s.reports.Queries().Branches,
			map[string]any{"userBranches": claims.Branches}, s.queryOptions(r))
		if err != nil {
			writeQueryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

// WidgetReportHandler runs the requested widget reports for a date range and
// branch set.
func (s *Server) WidgetReportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeReportRequest(w, r)
		if !ok {
			return
		}
		params, err := reports.NewParams(req.Date1, req.Date2, req.Branches, s.location)
		if err != nil {
			writeQueryError(w, r, err)
			return
		}
		reportIDs, err := reports.ParseIDs(req.ReportID)
		if err != nil {
			writeQueryError(w, r, err)
			return
		}

		values, err := s.reports.Run(r.Context(), reportIDs, params, s.queryOptions(r))
		if err != nil {
			writeQueryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, values)
	}
}

// WidgetBranchHandler runs the per-branch summary report.
func (s *Server) WidgetBranchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeReportRequest(w, r)
		if !ok {
			return
		}
		params, err := reports.NewParams(req.Date1, req.Date2, req.Branches, s.location)
		if err != nil {
			writeQueryError(w, r, err)
			return
		}

		summaries, err := s.reports.RunBranches(r.Context(), params, s.queryOptions(r))
		if err != nil {
			writeQueryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, summaries)
	}
}

func (s *Server) WebWidgetsHandler() http.HandlerFunc {
	return s.storedQueryHandler(func() (string, map[string]any) {
		return s.reports.Queries().WebWidgets, map[string]any{"branchReportId": s.reports.BranchReportID()}
	})
}

func (s *Server) WebReportListHandler() http.HandlerFunc {
	return s.storedQueryHandler(func() (string, map[string]any) {
		return s.reports.Queries().ReportList, nil
	})
}

func (s *Server) UsersHandler() http.HandlerFunc {
	return s.storedQueryHandler(func() (string, map[string]any) {
		return s.reports.Queries().Users, nil
	})
}

func (s *Server) NotificationsHandler() http.HandlerFunc {
	return s.storedQueryHandler(func() (string, map[string]any) {
		return s.reports.Queries().Notifications, nil
	})
}

// storedQueryHandler answers with the rows of a parameterless stored query.
func (s *Server) storedQueryHandler(query func() (string, map[string]any)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sql, templateParams := query()
		rows, err := s.reports.Query(r.Context(), sql, templateParams, s.queryOptions(r))
		if err != nil {
			writeQueryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

// OrderDetailHandler returns the header, payments and transactions of one
// order. The key must be a UUID before it is handed to the engine.
func (s *Server) OrderDetailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderKey := r.URL.Query().Get("orderKey")
		if orderKey == "" {
			writeJSONError(w, http.StatusBadRequest, "OrderKey is required", "", nil)
			return
		}
		key, err := uuid.Parse(orderKey)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "OrderKey is invalid", "orderKey must be a UUID", nil)
			return
		}

		rows, err := s.reports.Query(r.Context(), s.reports.Queries().OrderDetail,
			map[string]any{"orderKey": key.String()}, s.queryOptions(r))
		if err != nil {
			writeQueryError(w, r, err)
			return
		}
		if len(rows) == 0 {
			writeJSONError(w, http.StatusNotFound, "Order not found", "", nil)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}
