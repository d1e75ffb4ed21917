package http

import (
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"registro/internal/core"
	"registro/internal/export"
	"registro/internal/log"
)

// handleEvents serves GET (statement of one sequence) and POST (record).
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListEvents(w, r)
	case http.MethodPost:
		s.handleCreateEvent(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	owner := ownerOf(r)
	parser := NewRequestBodyParser(w, r)
	if err := parser.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	draft, err := s.drafts.Parse(owner, parser)
	if err != nil {
		writeError(w, r, err)
		return
	}

	events, err := s.ledger.Record(r.Context(), draft)
	if len(events) > 0 {
		s.summaryCache.Invalidate(owner)
		atomic.AddInt64(&s.appMetrics.eventsRecorded, int64(len(events)))
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger := log.FromContext(r.Context())
	for _, e := range events {
		logger.InfoContext(r.Context(), "Event recorded",
			log.NewFields().WithEvent(e).WithOperation(log.OpRecord).ToSlice()...)
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/events/"+events[0].ID).
		JSON(map[string]interface{}{"events": newEventResponses(events)}).
		Write(w)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	seq, err := core.ParseSequence(r.URL.Query().Get("sequence"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.ledger.Statement(r.Context(), ownerOf(r), seq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(newStatementResponse(st)).Write(w)
}

// handleEvent deletes one event; internal transfers take their counterpart along.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		MethodNotAllowedError("DELETE").Write(w)
		return
	}
	owner := ownerOf(r)
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		BadRequestError("id", "missing event id").Write(w)
		return
	}

	res, err := s.ledger.Remove(r.Context(), owner, id)
	if len(res.Removed) > 0 {
		s.summaryCache.Invalidate(owner)
		atomic.AddInt64(&s.appMetrics.eventsRemoved, int64(len(res.Removed)))
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.CounterpartMissing {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Removed transfer had no counterpart",
			log.FieldOwnerID, owner,
			log.FieldEventID, id)
	}
	s.summaryCache.Store(res.Summary)

	NewJSONResponse().JSON(newRemoveResponse(res, s.sequenceName)).Write(w)
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError("POST").Write(w)
		return
	}
	owner := ownerOf(r)

	s.summaryCache.Invalidate(owner)
	summary, err := s.ledger.Recalculate(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.recalculations, 1)
	s.summaryCache.Store(summary)

	log.FromContext(r.Context()).InfoContext(r.Context(), "Ledger recalculated",
		log.FieldOwnerID, owner,
		log.FieldOperation, log.OpRecalculate)
	NewJSONResponse().JSON(newSummaryResponse(summary, s.sequenceName)).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError("GET").Write(w)
		return
	}
	owner := ownerOf(r)

	summary, ok := s.summaryCache.Lookup(owner)
	if !ok {
		var err error
		summary, err = s.ledger.Summary(r.Context(), owner)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.summaryCache.Store(summary)
	}
	NewJSONResponse().JSON(newSummaryResponse(summary, s.sequenceName)).Write(w)
}

// handleExport streams every sequence of the owner as an XLSX workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError("GET").Write(w)
		return
	}
	statements, err := s.ledger.Statements(r.Context(), ownerOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	f, err := export.Workbook(statements, s.sequenceName)
	if err != nil {
		writeError(w, r, fmt.Errorf("build workbook: %w", err))
		return
	}
	defer f.Close()

	filename := "registro-" + time.Now().UTC().Format(core.DateLayout) + ".xlsx"
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := f.Write(w); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to stream workbook",
			log.FieldOwnerID, ownerOf(r),
			log.FieldError, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.exports, 1)
}
