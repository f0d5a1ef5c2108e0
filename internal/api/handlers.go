package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/pan-validator/internal/ingest"
	"github.com/ignite/pan-validator/internal/pan"
	"github.com/ignite/pan-validator/internal/pkg/httputil"
	"github.com/ignite/pan-validator/internal/report"
	"github.com/ignite/pan-validator/internal/service/validation"
)

const (
	defaultOutcomeLimit = 100
	maxOutcomeLimit     = 10000
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Handlers serves the validation API.
type Handlers struct {
	svc *validation.Service
	// source is the configured staging source run by POST /runs; nil
	// disables the endpoint.
	source ingest.Source
}

// NewHandlers creates the API handlers. source may be nil.
func NewHandlers(svc *validation.Service, source ingest.Source) *Handlers {
	return &Handlers{svc: svc, source: source}
}

type validateRequest struct {
	PAN *string `json:"pan"`
}

type verdictResponse struct {
	Identifier string      `json:"identifier"`
	Verdict    pan.Verdict `json:"verdict"`
	Valid      bool        `json:"valid"`
}

// ValidateOne classifies a single identifier. A missing or null "pan" is
// classified like a NULL record.
//
//	POST /api/v1/pan/validate {"pan": "ABXCD1934F"}
func (h *Handlers) ValidateOne(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	raw := ""
	if req.PAN != nil {
		raw = *req.PAN
	}
	o := h.svc.Check(raw)
	httputil.OK(w, verdictResponse{Identifier: o.Identifier, Verdict: o.Verdict, Valid: o.Verdict.IsValid()})
}

type batchRequest struct {
	Values json.RawMessage `json:"values"`
}

// ValidateBatch runs an ad hoc batch. Elements of "values" must be strings
// or null. Pass ?details=true to include every outcome.
//
//	POST /api/v1/pan/batch {"values": ["ABXCD1934F", null]}
func (h *Handlers) ValidateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Values) == 0 {
		httputil.BadRequest(w, `"values" is required`)
		return
	}
	records, err := pan.DecodeRawRecords(req.Values)
	if err != nil {
		httputil.ErrorCode(w, http.StatusBadRequest, "invalid_record", err.Error())
		return
	}

	res, err := h.svc.Validate(r.Context(), records)
	switch {
	case errors.Is(err, validation.ErrBatchTooLarge):
		httputil.ErrorCode(w, http.StatusRequestEntityTooLarge, "batch_too_large", err.Error())
		return
	case err != nil:
		httputil.InternalError(w, err)
		return
	}

	details, _ := strconv.ParseBool(r.URL.Query().Get("details"))
	httputil.OK(w, report.NewDocument(res, details))
}

// TriggerRun validates the configured staging source once.
//
//	POST /api/v1/runs
func (h *Handlers) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		httputil.Error(w, http.StatusNotImplemented, "no staging source configured")
		return
	}
	res, err := h.svc.Run(r.Context(), h.source)
	switch {
	case errors.Is(err, validation.ErrRunInProgress):
		httputil.ErrorCode(w, http.StatusConflict, "run_in_progress", err.Error())
		return
	case err != nil && res == nil:
		httputil.InternalError(w, err)
		return
	case err != nil:
		// Validation finished but a report sink failed.
		httputil.JSON(w, http.StatusAccepted, map[string]any{
			"run":     report.NewDocument(res, false),
			"warning": "report delivery failed",
		})
		return
	}
	httputil.OK(w, report.NewDocument(res, false))
}

// GetRun returns a stored run summary.
//
//	GET /api/v1/runs/{runID}
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(r.Context(), chi.URLParam(r, "runID"))
	if errors.Is(err, validation.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, sum)
}

// GetVerdict returns the verdict a run recorded for one identifier.
//
//	GET /api/v1/runs/{runID}/verdicts/{pan}
func (h *Handlers) GetVerdict(w http.ResponseWriter, r *http.Request) {
	id := pan.Normalize(pan.Raw(chi.URLParam(r, "pan")))
	v, err := h.svc.Verdict(r.Context(), chi.URLParam(r, "runID"), id)
	if errors.Is(err, validation.ErrRunNotFound) || errors.Is(err, validation.ErrIdentifierNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, verdictResponse{Identifier: id, Verdict: v, Valid: v.IsValid()})
}

// ListOutcomes pages through a run's audited outcomes.
//
//	GET /api/v1/runs/{runID}/outcomes?verdict=invalid_format&identifier=...&limit=100&offset=0
func (h *Handlers) ListOutcomes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := validation.OutcomeFilter{Limit: defaultOutcomeLimit}
	if s := q.Get("verdict"); s != "" {
		v, err := pan.ParseVerdict(s)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		filter.Verdict = v
	}
	if q.Has("identifier") {
		key := pan.Normalize(pan.Raw(q.Get("identifier")))
		filter.Identifier = &key
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		filter.Limit = min(n, maxOutcomeLimit)
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		filter.Offset = n
	}

	outcomes, err := h.svc.Outcomes(r.Context(), chi.URLParam(r, "runID"), filter)
	switch {
	case errors.Is(err, validation.ErrNoRunStore):
		httputil.Error(w, http.StatusNotImplemented, err.Error())
		return
	case errors.Is(err, validation.ErrRunNotFound):
		httputil.NotFound(w, err.Error())
		return
	case err != nil:
		httputil.InternalError(w, err)
		return
	}
	if outcomes == nil {
		outcomes = []pan.Outcome{}
	}
	httputil.OK(w, map[string]any{
		"outcomes": outcomes,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

type ruleInfo struct {
	Position int         `json:"position"`
	Name     string      `json:"name"`
	Verdict  pan.Verdict `json:"verdict"`
}

// ListRules returns the cascade in evaluation order.
//
//	GET /api/v1/rules
func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	rules := h.svc.Rules()
	out := make([]ruleInfo, len(rules))
	for i, rule := range rules {
		out[i] = ruleInfo{Position: i + 1, Name: rule.Name, Verdict: rule.Verdict}
	}
	httputil.OK(w, out)
}

// ListSummaries returns the summary history the dynamodb sink recorded for
// one source.
//
//	GET /api/v1/sources/{source}/summaries?limit=20
func (h *Handlers) ListSummaries(w http.ResponseWriter, r *http.Request) {
	source, err := url.PathUnescape(chi.URLParam(r, "source"))
	if err != nil {
		httputil.BadRequest(w, "invalid source")
		return
	}
	limit := defaultHistoryLimit
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = min(n, maxHistoryLimit)
	}

	summaries, err := h.svc.History(r.Context(), source, limit)
	if errors.Is(err, validation.ErrNoHistory) {
		httputil.Error(w, http.StatusNotImplemented, err.Error())
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"source":    source,
		"summaries": summaries,
	})
}
