package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lodge_billing_notifier/internal/app"
	"lodge_billing_notifier/internal/domain/evaluation"
	"lodge_billing_notifier/internal/domain/ledger"
	"lodge_billing_notifier/internal/domain/rule"
	idb "lodge_billing_notifier/internal/infra/database"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler serves the admin API on top of the application services.
type Handler struct {
	admin       *app.AdminService
	notif       app.NotificationService
	db          Pinger
	passTimeout time.Duration
	now         func() time.Time
	logger      *logrus.Entry
}

func NewHandler(admin *app.AdminService, notif app.NotificationService, db Pinger, passTimeout time.Duration, logger *logrus.Entry) *Handler {
	return &Handler{
		admin:       admin,
		notif:       notif,
		db:          db,
		passTimeout: passTimeout,
		now:         time.Now,
		logger:      logger,
	}
}

type ruleResponse struct {
	ID           uuid.UUID `json:"id"`
	LodgeID      int64     `json:"lodge_id"`
	Name         string    `json:"name"`
	Trigger      string    `json:"trigger"`
	TriggerValue int       `json:"trigger_value"`
	Channel      string    `json:"channel"`
	TemplateRef  string    `json:"template_ref"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toRuleResponse(r *rule.Rule) ruleResponse {
	return ruleResponse{
		ID:           r.ID,
		LodgeID:      r.LodgeID,
		Name:         r.Name,
		Trigger:      strings.ToLower(string(r.TriggerKind)),
		TriggerValue: r.TriggerValue,
		Channel:      strings.ToLower(string(r.Channel)),
		TemplateRef:  r.TemplateRef,
		Enabled:      r.Enabled,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type executionResponse struct {
	ID            uuid.UUID `json:"id"`
	RuleID        uuid.UUID `json:"rule_id"`
	BillID        int64     `json:"bill_id,omitempty"`
	MemberID      int64     `json:"member_id"`
	Subject       string    `json:"subject"`
	Channel       string    `json:"channel"`
	FiredAt       time.Time `json:"fired_at"`
	Outcome       string    `json:"outcome"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

func toExecutionResponse(rec *ledger.ExecutionRecord) executionResponse {
	return executionResponse{
		ID:            rec.ID,
		RuleID:        rec.RuleID,
		BillID:        rec.BillID,
		MemberID:      rec.MemberID,
		Subject:       rec.Subject,
		Channel:       strings.ToLower(string(rec.Channel)),
		FiredAt:       rec.FiredAt,
		Outcome:       strings.ToLower(string(rec.Outcome)),
		FailureReason: rec.FailureReason.String,
	}
}

type dueResponse struct {
	RuleID   uuid.UUID `json:"rule_id"`
	RuleName string    `json:"rule_name,omitempty"`
	Trigger  string    `json:"trigger"`
	Channel  string    `json:"channel"`
	BillID   int64     `json:"bill_id"`
	MemberID int64     `json:"member_id"`
	DueDate  string    `json:"due_date"`
	Amount   string    `json:"amount"`
	Subject  string    `json:"subject"`
}

type previewResponse struct {
	Due      []dueResponse `json:"due"`
	Warnings []string      `json:"warnings"`
}

func toPreviewResponse(due []evaluation.Due, warnings []evaluation.Warning) previewResponse {
	resp := previewResponse{
		Due:      make([]dueResponse, 0, len(due)),
		Warnings: make([]string, 0, len(warnings)),
	}
	for _, d := range due {
		resp.Due = append(resp.Due, dueResponse{
			RuleID:   d.Rule.ID,
			RuleName: d.Rule.Name,
			Trigger:  d.Trigger.String(),
			Channel:  strings.ToLower(string(d.Rule.Channel)),
			BillID:   d.Bill.ID,
			MemberID: d.Bill.MemberID,
			DueDate:  d.Bill.DueDate.Format(time.DateOnly),
			Amount:   d.Bill.Amount.StringFixed(2),
			Subject:  d.Subject,
		})
	}
	for _, w := range warnings {
		resp.Warnings = append(resp.Warnings, w.Error())
	}
	return resp
}

type passResponse struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DryRun     bool      `json:"dry_run"`
	Due        int       `json:"due"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Pending    int       `json:"pending"`
	Duplicates int       `json:"duplicates"`
	Skipped    int       `json:"skipped"`
	Warnings   int       `json:"warnings"`
	Aborted    bool      `json:"aborted"`
}

// patchRuleRequest toggles a rule, edits it, or both in a single write. Rule
// fields are applied only when Trigger is present.
type patchRuleRequest struct {
	Enabled *bool `json:"enabled"`
	app.RuleInput
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.WithError(err).Warn("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.admin.ListRules(r.Context(), adminIDFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	resp := make([]ruleResponse, 0, len(rules))
	for _, rl := range rules {
		resp = append(resp, toRuleResponse(rl))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var in app.NewRuleInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.admin.AddRule(r.Context(), adminIDFrom(r.Context()), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleResponse(created))
}

func (h *Handler) handlePatchRule(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleIDParam(w, r)
	if !ok {
		return
	}
	var req patchRuleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Enabled == nil && req.Trigger == "" {
		writeError(w, http.StatusBadRequest, "nothing to update: send enabled and/or the rule fields")
		return
	}

	var fields *app.RuleInput
	if req.Trigger != "" {
		fields = &req.RuleInput
	}
	updated, err := h.admin.PatchRule(r.Context(), adminIDFrom(r.Context()), id, fields, req.Enabled)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleResponse(updated))
}

func (h *Handler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleIDParam(w, r)
	if !ok {
		return
	}
	if err := h.admin.DeleteRule(r.Context(), adminIDFrom(r.Context()), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.Filter{Outcome: ledger.Outcome(strings.ToUpper(q.Get("outcome")))}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	if raw := q.Get("rule_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "rule_id must be a UUID")
			return
		}
		filter.RuleID = id
	}

	records, err := h.admin.ListExecutions(r.Context(), adminIDFrom(r.Context()), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	resp := make([]executionResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toExecutionResponse(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePreviewDue(w http.ResponseWriter, r *http.Request) {
	if !h.admin.IsAdmin(adminIDFrom(r.Context())) {
		h.writeServiceError(w, r, app.ErrAdminNotAuthorized)
		return
	}
	due, warnings, err := h.notif.PreviewDue(r.Context(), h.now())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewResponse(due, warnings))
}

func (h *Handler) handleRunPass(w http.ResponseWriter, r *http.Request) {
	if !h.admin.IsAdmin(adminIDFrom(r.Context())) {
		h.writeServiceError(w, r, app.ErrAdminNotAuthorized)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.passTimeout)
	defer cancel()

	report, err := h.notif.RunPass(ctx, h.now())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, passResponse{
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		DryRun:     report.DryRun,
		Due:        report.Due,
		Sent:       report.Sent,
		Failed:     report.Failed,
		Pending:    report.Pending,
		Duplicates: report.Duplicates,
		Skipped:    report.Skipped,
		Warnings:   len(report.Warnings),
		Aborted:    report.Aborted,
	})
}

// writeServiceError maps service errors to status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := h.logger.WithError(err).WithField("request_id", middleware.GetReqID(r.Context()))
	switch {
	case errors.Is(err, app.ErrAdminNotAuthorized):
		log.Warn("Admin not authorized")
		writeError(w, http.StatusForbidden, "not authorized")
	case errors.Is(err, idb.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, "rule not found")
	case errors.Is(err, rule.ErrInvalidRule), errors.Is(err, app.ErrInvalidFilter):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, app.ErrPassInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrSourceUnavailable):
		log.Error("Notification source unavailable")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func ruleIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "rule id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}
