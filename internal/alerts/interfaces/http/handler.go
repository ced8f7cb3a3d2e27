package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	alertapp "sitewatch-cloud/internal/alerts/application"
	alerts "sitewatch-cloud/internal/alerts/domain"
	"sitewatch-cloud/internal/alerts/interfaces"
	"sitewatch-cloud/internal/audit"
	"sitewatch-cloud/internal/auth"
	"sitewatch-cloud/internal/observability/metrics"
)

// Handler provides alert HTTP endpoints.
type Handler struct {
	service     *alertapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *alertapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("alerts handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP handles /api/v1/alerts, /api/v1/scans and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/alerts":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
		return
	case r.URL.Path == "/api/v1/alerts/export.xlsx":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleExport(w, r)
		return
	case strings.HasPrefix(r.URL.Path, "/api/v1/alerts/"):
		h.handleAlert(w, r)
		return
	case r.URL.Path == "/api/v1/scans":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleScan(w, r)
		return
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	filter, err := parseListFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := h.service.List(r.Context(), tenantID, filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []alerts.Alert{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	filter, err := parseListFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start := time.Now()
	list, err := h.service.List(r.Context(), tenantID, filter)
	if err != nil {
		metrics.ObserveAlertExport("xlsx", metrics.ResultError, time.Since(start))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data, err := interfaces.BuildAlertXLSX(tenantID, list)
	if err != nil {
		metrics.ObserveAlertExport("xlsx", metrics.ResultError, time.Since(start))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveAlertExport("xlsx", metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="alerts.xlsx"`)
	_, _ = w.Write(data)
}

func (h *Handler) handleAlert(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/")
	parts := strings.Split(path, "/")
	if len(parts) < 1 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleGet(w, r, id)
		return
	}
	if len(parts) == 2 && parts[1] == "events" && r.Method == http.MethodGet {
		h.handleEvents(w, r, id)
		return
	}
	if len(parts) == 2 && r.Method == http.MethodPost {
		h.handleAction(w, r, id, parts[1])
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	alert, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondAlertError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(alert)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request, id string) {
	events, err := h.service.Events(r.Context(), id)
	if err != nil {
		respondAlertError(w, err)
		return
	}
	if events == nil {
		events = []alerts.AlertEvent{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request, id, action string) {
	actor := auth.SubjectFromContext(r.Context())

	var (
		alert *alerts.Alert
		err   error
	)
	switch action {
	case "ack":
		alert, err = h.service.Acknowledge(r.Context(), id, actor)
		if err == nil {
			h.logAudit(r, alert, "alert.acknowledge", nil)
		}
	case "assign":
		var req struct {
			Assignee string `json:"assignee"`
		}
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		alert, err = h.service.Assign(r.Context(), id, req.Assignee, actor)
		if err == nil {
			h.logAudit(r, alert, "alert.assign", map[string]any{"assignee": req.Assignee})
		}
	case "resolve":
		var req struct {
			Note string `json:"note"`
		}
		if r.ContentLength > 0 {
			if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
		}
		alert, err = h.service.Resolve(r.Context(), id, actor, req.Note)
		if err == nil {
			h.logAudit(r, alert, "alert.resolve", map[string]any{"note": req.Note})
		}
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		respondAlertError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(alert)
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requestTenant(w, r)
	if !ok {
		return
	}
	var req struct {
		ZoneID string `json:"zone_id"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}
	actor := auth.SubjectFromContext(r.Context())
	result, err := h.service.RunScan(r.Context(), tenantID, req.ZoneID, actor)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
	if h.auditLogger != nil && actor != "" {
		payload, _ := json.Marshal(map[string]any{
			"zone_id":  req.ZoneID,
			"created":  result.Created,
			"updated":  result.Updated,
			"resolved": result.Resolved,
		})
		_ = h.auditLogger.Log(r.Context(), audit.Entry{
			TenantID:     tenantID,
			Actor:        actor,
			Role:         string(auth.RoleFromContext(r.Context())),
			Action:       "scan.trigger",
			ResourceType: "scan",
			Metadata:     payload,
			IP:           audit.ClientIP(r),
			UserAgent:    r.UserAgent(),
		})
	}
}

func (h *Handler) logAudit(r *http.Request, alert *alerts.Alert, action string, meta map[string]any) {
	if h.auditLogger == nil || alert == nil {
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		tenantID = alert.TenantID
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "alert",
		ResourceID:   alert.ID,
		SensorID:     alert.SensorID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

// requestTenant resolves the tenant scope from the auth context, falling back
// to an explicit query parameter for unauthenticated deployments.
func requestTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		tenantID = r.URL.Query().Get("tenant_id")
	}
	if tenantID == "" {
		http.Error(w, "tenant_id is required", http.StatusBadRequest)
		return "", false
	}
	return tenantID, true
}

func parseListFilter(r *http.Request) (alerts.ListFilter, error) {
	filter := alerts.ListFilter{
		Status:   r.URL.Query().Get("status"),
		Type:     r.URL.Query().Get("type"),
		SensorID: r.URL.Query().Get("sensor_id"),
		ZoneID:   r.URL.Query().Get("zone_id"),
	}
	if filter.Status != "" && !alerts.ValidStatus(filter.Status) {
		return filter, errors.New("invalid status")
	}
	if filter.Type != "" && !alerts.ValidType(filter.Type) {
		return filter, errors.New("invalid type")
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, errors.New("limit must be a non-negative integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}

func respondAlertError(w http.ResponseWriter, err error) {
	if errors.Is(err, alerts.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if errors.Is(err, auth.ErrTenantMismatch) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if errors.Is(err, alerts.ErrAlreadyResolved) {
		http.Error(w, "alert already resolved", http.StatusConflict)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}
