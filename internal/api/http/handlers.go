package apihttp

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	alertapp "sitewatch-cloud/internal/alerts/application"
	"sitewatch-cloud/internal/auth"
)

const timeLayout = time.RFC3339

// HealthHandler serves per-sensor health snapshots with their informational
// score. Nothing here mutates state; alerting stays with the scan.
type HealthHandler struct {
	service *alertapp.Service
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(service *alertapp.Service) *HealthHandler {
	return &HealthHandler{service: service}
}

// ServeHTTP handles GET /api/v1/sensors/health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	tenantID := requestTenant(r)
	if tenantID == "" {
		http.Error(w, "tenant_id is required", http.StatusBadRequest)
		return
	}

	list, err := h.service.ListSensorHealth(r.Context(), tenantID, r.URL.Query().Get("zone_id"))
	if err != nil {
		http.Error(w, "query sensor health error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

// ExportHealthCSVHandler serves the same health listing as CSV.
type ExportHealthCSVHandler struct {
	service *alertapp.Service
}

// NewExportHealthCSVHandler constructs a ExportHealthCSVHandler.
func NewExportHealthCSVHandler(service *alertapp.Service) *ExportHealthCSVHandler {
	return &ExportHealthCSVHandler{service: service}
}

// ServeHTTP handles GET /api/v1/exports/sensor_health.csv.
func (h *ExportHealthCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	tenantID := requestTenant(r)
	if tenantID == "" {
		http.Error(w, "tenant_id is required", http.StatusBadRequest)
		return
	}

	list, err := h.service.ListSensorHealth(r.Context(), tenantID, r.URL.Query().Get("zone_id"))
	if err != nil {
		http.Error(w, "query sensor health error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sensor_health.csv"`)
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"sensor_id",
		"site_id",
		"zone_id",
		"bay_id",
		"name",
		"last_seen_at",
		"age_minutes",
		"avg_rssi",
		"avg_snr",
		"signal_samples",
		"battery_percent",
		"battery_drain_per_day",
		"flap_count",
		"score",
	})
	for _, row := range list {
		_ = writer.Write([]string{
			row.SensorID,
			row.SiteID,
			row.ZoneID,
			row.BayID,
			row.Name,
			formatTimePtr(row.Snapshot.LastSeenAt),
			formatFloatPtr(row.Snapshot.AgeMinutes),
			formatFloatPtr(row.Snapshot.AvgRSSI),
			formatFloatPtr(row.Snapshot.AvgSNR),
			strconv.Itoa(row.Snapshot.SignalSamples),
			formatFloatPtr(row.Snapshot.BatteryPercent),
			formatFloatPtr(row.Snapshot.BatteryDrainPerDay),
			strconv.Itoa(row.Snapshot.FlapCount),
			strconv.Itoa(row.Score),
		})
	}
	writer.Flush()
}

func requestTenant(r *http.Request) string {
	if tenantID := auth.TenantIDFromContext(r.Context()); tenantID != "" {
		return tenantID
	}
	return r.URL.Query().Get("tenant_id")
}

func formatTimePtr(value *time.Time) string {
	if value == nil || value.IsZero() {
		return ""
	}
	return value.UTC().Format(timeLayout)
}

func formatFloatPtr(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}
