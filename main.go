package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"sitewatch-cloud/internal/alerts/adapters/ingestion"
	"sitewatch-cloud/internal/alerts/adapters/telemetry"
	alertapp "sitewatch-cloud/internal/alerts/application"
	alertrepo "sitewatch-cloud/internal/alerts/infrastructure/postgres"
	alerthttp "sitewatch-cloud/internal/alerts/interfaces/http"
	alertnotify "sitewatch-cloud/internal/alerts/notify"
	apihttp "sitewatch-cloud/internal/api/http"
	"sitewatch-cloud/internal/audit"
	"sitewatch-cloud/internal/auth"
	masterdatarepo "sitewatch-cloud/internal/masterdata/infrastructure/postgres"
	"sitewatch-cloud/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	alertRepo := alertrepo.NewAlertRepository(db)
	eventRepo := alertrepo.NewAlertEventRepository(db)
	sensorRepo := masterdatarepo.NewSensorRepository(db)
	settingsRepo := masterdatarepo.NewSettingsRepository(db)
	healthReader := telemetry.NewHealthReader(db)
	deadLetterReader := ingestion.NewDeadLetterReader(db)

	var serviceOpts []alertapp.ServiceOption
	if urls := splitList(cfg.AlertWebhookURLs); len(urls) > 0 {
		notifiers := make([]alertapp.AlertNotifier, 0, len(urls))
		for _, url := range urls {
			channel, err := alertnotify.NewWebhookChannel(url)
			if err != nil {
				logger.Fatalf("alert webhook error: %v", err)
			}
			notifier, err := alertnotify.NewNotifier(channel, logger,
				alertnotify.WithCooldown(cfg.AlertNotifyCooldown),
				alertnotify.WithRequestTimeout(cfg.AlertNotifyTimeout),
			)
			if err != nil {
				logger.Fatalf("alert notifier error: %v", err)
			}
			notifiers = append(notifiers, notifier)
		}
		if len(notifiers) == 1 {
			serviceOpts = append(serviceOpts, alertapp.WithNotifier(notifiers[0]))
		} else {
			serviceOpts = append(serviceOpts, alertapp.WithNotifier(alertnotify.NewMultiNotifier(notifiers...)))
		}
	}

	alertService, err := alertapp.NewService(alertRepo, eventRepo, settingsRepo, sensorRepo, healthReader, deadLetterReader, serviceOpts...)
	if err != nil {
		logger.Fatalf("alert service error: %v", err)
	}
	alertHandler, err := alerthttp.NewHandler(alertService, auditRepo)
	if err != nil {
		logger.Fatalf("alert handler error: %v", err)
	}

	scanCfg, err := alertapp.LoadScanConfig()
	if err != nil {
		logger.Fatalf("scan config error: %v", err)
	}
	scheduler := alertapp.NewScheduler(alertService, scanCfg, logger)
	go scheduler.Start(context.Background())

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/alerts", alertHandler)
	mux.Handle("/api/v1/alerts/", alertHandler)
	mux.Handle("/api/v1/scans", alertHandler)
	mux.Handle("/api/v1/sensors/health", apihttp.NewHealthHandler(alertService))
	mux.Handle("/api/v1/exports/sensor_health.csv", apihttp.NewExportHealthCSVHandler(alertService))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL         string
	HTTPAddr            string
	AlertWebhookURLs    string
	AlertNotifyCooldown time.Duration
	AlertNotifyTimeout  time.Duration
	JWTSecret           string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:         getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:            getenvDefault("HTTP_ADDR", ":8080"),
		AlertWebhookURLs:    getenvDefault("ALERT_WEBHOOK_URLS", getenvDefault("ALERT_WEBHOOK_URL", "")),
		AlertNotifyCooldown: getenvDuration("ALERT_NOTIFY_COOLDOWN", 0),
		AlertNotifyTimeout:  getenvDuration("ALERT_NOTIFY_TIMEOUT", 5*time.Second),
		JWTSecret:           getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	var result []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
