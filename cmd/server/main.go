// ==============================================================================
// KYC DOCUMENT PROCESSING SERVICE - cmd/server/main.go
// ==============================================================================
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"kycdoc/internal/analysis"
	"kycdoc/internal/audit"
	"kycdoc/internal/handler"
	"kycdoc/internal/middleware"
	"kycdoc/internal/notification"
	"kycdoc/internal/repository/postgres"
	"kycdoc/internal/risk"
	"kycdoc/internal/workflow"
	"kycdoc/pkg/cache"
	"kycdoc/pkg/config"
	"kycdoc/pkg/logger"
	"kycdoc/pkg/validator"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("kyc-document-service")

	log.Info("Starting KYC Document Processing Service", map[string]interface{}{
		"port": cfg.Server.Port,
	})

	// Database connection
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	// Redis connection
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer redisCache.Close()
	redisClient := redisCache.Client()

	// Repositories
	customerRepo := postgres.NewCustomerRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)
	assessmentRepo := postgres.NewAssessmentRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	// Core services
	auditSink := audit.NewService(auditRepo, log)
	hub := notification.NewHub(log)

	scorer, err := risk.NewScorer(risk.DefaultConfig(), log)
	if err != nil {
		log.Fatal("Invalid risk scoring configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	engine := workflow.NewEngine(
		sessionRepo,
		customerRepo,
		assessmentRepo,
		analysis.NewStubDocumentAnalyzer(),
		analysis.NewStubAuthenticityChecker(),
		analysis.NewStubPIIDetector(),
		scorer,
		redisCache,
		auditSink,
		hub,
		cfg.Workflow,
		log,
	)

	// Handlers
	val := validator.New()
	workflowHandler := handler.NewWorkflowHandler(engine, hub, val, log)
	customerHandler := handler.NewCustomerHandler(customerRepo, val, log)
	assessmentHandler := handler.NewAssessmentHandler(scorer, customerRepo, assessmentRepo, val, log)
	systemHandler := handler.NewSystemHandler(db, redisClient, auditRepo, log)

	// Setup router
	r := mux.NewRouter()

	// Middleware
	r.Use(middleware.CORS)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.BodyLimit(1 << 20)) // 1MB global cap
	r.Use(middleware.NewRateLimiter(redisClient, 100, time.Minute).Limit)

	// Probes
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/ready", readyCheck(db)).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Customers and documents
	api.HandleFunc("/customers", customerHandler.CreateCustomer).Methods("POST")
	api.HandleFunc("/customers/{customer_id}", customerHandler.GetCustomer).Methods("GET")
	api.HandleFunc("/customers/{customer_id}/documents", customerHandler.AddDocument).Methods("POST")
	api.HandleFunc("/customers/{customer_id}/documents", customerHandler.ListDocuments).Methods("GET")

	// KYC workflow
	idem := middleware.NewIdempotencyMiddleware(redisClient, 24*time.Hour)
	api.Handle("/kyc/workflows", idem.Require(http.HandlerFunc(workflowHandler.StartWorkflow))).Methods("POST")
	api.HandleFunc("/kyc/sessions/{session_id}", workflowHandler.GetSessionStatus).Methods("GET")
	api.HandleFunc("/kyc/sessions/{session_id}/audit", systemHandler.GetSessionAuditEvents).Methods("GET")

	// WebSocket for real-time workflow progress
	api.HandleFunc("/kyc/sessions/{session_id}/stream", workflowHandler.StreamSession)

	// Risk assessments
	api.HandleFunc("/risk/assessments", assessmentHandler.Assess).Methods("POST")
	api.HandleFunc("/risk/assessments/{assessment_id}", assessmentHandler.GetAssessment).Methods("GET")
	api.HandleFunc("/customers/{customer_id}/risk-assessments", assessmentHandler.ListCustomerAssessments).Methods("GET")

	// Operations (bearer auth required)
	auth := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)
	ops := api.PathPrefix("/system").Subrouter()
	ops.Use(auth.Authenticate)
	ops.HandleFunc("/status", systemHandler.Status).Methods("GET")
	ops.HandleFunc("/audit", systemHandler.GetAuditEvents).Methods("GET")

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("KYC document service started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down KYC document service...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("KYC document service forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("KYC document service stopped gracefully", nil)
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	_ = r
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"kyc-document"}`))
}

func readyCheck(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not ready","reason":"database unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready","service":"kyc-document"}`))
	}
}
