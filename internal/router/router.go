// internal/router/router.go
package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/config"
	"github.com/javajoker/dlms-backend/internal/events"
	"github.com/javajoker/dlms-backend/internal/handlers"
	"github.com/javajoker/dlms-backend/internal/metrics"
	"github.com/javajoker/dlms-backend/internal/middleware"
	"github.com/javajoker/dlms-backend/internal/questionbank"
	"github.com/javajoker/dlms-backend/internal/services"
	"github.com/javajoker/dlms-backend/internal/utils"
)

// Dependencies are the collaborators built outside the router. Zero values
// fall back to what cfg describes.
type Dependencies struct {
	// Publisher fans notifications out to redis. Leave nil to disable.
	Publisher    services.Publisher
	Bank         *questionbank.Bank
	CardVerifier services.CardVerifier
	Registry     *prometheus.Registry
	// Now overrides the clock of the exam availability window.
	Now func() time.Time
}

// App is the wired HTTP application. Dispatcher must be drained with Wait
// on shutdown so pending notifications are stored.
type App struct {
	Engine     *gin.Engine
	Dispatcher *events.Dispatcher
}

func Initialize(db *gorm.DB, cfg *config.Config, deps Dependencies) (*App, error) {
	location, err := time.LoadLocation(cfg.Exam.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid exam timezone %q: %w", cfg.Exam.Timezone, err)
	}

	bank := deps.Bank
	if bank == nil {
		if bank, err = questionbank.LoadFile(cfg.Exam.QuestionBankPath); err != nil {
			return nil, err
		}
	}

	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m := metrics.New(registry)

	verifier := deps.CardVerifier
	if verifier == nil {
		verifier = services.NewStripeVerifier(cfg.Payment.StripeSecretKey)
	}

	storageService, err := services.NewStorageService(cfg.AWS)
	if err != nil {
		return nil, err
	}

	// Initialize services
	notificationService := services.NewNotificationService(db, deps.Publisher)
	activityService := services.NewActivityService(db)
	dispatcher := events.NewDispatcher(notificationService, activityService)

	window := services.NewAvailabilityWindow(cfg.Exam, deps.Now)
	scheduler := services.NewExamScheduler(db, services.NewExaminerAssigner(m), dispatcher, m, location)
	sessionService := services.NewExamSessionService(db, bank, window, dispatcher, m, cfg.Exam.TheoryQuestionCount)
	licenseService := services.NewLicenseService(db, cfg.License, dispatcher, m)
	paymentService := services.NewPaymentService(db, cfg.Payment, storageService, verifier, dispatcher)
	adminService := services.NewAdminService(db, dispatcher)
	userService := services.NewUserService(db)

	// Initialize handlers
	examHandler := handlers.NewExamHandler(scheduler, sessionService)
	eligibilityHandler := handlers.NewEligibilityHandler(services.NewEligibilityResolver(db))
	licenseHandler := handlers.NewLicenseHandler(licenseService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	adminHandler := handlers.NewAdminHandler(adminService, activityService)
	userHandler := handlers.NewUserHandler(userService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(dispatcher))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":  status,
			"version": "1.0.0",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	{
		// Public license check
		v1.GET("/licenses/verify/:number", middleware.PublicRateLimit(), licenseHandler.VerifyLicense)

		authed := v1.Group("")
		authed.Use(middleware.AuthRequired())

		users := authed.Group("/users")
		{
			users.GET("/me", userHandler.GetProfile)
			users.PUT("/me", userHandler.UpdateProfile)
		}

		// Candidate routes
		exams := authed.Group("/exams")
		{
			exams.POST("", middleware.CandidateRequired(), examHandler.ScheduleExam)
			exams.GET("/me", middleware.CandidateRequired(), examHandler.GetMyExams)
			exams.GET("/available", middleware.CandidateRequired(), examHandler.GetAvailableExams)
			exams.GET("/:id", examHandler.GetExam)
			exams.GET("/:id/take", middleware.CandidateRequired(), examHandler.TakeExam)
			exams.POST("/:id/submit", middleware.CandidateRequired(), examHandler.SubmitExam)
			exams.POST("/:id/cancel", examHandler.CancelExam)
		}

		authed.GET("/eligibility/me", middleware.CandidateRequired(), eligibilityHandler.GetMyEligibility)
		authed.GET("/licenses/me", middleware.CandidateRequired(), licenseHandler.GetMyLicense)

		payments := authed.Group("/payments")
		{
			payments.POST("", middleware.CandidateRequired(), paymentHandler.SubmitPayment)
			payments.GET("/me", middleware.CandidateRequired(), paymentHandler.GetMyPayments)
			payments.GET("/:id", paymentHandler.GetPayment)
		}

		notifications := authed.Group("/notifications")
		{
			notifications.GET("/me", notificationHandler.GetMyNotifications)
			notifications.GET("/unread-count", notificationHandler.GetUnreadCount)
			notifications.PUT("/:id/read", notificationHandler.MarkRead)
		}

		// Examiner routes
		examiner := authed.Group("/examiner")
		examiner.Use(middleware.ExaminerRequired())
		{
			examiner.GET("/exams", examHandler.GetAssignedExams)
			examiner.POST("/exams/:id/evaluate", examHandler.EvaluateExam)
		}

		// Admin routes
		admin := authed.Group("/admin")
		admin.Use(middleware.AdminRequired())
		{
			admin.GET("/dashboard/stats", adminHandler.GetDashboardStats)
			admin.GET("/activity", adminHandler.GetActivity)

			adminUsers := admin.Group("/users")
			{
				adminUsers.GET("", adminHandler.GetUsers)
				adminUsers.POST("", adminHandler.CreateUser)
			}

			adminExaminers := admin.Group("/examiners")
			{
				adminExaminers.GET("", adminHandler.GetExaminers)
				adminExaminers.POST("", adminHandler.CreateExaminer)
				adminExaminers.PUT("/:id/status", adminHandler.UpdateExaminerStatus)
			}

			adminExams := admin.Group("/exams")
			{
				adminExams.GET("", examHandler.SearchExams)
				adminExams.PUT("/:id/approve", examHandler.ApproveExam)
				adminExams.PUT("/:id/reject", examHandler.RejectExam)
				adminExams.PUT("/:id/finalize", examHandler.FinalizeExam)
				adminExams.PUT("/:id/no-show", examHandler.MarkNoShow)
			}

			adminCandidates := admin.Group("/candidates")
			{
				adminCandidates.GET("/:id/eligibility", eligibilityHandler.GetCandidateEligibility)
				adminCandidates.POST("/:id/license", licenseHandler.IssueCandidateLicense)
			}

			adminPayments := admin.Group("/payments")
			{
				adminPayments.GET("", paymentHandler.GetPayments)
				adminPayments.PUT("/:id/verify", paymentHandler.VerifyPayment)
				adminPayments.PUT("/:id/reject", paymentHandler.RejectPayment)
			}

			adminLicenses := admin.Group("/licenses")
			{
				adminLicenses.GET("", licenseHandler.GetLicenses)
				adminLicenses.POST("", licenseHandler.IssueLicense)
			}
		}
	}

	return &App{Engine: r, Dispatcher: dispatcher}, nil
}
