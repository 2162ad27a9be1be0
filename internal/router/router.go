package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-results/internal/config"
	"github.com/stemsi/exstem-results/internal/handler"
	"github.com/stemsi/exstem-results/internal/metrics"
	"github.com/stemsi/exstem-results/internal/middleware"
	"github.com/stemsi/exstem-results/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Result        *handler.ResultHandler
	Evaluation    *handler.EvaluationHandler
	StudentResult *handler.StudentResultHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	verifier *middleware.TokenVerifier,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(metrics.MetricsMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.PrometheusHandler())

	api := router.Group("/api/v1")

	// ─── Admin Group ───────────────────────────────────────────────────
	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdminJWT(verifier), middleware.NoStore())
	{
		exams := admin.Group("/exams/:exam_id")
		exams.GET("/results",
			middleware.RequireAnyPermission(middleware.PermResultsRead, middleware.PermResultsRelease),
			handlers.Result.ListResults)
		exams.POST("/release",
			middleware.RequirePermission(middleware.PermResultsRelease),
			handlers.Result.ReleaseResults)
		exams.POST("/reevaluate",
			middleware.RequirePermission(middleware.PermResultsGrade),
			handlers.Result.ReevaluateExam)

		subs := admin.Group("/submissions/:submission_id")
		subs.Use(middleware.RequirePermission(middleware.PermResultsGrade))
		subs.POST("/evaluate", handlers.Evaluation.EvaluateSubmission)
		subs.PUT("/manual-marks", handlers.Evaluation.SaveManualMarks)
	}

	// ─── Student Group ─────────────────────────────────────────────────
	student := api.Group("/student")
	student.Use(middleware.RequireStudentJWT(verifier), middleware.NoStore())
	if cfg.StudentRateLimit > 0 {
		student.Use(middleware.NewRateLimiter(cfg.StudentRateLimit, time.Minute).Middleware())
	}
	{
		student.GET("/exams/:exam_id/submission", handlers.StudentResult.GetSubmission)
		student.GET("/exams/:exam_id/result", handlers.StudentResult.GetResult)
	}

	return router
}
