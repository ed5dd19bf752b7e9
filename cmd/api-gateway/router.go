package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-records-api/internal/middleware"
	"github.com/noah-isme/sis-records-api/internal/models"
	"github.com/noah-isme/sis-records-api/pkg/config"
	"github.com/noah-isme/sis-records-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sis-records-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sis-records-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, app *application, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, userFields))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(app.metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", app.probes.Health)
	r.GET("/ready", app.probes.Ready)
	r.GET("/metrics", app.probes.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Signed download links carry their own authorisation.
	if app.reportsAPI != nil {
		api.GET("/export/:token", app.reportsAPI.DownloadReport)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(app.auth))

	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleAdviser, models.RoleTeacher)
	records := middleware.RequireRoles(models.RoleAdmin, models.RoleAdviser)

	secured.GET("/students", staff, app.students.List)
	secured.POST("/students", admin, app.students.Create)
	secured.GET("/students/:id", staff, app.students.Get)
	secured.GET("/students/:id/sf10", records, app.cards.SF10)

	secured.GET("/sections", staff, app.sections.List)
	secured.POST("/sections", admin, app.sections.Create)
	secured.GET("/sections/:id", staff, app.sections.Get)

	secured.GET("/subjects", staff, app.subjects.List)
	secured.POST("/subjects", admin, app.subjects.Create)
	secured.GET("/subjects/:id", staff, app.subjects.Get)
	secured.PUT("/subjects/:id/scheme", admin, app.subjects.UpdateScheme)

	secured.GET("/enrollments", staff, app.enrollments.List)
	secured.POST("/enrollments", admin, app.enrollments.Enroll)
	secured.GET("/enrollments/:id", staff, app.enrollments.Get)
	secured.PUT("/enrollments/:id/subjects", admin, app.enrollments.UpdateSubjects)
	secured.POST("/enrollments/:id/drop", admin, app.enrollments.Drop)
	secured.GET("/enrollments/:id/summary", staff, app.grades.Summary)
	secured.GET("/enrollments/:id/promotion", records, app.promotions.Preview)
	secured.POST("/enrollments/:id/promotion", records, app.promotions.Commit)
	secured.GET("/enrollments/:id/remedials", records, app.promotions.ListRemedials)
	secured.POST("/enrollments/:id/remedials", records, app.promotions.SaveRemedials)
	secured.GET("/enrollments/:id/attendance", staff, app.attendance.Get)
	secured.PUT("/enrollments/:id/attendance", records, app.attendance.Upsert)
	secured.GET("/enrollments/:id/sf9", records, app.cards.SF9)

	secured.GET("/grades/:recordId", staff, app.grades.GetRecord)
	secured.PUT("/grades/:recordId/quarters/:quarter", staff, app.grades.RecordQuarter)
	secured.PUT("/grades/:recordId/quarters/:quarter/components", staff, app.grades.RecordComponents)
	secured.POST("/grades/:recordId/interventions", staff, app.grades.AddIntervention)

	if app.reportsAPI != nil {
		secured.POST("/reports/generate", records, app.reportsAPI.GenerateReport)
		secured.GET("/reports/status/:id", records, app.reportsAPI.ReportStatus)
	}

	return r
}

func userFields(c *gin.Context) []zap.Field {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		return nil
	}
	return []zap.Field{zap.String("user_id", claims.UserID), zap.String("role", string(claims.Role))}
}
