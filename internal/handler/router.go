package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matrischol-api/internal/middleware"
	"github.com/noah-isme/matrischol-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Profiles      *ProfileHandler
	Documents     *DocumentHandler
	Catalog       *CatalogHandler
	Subjects      *SubjectHandler
	Schedules     *ScheduleHandler
	Enrollments   *EnrollmentHandler
	Approvals     *ApprovalHandler
	Notifications *NotificationHandler
	Audit         *AuditHandler
	Geocode       *GeocodeHandler
}

// RouteOptions carries the collaborators the route table needs besides handlers.
type RouteOptions struct {
	Tokens middleware.TokenValidator
	Audit  middleware.AuditDispatcher
}

// RegisterRoutes mounts the API on group. Authorization is resolved from the capability
// table; services still apply ownership checks.
func RegisterRoutes(group *gin.RouterGroup, h Handlers, opts RouteOptions) {
	can := middleware.RequireCapability

	auth := group.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/register", h.Auth.Register)

	// download tokens carry their own authorization
	group.GET("/documents/download", h.Documents.Download)

	api := group.Group("")
	api.Use(middleware.JWT(opts.Tokens))

	api.POST("/auth/logout", h.Auth.Logout)
	api.POST("/auth/change-password", h.Auth.ChangePassword)
	api.GET("/me", h.Auth.Me)

	users := api.Group("/users", can(models.CapManageUsers))
	users.GET("", h.Users.List)
	users.POST("", h.Users.Create)
	users.PUT("/:id", h.Users.Update)
	users.DELETE("/:id", h.Users.Delete)

	guardians := api.Group("/guardians", can(models.CapManageOwnStudents))
	guardians.GET("/me", h.Profiles.GetGuardian)
	guardians.PUT("/me", h.Profiles.UpdateGuardian)

	students := api.Group("/students")
	students.GET("", can(models.CapManageOwnStudents), h.Profiles.ListStudents)
	students.POST("", can(models.CapManageOwnStudents), h.Profiles.CreateStudent)
	students.GET("/:id", h.Profiles.GetStudent)
	students.PUT("/:id/photo", h.Profiles.UploadPhoto)
	students.GET("/:id/documents", h.Documents.List)
	students.POST("/:id/documents", h.Documents.Save)
	students.GET("/:id/documents/status", h.Documents.Status)
	api.POST("/documents/:id/link", h.Documents.Link)

	institutions := api.Group("/institutions")
	institutions.GET("", h.Catalog.SearchInstitutions)
	institutions.GET("/:id", h.Catalog.GetInstitution)
	institutions.POST("", can(models.CapManageUsers, models.CapManageInstitutions), h.Catalog.CreateInstitution)
	institutions.PUT("/:id", can(models.CapManageInstitutions), h.Catalog.UpdateInstitution)
	institutions.POST("/:id/duplicate-slots", can(models.CapManageInstitutions), h.Catalog.SetDuplicateSlots)
	institutions.GET("/:id/courses", h.Catalog.ListCourses)
	institutions.POST("/:id/courses", can(models.CapManageCourses), h.Catalog.CreateCourse)
	institutions.POST("/:id/courses/provision", can(models.CapManageCourses), h.Catalog.Provision)
	institutions.DELETE("/:id/courses", can(models.CapManageCourses), h.Catalog.ClearCourses)
	institutions.GET("/:id/courses/export", can(models.CapManageCourses), h.Catalog.ExportCourses)

	courses := api.Group("/courses")
	courses.PUT("/:id/seats", can(models.CapManageCourses), h.Catalog.UpdateSeats)
	courses.GET("/:id/schedule", h.Schedules.List)
	courses.POST("/:id/schedule", can(models.CapManageSchedules), h.Schedules.Create)
	api.DELETE("/schedule-slots/:id", can(models.CapManageSchedules), h.Schedules.Delete)

	api.GET("/subjects", h.Subjects.List)
	api.POST("/subjects", can(models.CapManageSchedules), h.Subjects.Create)

	requests := api.Group("/enrollment-requests")
	requests.POST("", can(models.CapSubmitEnrollmentRequests), h.Enrollments.Create)
	requests.GET("", h.Enrollments.List)
	requests.POST("/expire", can(models.CapRunExpirySweep),
		middleware.Audit(opts.Audit, models.AuditActionUpdate, "EnrollmentRequest"), h.Enrollments.Expire)
	requests.GET("/:id", h.Enrollments.Get)
	requests.POST("/:id/actions", can(models.CapReviewEnrollmentRequests), h.Enrollments.Review)
	api.GET("/enrollments/:id/certificate", h.Enrollments.Certificate)

	instRequests := api.Group("/institution-requests")
	instRequests.POST("", can(models.CapSubmitInstitutionRequests), h.Approvals.SubmitInstitution)
	instRequests.GET("", h.Approvals.ListInstitutionRequests)
	instRequests.GET("/:id", h.Approvals.GetInstitutionRequest)
	instRequests.POST("/:id/review", can(models.CapReviewInstitutionRequests), h.Approvals.ReviewInstitution)

	courseRequests := api.Group("/course-requests")
	courseRequests.POST("", can(models.CapSubmitCourseRequests), h.Approvals.SubmitCourses)
	courseRequests.GET("", h.Approvals.ListCourseRequests)
	courseRequests.GET("/:id", h.Approvals.GetCourseRequest)
	courseRequests.POST("/:id/review", can(models.CapReviewCourseRequests), h.Approvals.ReviewCourses)

	notifications := api.Group("/notifications", can(models.CapViewNotifications))
	notifications.GET("", h.Notifications.List)
	notifications.POST("/read-all", h.Notifications.MarkAllRead)
	notifications.POST("/:id/read", h.Notifications.MarkRead)

	audit := api.Group("/audit-logs", can(models.CapViewAuditLog))
	audit.GET("", h.Audit.List)
	audit.GET("/export", middleware.Audit(opts.Audit, models.AuditActionExport, "AdminActionLog"), h.Audit.Export)

	api.GET("/geocode/search", h.Geocode.Search)
	api.GET("/geocode/reverse", h.Geocode.Reverse)
}
