package models

// Capability names one permission resolved from a role at the HTTP boundary.
type Capability string

const (
	CapManageUsers               Capability = "manage_users"
	CapReviewInstitutionRequests Capability = "review_institution_requests"
	CapReviewCourseRequests      Capability = "review_course_requests"
	CapSubmitInstitutionRequests Capability = "submit_institution_requests"
	CapSubmitCourseRequests      Capability = "submit_course_requests"
	CapManageInstitutions        Capability = "manage_institutions"
	CapManageCourses             Capability = "manage_courses"
	CapManageSchedules           Capability = "manage_schedules"
	CapReviewEnrollmentRequests  Capability = "review_enrollment_requests"
	CapSubmitEnrollmentRequests  Capability = "submit_enrollment_requests"
	CapManageOwnStudents         Capability = "manage_own_students"
	CapViewNotifications         Capability = "view_notifications"
	CapViewAuditLog              Capability = "view_audit_log"
	CapRunExpirySweep            Capability = "run_expiry_sweep"
)

// RoleCapabilities is the single authorization table for the API.
var RoleCapabilities = map[UserRole][]Capability{
	RoleAdmin: {
		CapManageUsers,
		CapReviewInstitutionRequests,
		CapReviewCourseRequests,
		CapManageInstitutions,
		CapManageCourses,
		CapManageSchedules,
		CapReviewEnrollmentRequests,
		CapViewNotifications,
		CapViewAuditLog,
		CapRunExpirySweep,
	},
	RoleStaff: {
		CapSubmitInstitutionRequests,
		CapSubmitCourseRequests,
		CapManageInstitutions,
		CapManageCourses,
		CapManageSchedules,
		CapReviewEnrollmentRequests,
		CapViewNotifications,
	},
	RoleGuardian: {
		CapSubmitEnrollmentRequests,
		CapManageOwnStudents,
		CapViewNotifications,
	},
	RoleTeacher: {
		CapViewNotifications,
	},
}

// Can reports whether the role holds capability c.
func (r UserRole) Can(c Capability) bool {
	for _, granted := range RoleCapabilities[r] {
		if granted == c {
			return true
		}
	}
	return false
}
