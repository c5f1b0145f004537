package dto

// AdminDashboardResponse carries system-wide counters.
type AdminDashboardResponse struct {
	TotalStudents int `json:"total_students"`
	TotalTeachers int `json:"total_teachers"`
	TotalClasses  int `json:"total_classes"`
	TotalSubjects int `json:"total_subjects"`
	TotalLessons  int `json:"total_lessons"`
}

// TeacherDashboardResponse summarises the caller's teaching load.
type TeacherDashboardResponse struct {
	MySubjects    int `json:"my_subjects"`
	TodayLessons  int `json:"today_lessons"`
	TotalStudents int `json:"total_students"`
}

// StudentDashboardResponse summarises the caller's enrollment and
// attendance rate (percentage, two decimal places, 0 when no lessons).
type StudentDashboardResponse struct {
	MyClasses        int     `json:"my_classes"`
	TodayLessons     int     `json:"today_lessons"`
	MyAttendanceRate float64 `json:"my_attendance_rate"`
}
