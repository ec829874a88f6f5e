// Package model contains domain models passed between layers.
package model

import "time"

// Role identifies a user's access level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User identifies the authenticated account.
type User struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsAdmin reports whether the user holds the administrator role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Session is the client's belief about current authentication state.
// Owned exclusively by the session controller; read-only elsewhere.
type Session struct {
	Authenticated bool
	User          *User
}

// Anonymous returns the cleared session state.
func Anonymous() Session {
	return Session{}
}

// Student is one roster record as stored by the backend.
// Fields mirror the /students payload.
type Student struct {
	ID                   int      `json:"id"`
	UserID               string   `json:"user_id"`
	Name                 string   `json:"name"`
	WeeklySelfStudyHours float64  `json:"weekly_self_study_hours"`
	AttendancePercentage float64  `json:"attendance_percentage"`
	ClassParticipation   float64  `json:"class_participation"`
	CreatedBy            string   `json:"created_by"`
	PredictedGrade       *string  `json:"predicted_grade"`
	PredictedScore       *float64 `json:"predicted_score"`
}

// StudentForm carries the user-entered fields for create and update.
// JSON keys match the backend's inbound field names.
type StudentForm struct {
	UserID        string  `json:"user_id" validate:"required"`
	Name          string  `json:"name" validate:"required"`
	Study         float64 `json:"study" validate:"gte=0"`
	Attendance    float64 `json:"attendance" validate:"gte=0,lte=100"`
	Participation float64 `json:"participation" validate:"gte=0"`
}

// PredictionResult is the one-shot output of a prediction request,
// consumed by exactly one result view render.
type PredictionResult struct {
	StudentName string  `json:"student_name"`
	Grade       string  `json:"grade"`
	Score       float64 `json:"score"`
	Confidence  float64 `json:"confidence"`
}

// HistoryEntry is one past prediction as returned by /history.
type HistoryEntry struct {
	ID          int     `json:"id"`
	StudentID   int     `json:"student_id"`
	StudentName string  `json:"student_name"`
	Grade       string  `json:"grade"`
	Score       float64 `json:"score"`
	Confidence  float64 `json:"confidence"`
	CreatedAt   string  `json:"created_at"`
}

// CreatedAtTime parses the entry timestamp. The backend emits naive ISO-8601
// without a zone offset, which RFC 3339 parsing alone rejects.
func (h *HistoryEntry) CreatedAtTime() (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
	}
	var err error
	for _, layout := range layouts {
		var ts time.Time
		if ts, err = time.Parse(layout, h.CreatedAt); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, err
}

// DashboardStats is the aggregate card payload from /dashboard-stats.
// AverageConfidence is a 0-100 percentage, already scaled server-side.
type DashboardStats struct {
	TotalStudents      int     `json:"total_students"`
	TotalPredictions   int     `json:"total_predictions"`
	AverageConfidence  float64 `json:"average_confidence"`
	LastPredictionTime string  `json:"last_prediction_time"`
}

// GradeCount is one slice of the grade distribution chart.
type GradeCount struct {
	Grade string `json:"grade"`
	Count int    `json:"count"`
}

// DateCount is one point of the predictions-over-time chart.
type DateCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DashboardCharts is the chart payload from /dashboard-charts.
type DashboardCharts struct {
	GradeDistribution []GradeCount `json:"gradeDistribution"`
	Timeline          []DateCount  `json:"timeline"`
}
