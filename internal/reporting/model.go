package reporting

import "github.com/google/uuid"

// Stats is the finance dashboard aggregate. All figures describe the
// same snapshot of the visit and user tables.
type Stats struct {
	TotalVisits      int64        `json:"total_visits"`
	CompletedVisits  int64        `json:"completed_visits"`
	PendingVisits    int64        `json:"pending_visits"`
	InProgressVisits int64        `json:"in_progress_visits"`
	TotalRevenue     float64      `json:"total_revenue"`
	AverageVisitCost float64      `json:"average_visit_cost"`
	TotalPatients    int64        `json:"total_patients"`
	TotalDoctors     int64        `json:"total_doctors"`
	TopDoctors       []DoctorLoad `json:"top_doctors"`
}

// DoctorLoad is one entry of the busiest-doctors ranking.
type DoctorLoad struct {
	DoctorID   uuid.UUID `json:"doctor_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	VisitCount int64     `json:"visit_count"`
}
