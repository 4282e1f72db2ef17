package http

import (
	"encoding/json"
	"time"
)

type logWorkHourRequest struct {
	ProjectID string    `json:"project_id" validate:"required,entity_id,min=1,max=100"`
	Date      time.Time `json:"date" validate:"required"`
	// Bulk entries covering several days of work are allowed, so the
	// hours are not capped at a single calendar day.
	HoursWorked float64 `json:"hours_worked" validate:"required,gt=0"`
	Description string  `json:"description" validate:"max=1000"`
}

type completeProjectRequest struct {
	ConfirmEmpty bool `json:"confirm_empty"`
}

type fileStrikeReportRequest struct {
	StudentID string  `json:"student_id" validate:"required,entity_id,min=1,max=100"`
	ProjectID *string `json:"project_id" validate:"omitempty,entity_id,min=1,max=100"`
	Reason    string  `json:"reason" validate:"required,min=5,max=1000"`
	Severity  string  `json:"severity" validate:"required,oneof=low medium high"`
}

type reviewStrikeReportRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
}

type setApiLevelRequest struct {
	Level int `json:"level" validate:"required,min=1,max=4"`
}

// updateStudentProfileRequest keeps api_level as a raw presence marker: the
// field is rejected whenever a client sends it, whatever the value.
type updateStudentProfileRequest struct {
	TrlLevel *int             `json:"trl_level" validate:"omitempty,min=1,max=9"`
	ApiLevel *json.RawMessage `json:"api_level"`
}
