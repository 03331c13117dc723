package scenario

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/thejadex/RE-VLab/core"
)

// Difficulties
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// StatusNotStarted annotates an active scenario the student has not opened yet.
const StatusNotStarted = "not_started"

var Difficulties = []string{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced}

type Scenario struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Difficulty   string    `json:"difficulty"`
	Introduction string    `json:"introduction"`
	Aim          string    `json:"aim"`
	Objectives   string    `json:"objectives"`
	Description  string    `json:"description"`
	IsActive     bool      `json:"is_active"`
	CreatedBy    int64     `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// Listed is an active scenario as seen by one student.
type Listed struct {
	Scenario
	SubmissionID     int64  `json:"submission_id,omitempty"`
	SubmissionStatus string `json:"submission_status"`
}

// Data contains the fields an admin sets on a scenario.
type Data struct {
	Title        string `json:"title" validate:"required,max=200"`
	Difficulty   string `json:"difficulty" validate:"oneof=beginner intermediate advanced"`
	Introduction string `json:"introduction" validate:"required"`
	Aim          string `json:"aim" validate:"required"`
	Objectives   string `json:"objectives" validate:"required"`
	Description  string `json:"description" validate:"required"`
	IsActive     *bool  `json:"is_active"`
}

func (d *Data) Validate(validate *validator.Validate) error {
	d.Title = core.CleanString(d.Title)
	d.Difficulty = core.CleanString(d.Difficulty, true /* lower */)
	if d.Difficulty == "" {
		d.Difficulty = DifficultyIntermediate
	}
	d.Introduction = core.CleanString(d.Introduction)
	d.Aim = core.CleanString(d.Aim)
	d.Objectives = core.CleanString(d.Objectives)
	d.Description = core.CleanString(d.Description)
	if d.IsActive == nil {
		active := true
		d.IsActive = &active
	}
	return validate.Struct(d)
}

func (d Data) apply(sc *Scenario) {
	sc.Title = d.Title
	sc.Difficulty = d.Difficulty
	sc.Introduction = d.Introduction
	sc.Aim = d.Aim
	sc.Objectives = d.Objectives
	sc.Description = d.Description
	sc.IsActive = d.IsActive == nil || *d.IsActive
}

type GetFilter struct {
	ID         int64
	ActiveOnly bool
}

// QueryFilter applies AND on the set fields. Results are ordered by newest first.
type QueryFilter struct {
	ActiveOnly bool
	CreatedBy  int64
	Limit      int
}
