package submission

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/thejadex/RE-VLab/core"
	"github.com/thejadex/RE-VLab/core/scenario"
)

// Statuses. A submission only moves forward: draft -> submitted -> feedback_received.
const (
	StatusDraft            = "draft"
	StatusSubmitted        = "submitted"
	StatusFeedbackReceived = "feedback_received"
)

// Requirement types
const (
	TypeFunctional    = "functional"
	TypeNonFunctional = "non_functional"
	TypeBusiness      = "business"
)

// Priorities
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Feedback types
const (
	FeedbackGeneral       = "general"
	FeedbackClarification = "clarification"
	FeedbackImprovement   = "improvement"
)

const AdminPageSize = 12

var (
	Statuses         = []string{StatusDraft, StatusSubmitted, StatusFeedbackReceived}
	RequirementTypes = []string{TypeFunctional, TypeNonFunctional, TypeBusiness}
)

type Submission struct {
	ID          int64      `json:"id"`
	ScenarioID  int64      `json:"scenario_id"`
	StudentID   int64      `json:"student_id"`
	Status      string     `json:"status"`
	SubmittedAt *time.Time `json:"submitted_at"` // UTC, set once on submit
	CreatedAt   time.Time  `json:"created_at"`   // UTC
	UpdatedAt   time.Time  `json:"updated_at"`   // UTC
}

func (s Submission) IsDraft() bool { return s.Status == StatusDraft }

// Summary is a submission joined with what listings display about it.
type Summary struct {
	Submission
	ScenarioTitle    string `json:"scenario_title"`
	StudentUsername  string `json:"student_username"`
	StudentName      string `json:"student_name"`
	RequirementCount int    `json:"requirement_count"`
}

type Requirement struct {
	ID           int64     `json:"id"`
	SubmissionID int64     `json:"submission_id"`
	Type         string    `json:"requirement_type"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Priority     string    `json:"priority"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

type RequirementData struct {
	Type        string `json:"requirement_type" validate:"required,oneof=functional non_functional business"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
	Priority    string `json:"priority" validate:"oneof=high medium low"`
}

func (d *RequirementData) Validate(validate *validator.Validate) error {
	d.Type = core.CleanString(d.Type, true /* lower */)
	d.Title = core.CleanString(d.Title)
	d.Description = core.CleanString(d.Description)
	d.Priority = core.CleanString(d.Priority, true /* lower */)
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	return validate.Struct(d)
}

func (d RequirementData) apply(req *Requirement) {
	req.Type = d.Type
	req.Title = d.Title
	req.Description = d.Description
	req.Priority = d.Priority
}

// Grouped holds requirements split by type, each group newest first.
type Grouped struct {
	Functional    []Requirement `json:"functional"`
	NonFunctional []Requirement `json:"non_functional"`
	Business      []Requirement `json:"business"`
}

func GroupRequirements(reqs []Requirement) Grouped {
	g := Grouped{
		Functional:    []Requirement{},
		NonFunctional: []Requirement{},
		Business:      []Requirement{},
	}
	for _, r := range reqs {
		switch r.Type {
		case TypeFunctional:
			g.Functional = append(g.Functional, r)
		case TypeNonFunctional:
			g.NonFunctional = append(g.NonFunctional, r)
		case TypeBusiness:
			g.Business = append(g.Business, r)
		}
	}
	return g
}

func (g Grouped) Len() int {
	return len(g.Functional) + len(g.NonFunctional) + len(g.Business)
}

type Feedback struct {
	ID            int64     `json:"id"`
	SubmissionID  int64     `json:"submission_id"`
	Type          string    `json:"feedback_type"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	AdminID       int64     `json:"admin_id"`
	IsRead        bool      `json:"is_read"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	ScenarioTitle string    `json:"scenario_title,omitempty"`
}

type FeedbackData struct {
	Type    string `json:"feedback_type" validate:"required,oneof=general clarification improvement"`
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required"`
}

func (d *FeedbackData) Validate(validate *validator.Validate) error {
	d.Type = core.CleanString(d.Type, true /* lower */)
	d.Title = core.CleanString(d.Title)
	d.Content = core.CleanString(d.Content)
	return validate.Struct(d)
}

type SRSDocument struct {
	ID                            int64     `json:"id,omitempty"`
	SubmissionID                  int64     `json:"submission_id"`
	Introduction                  string    `json:"introduction"`
	OverallDescription            string    `json:"overall_description"`
	SystemFeatures                string    `json:"system_features"`
	ExternalInterfaceRequirements string    `json:"external_interface_requirements"`
	NonFunctionalRequirements     string    `json:"non_functional_requirements"`
	OtherRequirements             string    `json:"other_requirements"`
	CreatedAt                     time.Time `json:"created_at"` // UTC
	UpdatedAt                     time.Time `json:"updated_at"` // UTC
}

// SRSData holds the six free text sections; all of them may be blank.
type SRSData struct {
	Introduction                  string `json:"introduction"`
	OverallDescription            string `json:"overall_description"`
	SystemFeatures                string `json:"system_features"`
	ExternalInterfaceRequirements string `json:"external_interface_requirements"`
	NonFunctionalRequirements     string `json:"non_functional_requirements"`
	OtherRequirements             string `json:"other_requirements"`
}

func (d SRSData) apply(doc *SRSDocument) {
	doc.Introduction = d.Introduction
	doc.OverallDescription = d.OverallDescription
	doc.SystemFeatures = d.SystemFeatures
	doc.ExternalInterfaceRequirements = d.ExternalInterfaceRequirements
	doc.NonFunctionalRequirements = d.NonFunctionalRequirements
	doc.OtherRequirements = d.OtherRequirements
}

// Workspace is what the scenario detail page shows: the student's own submission, or the bare scenario for admins.
type Workspace struct {
	Scenario     scenario.Scenario `json:"scenario"`
	IsAdminView  bool              `json:"is_admin_view"`
	Submission   *Submission       `json:"submission"`
	Requirements Grouped           `json:"requirements"`
}

type Detail struct {
	Submission   Summary      `json:"submission"`
	Requirements Grouped      `json:"requirements"`
	Feedback     []Feedback   `json:"feedback"`
	SRS          *SRSDocument `json:"srs_document"`
}

type StatusCounts struct {
	Draft            int `json:"draft"`
	Submitted        int `json:"submitted"`
	FeedbackReceived int `json:"feedback_received"`
}

func (c StatusCounts) Total() int { return c.Draft + c.Submitted + c.FeedbackReceived }

type ScenarioStat struct {
	ScenarioID int64  `json:"scenario_id"`
	Title      string `json:"title"`
	Total      int    `json:"total"`
	Submitted  int    `json:"submitted"`
	Draft      int    `json:"draft"`
}

type AdminStats struct {
	Total     int `json:"total_submissions"`
	Pending   int `json:"pending_reviews"`
	Completed int `json:"completed_reviews"`
	Draft     int `json:"draft_submissions"`
}

type AdminListFilter struct {
	Status     string
	ScenarioID int64
	Search     string
	Page       int
}

type AdminList struct {
	Submissions   []Summary      `json:"submissions"`
	Page          core.Page      `json:"page"`
	Stats         AdminStats     `json:"stats"`
	ScenarioStats []ScenarioStat `json:"scenario_stats"`
	Recent        []Summary      `json:"recent_submissions"`
}

type GetFilter struct {
	ID        int64
	ForUpdate bool // lock the row until the transaction ends
}

// QueryFilter applies AND on the set fields.
// Search does a case-insensitive match on the student's username, first or last name, or the scenario title.
type QueryFilter struct {
	ID         int64
	StudentID  int64
	ScenarioID int64
	Statuses   []string
	Search     string
	OrderBy    core.DBOrdering // updated_at (default) or submitted_at
	Limit      int
	Offset     int
}

type FeedbackFilter struct {
	SubmissionID int64
	AdminID      int64
	Limit        int
}
