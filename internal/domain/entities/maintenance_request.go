package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RequestStatus is the lifecycle state of a maintenance request
type RequestStatus string

const (
	StatusPending    RequestStatus = "Pending"
	StatusInProgress RequestStatus = "In Progress"
	StatusCompleted  RequestStatus = "Completed"
	StatusCancelled  RequestStatus = "Cancelled"
	StatusReviewed   RequestStatus = "Reviewed"
)

// RequestStatuses lists every status in display order.
var RequestStatuses = []RequestStatus{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled, StatusReviewed}

// IsValid reports whether s is a known status
func (s RequestStatus) IsValid() bool {
	for _, known := range RequestStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTransitionTarget reports whether s can be set through a status update.
// Cancelled and Reviewed are only written by direct data fixes.
func (s RequestStatus) IsTransitionTarget() bool {
	return s == StatusPending || s == StatusInProgress || s == StatusCompleted
}

// RequestCategory is the kind of work requested
type RequestCategory string

const (
	CategoryPlumbing          RequestCategory = "Plumbing"
	CategoryElectrical        RequestCategory = "Electrical"
	CategoryHVAC              RequestCategory = "HVAC"
	CategoryCleaning          RequestCategory = "Cleaning"
	CategoryCarpentry         RequestCategory = "Carpentry"
	CategoryPersonnelServices RequestCategory = "Personnel Services"
	CategoryOthers            RequestCategory = "Others"
)

// RequestCategories lists the accepted categories
var RequestCategories = []RequestCategory{
	CategoryPlumbing, CategoryElectrical, CategoryHVAC, CategoryCleaning,
	CategoryCarpentry, CategoryPersonnelServices, CategoryOthers,
}

// IsValid reports whether c is a known category
func (c RequestCategory) IsValid() bool {
	for _, known := range RequestCategories {
		if c == known {
			return true
		}
	}
	return false
}

// UrgencyLevel ranks how soon the work is needed
type UrgencyLevel string

const (
	UrgencyEmergency UrgencyLevel = "Emergency"
	UrgencyHigh      UrgencyLevel = "High"
	UrgencyMedium    UrgencyLevel = "Medium"
	UrgencyLow       UrgencyLevel = "Low"
)

// UrgencyLevels lists the accepted urgency levels
var UrgencyLevels = []UrgencyLevel{UrgencyEmergency, UrgencyHigh, UrgencyMedium, UrgencyLow}

// IsValid reports whether u is a known urgency
func (u UrgencyLevel) IsValid() bool {
	for _, known := range UrgencyLevels {
		if u == known {
			return true
		}
	}
	return false
}

// WorkEvaluation is the quality rating recorded on completion
type WorkEvaluation string

const (
	EvaluationOutstanding      WorkEvaluation = "Outstanding"
	EvaluationVerySatisfactory WorkEvaluation = "Very Satisfactory"
	EvaluationSatisfactory     WorkEvaluation = "Satisfactory"
	EvaluationPoor             WorkEvaluation = "Poor"
)

// WorkEvaluations lists the accepted evaluations
var WorkEvaluations = []WorkEvaluation{EvaluationOutstanding, EvaluationVerySatisfactory, EvaluationSatisfactory, EvaluationPoor}

// IsValid reports whether e is a known evaluation
func (e WorkEvaluation) IsValid() bool {
	for _, known := range WorkEvaluations {
		if e == known {
			return true
		}
	}
	return false
}

// MaintenanceRequest is a unit of maintenance work reported by a user
type MaintenanceRequest struct {
	ID                string            `json:"id" db:"id"`
	Title             string            `json:"title" db:"title"`
	Description       string            `json:"description" db:"description"`
	SupportingReasons *string           `json:"supporting_reasons,omitempty" db:"supporting_reasons"`
	Category          RequestCategory   `json:"category" db:"category"`
	Urgency           UrgencyLevel      `json:"urgency" db:"urgency"`
	LocationBuilding  string            `json:"location_building" db:"location_building"`
	LocationRoom      *string           `json:"location_room,omitempty" db:"location_room"`
	Status            RequestStatus     `json:"status" db:"status"`
	RequesterID       string            `json:"requester_id" db:"requester_id"`
	ActionTaken       *string           `json:"action_taken,omitempty" db:"action_taken"`
	WorkEvaluation    *WorkEvaluation   `json:"work_evaluation,omitempty" db:"work_evaluation"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
	Requester         *RequesterSummary `json:"requester,omitempty" db:"-"`
}

// RequesterSummary is the requester information shown next to a request
type RequesterSummary struct {
	FullName   string      `json:"full_name"`
	Email      string      `json:"email"`
	VisualRole *VisualRole `json:"visual_role,omitempty"`
}

// SummaryFromProfile builds a RequesterSummary
func SummaryFromProfile(p *Profile) *RequesterSummary {
	if p == nil {
		return nil
	}
	return &RequesterSummary{
		FullName:   p.FullName,
		Email:      p.EmailAddress(),
		VisualRole: p.VisualRole,
	}
}

// IsTerminal reports whether the request sits on a side branch that status
// updates may not leave.
func (r *MaintenanceRequest) IsTerminal() bool {
	return r.Status == StatusCancelled || r.Status == StatusReviewed
}

// CreateRequestInput is the submission form for a new request
type CreateRequestInput struct {
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	SupportingReasons string          `json:"supporting_reasons,omitempty"`
	Category          RequestCategory `json:"category"`
	Urgency           UrgencyLevel    `json:"urgency"`
	LocationBuilding  string          `json:"location_building"`
	LocationRoom      string          `json:"location_room,omitempty"`
}

// Validate trims the form and checks required fields and enumerations
func (in *CreateRequestInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.SupportingReasons = strings.TrimSpace(in.SupportingReasons)
	in.LocationBuilding = strings.TrimSpace(in.LocationBuilding)
	in.LocationRoom = strings.TrimSpace(in.LocationRoom)

	if in.Title == "" || in.Description == "" || in.Category == "" || in.Urgency == "" || in.LocationBuilding == "" {
		return errors.New("All required fields must be filled")
	}
	if len(in.Title) > 200 {
		return errors.New("title is too long")
	}
	if !in.Category.IsValid() {
		return fmt.Errorf("invalid category %q", in.Category)
	}
	if !in.Urgency.IsValid() {
		return fmt.Errorf("invalid urgency %q", in.Urgency)
	}
	return nil
}

// ToRequest builds a new Pending request owned by requesterID
func (in *CreateRequestInput) ToRequest(id, requesterID string, now time.Time) *MaintenanceRequest {
	req := &MaintenanceRequest{
		ID:               id,
		Title:            in.Title,
		Description:      in.Description,
		Category:         in.Category,
		Urgency:          in.Urgency,
		LocationBuilding: in.LocationBuilding,
		Status:           StatusPending,
		RequesterID:      requesterID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if in.SupportingReasons != "" {
		reasons := in.SupportingReasons
		req.SupportingReasons = &reasons
	}
	if in.LocationRoom != "" {
		room := in.LocationRoom
		req.LocationRoom = &room
	}
	return req
}

// StatusUpdate is an admin transition. Completion fields are required when
// Status is Completed and ignored otherwise.
type StatusUpdate struct {
	Status         RequestStatus  `json:"status"`
	ActionTaken    string         `json:"action_taken,omitempty"`
	WorkEvaluation WorkEvaluation `json:"work_evaluation,omitempty"`
}

// Validate checks the target status and completion fields
func (u *StatusUpdate) Validate() error {
	u.ActionTaken = strings.TrimSpace(u.ActionTaken)
	if !u.Status.IsTransitionTarget() {
		return errors.New("Invalid status")
	}
	if u.Status != StatusCompleted {
		return nil
	}
	if u.ActionTaken == "" {
		return errors.New("action_taken is required to complete a request")
	}
	if !u.WorkEvaluation.IsValid() {
		return errors.New("work_evaluation must be one of Outstanding, Very Satisfactory, Satisfactory, Poor")
	}
	return nil
}

// Apply mutates r according to the update. Leaving Completed clears the
// completion timestamp but keeps the recorded action and evaluation.
func (u *StatusUpdate) Apply(r *MaintenanceRequest, now time.Time) {
	r.Status = u.Status
	r.UpdatedAt = now
	if u.Status == StatusCompleted {
		action := u.ActionTaken
		evaluation := u.WorkEvaluation
		r.ActionTaken = &action
		r.WorkEvaluation = &evaluation
		r.CompletedAt = &now
		return
	}
	r.CompletedAt = nil
}

// RequestFilter narrows admin request listings
type RequestFilter struct {
	RequesterID string
	Status      RequestStatus
	Category    RequestCategory
	Urgency     UrgencyLevel
	Limit       int
	Offset      int
}
