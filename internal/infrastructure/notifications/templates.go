package notifications

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/google/uuid"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/entities"
)

const footer = "This is an automated notification from the Maintenance Facility Management System."

var newRequestHTML = htmltemplate.Must(htmltemplate.New("new_request").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333; border-bottom: 2px solid #007bff; padding-bottom: 10px;">New Maintenance Request</h2>
  <div style="background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
    <h3 style="color: #495057; margin-top: 0;">Request Details:</h3>
    <ul style="list-style: none; padding: 0;">
      <li><strong>Request ID:</strong> {{.Request.ID}}</li>
      <li><strong>Title:</strong> {{.Request.Title}}</li>
      <li><strong>Requester:</strong> {{.RequesterName}}</li>
      <li><strong>Category:</strong> {{.Request.Category}}</li>
      <li><strong>Urgency:</strong> {{.Request.Urgency}}</li>
      <li><strong>Location:</strong> {{.Location}}</li>
      <li><strong>Description:</strong> {{.Request.Description}}</li>
    </ul>
  </div>
  <div style="text-align: center; margin: 30px 0;">
    <a href="{{.DashboardURL}}" style="background-color: #007bff; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; display: inline-block;">View in Admin Dashboard</a>
  </div>
  <p style="color: #6c757d; font-size: 12px; text-align: center;">{{.Footer}}</p>
</div>`))

var newRequestText = texttemplate.Must(texttemplate.New("new_request").Parse(`New Maintenance Request

Request ID: {{.Request.ID}}
Title: {{.Request.Title}}
Requester: {{.RequesterName}}
Category: {{.Request.Category}}
Urgency: {{.Request.Urgency}}
Location: {{.Location}}
Description: {{.Request.Description}}

View in Admin Dashboard: {{.DashboardURL}}
`))

var completedHTML = htmltemplate.Must(htmltemplate.New("request_completed").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #28a745; border-bottom: 2px solid #28a745; padding-bottom: 10px;">Maintenance Request Completed</h2>
  <div style="background-color: #d4edda; padding: 15px; border-radius: 5px; margin: 20px 0;">
    <p style="color: #155724; margin: 0;">Dear {{.RequesterName}},</p>
    <p style="color: #155724; margin: 10px 0;">Your maintenance request has been completed successfully.</p>
  </div>
  <div style="background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
    <h3 style="color: #495057; margin-top: 0;">Request Details:</h3>
    <ul style="list-style: none; padding: 0;">
      <li><strong>Request ID:</strong> {{.Request.ID}}</li>
      <li><strong>Title:</strong> {{.Request.Title}}</li>
      <li><strong>Description:</strong> {{.Request.Description}}</li>
      {{with .Request.ActionTaken}}<li><strong>Action Taken:</strong> {{.}}</li>{{end}}
      {{with .Request.WorkEvaluation}}<li><strong>Work Evaluation:</strong> {{.}}</li>{{end}}
    </ul>
  </div>
  <div style="text-align: center; margin: 30px 0;">
    <a href="{{.DashboardURL}}" style="background-color: #28a745; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; display: inline-block;">View in Dashboard</a>
  </div>
  <p style="color: #6c757d; font-size: 12px; text-align: center;">{{.Footer}}</p>
</div>`))

var completedText = texttemplate.Must(texttemplate.New("request_completed").Parse(`Maintenance Request Completed

Dear {{.RequesterName}},

Your maintenance request has been completed successfully.

Request ID: {{.Request.ID}}
Title: {{.Request.Title}}
Description: {{.Request.Description}}
{{with .Request.ActionTaken}}Action Taken: {{.}}
{{end}}{{with .Request.WorkEvaluation}}Work Evaluation: {{.}}
{{end}}
View in Dashboard: {{.DashboardURL}}
`))

type emailData struct {
	Request       *entities.MaintenanceRequest
	RequesterName string
	Location      string
	DashboardURL  string
	Footer        string
}

// Renderer builds the outbound emails
type Renderer struct {
	siteURL string
	now     func() time.Time
}

// NewRenderer creates a renderer linking back to siteURL
func NewRenderer(siteURL string) *Renderer {
	return &Renderer{siteURL: strings.TrimRight(siteURL, "/"), now: time.Now}
}

// NewRequest renders the admin alert for a newly submitted request
func (r *Renderer) NewRequest(req *entities.MaintenanceRequest, requester *entities.Profile, to []string) (*entities.EmailMessage, error) {
	data := r.data(req, requester, "/admin/dashboard")
	subject := fmt.Sprintf("New Maintenance Request: %s - %s", data.RequesterName, req.Category)
	return r.render(entities.EmailNewRequest, subject, to, data, newRequestHTML, newRequestText)
}

// RequestCompleted renders the requester notice for a completed request
func (r *Renderer) RequestCompleted(req *entities.MaintenanceRequest, requester *entities.Profile) (*entities.EmailMessage, error) {
	data := r.data(req, requester, "/dashboard")
	subject := fmt.Sprintf("Maintenance Request Completed: %s", req.Title)
	return r.render(entities.EmailRequestCompleted, subject, []string{requester.EmailAddress()}, data, completedHTML, completedText)
}

func (r *Renderer) data(req *entities.MaintenanceRequest, requester *entities.Profile, path string) emailData {
	name := "Unknown"
	if requester != nil && requester.FullName != "" {
		name = requester.FullName
	}
	location := req.LocationBuilding
	if req.LocationRoom != nil && *req.LocationRoom != "" {
		location += ", Room " + *req.LocationRoom
	}
	return emailData{
		Request:       req,
		RequesterName: name,
		Location:      location,
		DashboardURL:  r.siteURL + path,
		Footer:        footer,
	}
}

func (r *Renderer) render(tmpl entities.EmailTemplate, subject string, to []string, data emailData, html *htmltemplate.Template, text *texttemplate.Template) (*entities.EmailMessage, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := html.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("render %s html: %w", tmpl, err)
	}
	if err := text.Execute(&textBuf, data); err != nil {
		return nil, fmt.Errorf("render %s text: %w", tmpl, err)
	}
	return &entities.EmailMessage{
		ID:       uuid.NewString(),
		Template: tmpl,
		To:       to,
		Subject:  subject,
		HTML:     htmlBuf.String(),
		Text:     textBuf.String(),
		Created:  r.now().UTC(),
	}, nil
}
