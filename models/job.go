package models

// JobStatus is the server-owned lifecycle state of an application.
type JobStatus string

const (
	StatusApplied      JobStatus = "applied"
	StatusInterviewing JobStatus = "interviewing"
	StatusOffered      JobStatus = "offered"
	StatusRejected     JobStatus = "rejected"
)

// ValidStatus reports whether s is one of the statuses the backend accepts.
func ValidStatus(s JobStatus) bool {
	switch s {
	case StatusApplied, StatusInterviewing, StatusOffered, StatusRejected:
		return true
	}
	return false
}

// JobContact is the point of contact attached to an application.
type JobContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// JobApplication mirrors the backend's job resource. The client never
// derives job state locally; everything here comes from the server.
type JobApplication struct {
	ID                 int        `json:"id"`
	CompanyName        string     `json:"company_name"`
	JobTitle           string     `json:"job_title"`
	Status             JobStatus  `json:"status"`
	AppliedAt          string     `json:"applied_at"`
	JobDescriptionURL  string     `json:"job_description_url,omitempty"`
	JobDescriptionText string     `json:"job_description_text,omitempty"`
	Contact            JobContact `json:"contact"`
	CreatedAt          string     `json:"created_at,omitempty"`
}

// CreateJobRequest is the payload for POST /jobs and PUT /jobs/:id.
type CreateJobRequest struct {
	CompanyName        string    `json:"company_name"`
	JobTitle           string    `json:"job_title"`
	Status             JobStatus `json:"status"`
	AppliedAt          string    `json:"applied_at"`
	JobDescriptionURL  string    `json:"job_description_url,omitempty"`
	JobDescriptionText string    `json:"job_description_text,omitempty"`
	ContactPerson      string    `json:"contact_person,omitempty"`
	ContactPersonEmail string    `json:"contact_person_email,omitempty"`
}

// JobFilters are the query parameters accepted by GET /jobs.
type JobFilters struct {
	Search      string    `json:"search,omitempty"`
	Status      JobStatus `json:"status,omitempty"`
	DateApplied string    `json:"date_applied,omitempty"`
}

// Empty reports whether no filter is active.
func (f JobFilters) Empty() bool {
	return f.Search == "" && f.Status == "" && f.DateApplied == ""
}
