package audits

import (
	"time"
)

// AuditID identifier type
type AuditID string

// CallDateLayout is the storage and wire format of call dates.
const CallDateLayout = "2006-01-02"

// Audit represents one analysed call saved for reporting
type Audit struct {
	ID           AuditID   `json:"id"`
	ContactID    string    `json:"contact_id"`
	CallDate     time.Time `json:"call_date"`
	AnalysisType string    `json:"analysis_type"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Answers      []Answer  `json:"answers"`
}

// Answer is one stored question result of an audit
type Answer struct {
	QuestionTitle string `json:"question_title"`
	Answer        string `json:"answer"`
	Description   string `json:"description"`
	SubDemand     string `json:"sub_demand"`
}

// AnswerRow is an answer joined with its audit, the unit reports work on.
type AnswerRow struct {
	ContactID     string    `json:"contact_id"`
	CallDate      time.Time `json:"call_date"`
	AnalysisType  string    `json:"analysis_type"`
	QuestionTitle string    `json:"question_title"`
	Answer        string    `json:"answer"`
	SubDemand     string    `json:"sub_demand"`
	Description   string    `json:"description"`
}

// AllTypes disables the analysis type filter.
const AllTypes = "All"

// Filter narrows audits and answers. Zero values mean "no constraint".
type Filter struct {
	AnalysisType  string
	From          time.Time
	To            time.Time
	QuestionTitle string
}

// ByType reports whether the filter constrains the analysis type.
func (f Filter) ByType() bool {
	return f.AnalysisType != "" && f.AnalysisType != AllTypes
}
