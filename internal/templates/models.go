package templates

import "time"

// Template is a reusable outbound message with positional {{n}} placeholders.
//
// Variables[n-1] names the value expected for {{n}}. A placeholder without a
// variable is allowed and renders literally.
type Template struct {
	ID        string   `json:"id" db:"id"`
	Name      string   `json:"name" db:"name"`
	Content   string   `json:"content" db:"content"`
	Variables []string `json:"variables" db:"variables"`
	Category  Category `json:"category" db:"category"`
	Language  string   `json:"language" db:"language"`
	Status    Status   `json:"status" db:"status"`

	// RejectionReason is whatever the approval channel sent with a rejection.
	RejectionReason string `json:"rejection_reason,omitempty" db:"rejection_reason"`
	SubmittedBy     string `json:"submitted_by,omitempty" db:"submitted_by"`

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

type Category string

const (
	CategoryUtility         Category = "utility"
	CategoryMarketing       Category = "marketing"
	CategoryCustomerService Category = "customer_service"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryUtility, CategoryMarketing, CategoryCustomerService:
		return true
	default:
		return false
	}
}

// Status is the approval state. pending resolves exactly once.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

type SubmitRequest struct {
	Name        string   `json:"name"`
	Content     string   `json:"content"`
	Variables   []string `json:"variables"`
	Category    Category `json:"category"`
	Language    string   `json:"language"`
	SubmittedBy string   `json:"-"`
}

// Approval is the callback from the messaging platform's review.
type Approval struct {
	TemplateID string `json:"template_id"`
	Approved   bool   `json:"approved"`
	Reason     string `json:"reason,omitempty"`
}

type SendRequest struct {
	Room        string
	SubjectID   string
	Values      []string
	ActorUserID string
}
