package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r TimeRange) valid() bool {
	return !r.From.IsZero() && !r.To.IsZero() && r.To.After(r.From)
}

type CallsSummary struct {
	TotalCalls    int `json:"total_calls"`
	InboundCalls  int `json:"inbound_calls"`
	OutboundCalls int `json:"outbound_calls"`

	QueuedCalls    int `json:"queued_calls"`
	ActiveCalls    int `json:"active_calls"`
	CompletedCalls int `json:"completed_calls"`
	MissedCalls    int `json:"missed_calls"`

	// Correlation coverage.
	CallsWithCustomer int     `json:"calls_with_customer"`
	CallsWithTicket   int     `json:"calls_with_ticket"`
	ResolutionRate    float64 `json:"resolution_rate"`
	TicketRate        float64 `json:"ticket_rate"`
}

type MessagesSummary struct {
	TotalMessages        int `json:"total_messages"`
	OperatorMessages     int `json:"operator_messages"`
	CounterpartyMessages int `json:"counterparty_messages"`

	// Delivery status of operator messages.
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Read      int `json:"read"`
	Failed    int `json:"failed"`
	Retries   int `json:"retries"`

	ReadRate    float64 `json:"read_rate"`
	FailureRate float64 `json:"failure_rate"`
}

type TemplatesSummary struct {
	TotalTemplates int            `json:"total_templates"`
	Pending        int            `json:"pending"`
	Approved       int            `json:"approved"`
	Rejected       int            `json:"rejected"`
	ByCategory     map[string]int `json:"by_category"`
}

// Summary is the dashboard overview for one time range. Templates are counted
// by submission time.
type Summary struct {
	Range     TimeRange        `json:"range"`
	Calls     CallsSummary     `json:"calls"`
	Messages  MessagesSummary  `json:"messages"`
	Templates TemplatesSummary `json:"templates"`
}
