package models

// Workshop is a training or outreach event held under a project. EventDate
// is an ISO-8601 calendar date.
type Workshop struct {
	SyncMeta

	ProjectID     UUID       `json:"project_id,omitempty"`
	Purpose       string     `json:"purpose"`
	PurposeProv   Provenance `json:"purpose_prov"`
	EventDate     string     `json:"event_date,omitempty"`
	EventDateProv Provenance `json:"event_date_prov"`
	Location      string     `json:"location,omitempty"`
	LocationProv  Provenance `json:"location_prov"`
	Budget        float64    `json:"budget"`
	BudgetProv    Provenance `json:"budget_prov"`
}

// TableName returns the database table name for Workshop.
func (Workshop) TableName() string {
	return "workshops"
}
