package models

// Livelihood is a grant given to a participant under a project.
type Livelihood struct {
	SyncMeta

	ParticipantID   UUID       `json:"participant_id,omitempty"`
	ProjectID       UUID       `json:"project_id,omitempty"`
	GrantAmount     float64    `json:"grant_amount"`
	GrantAmountProv Provenance `json:"grant_amount_prov"`
	Purpose         string     `json:"purpose,omitempty"`
	PurposeProv     Provenance `json:"purpose_prov"`
	Outcome         string     `json:"outcome,omitempty"`
	OutcomeProv     Provenance `json:"outcome_prov"`
}

// TableName returns the database table name for Livelihood.
func (Livelihood) TableName() string {
	return "livelihoods"
}
