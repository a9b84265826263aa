package models

// ProjectFunding links a donor contribution to a project.
type ProjectFunding struct {
	SyncMeta

	ProjectID    UUID       `json:"project_id,omitempty"`
	DonorID      UUID       `json:"donor_id,omitempty"`
	GrantID      string     `json:"grant_id,omitempty"`
	GrantIDProv  Provenance `json:"grant_id_prov"`
	Amount       float64    `json:"amount"`
	AmountProv   Provenance `json:"amount_prov"`
	Currency     string     `json:"currency,omitempty"`
	CurrencyProv Provenance `json:"currency_prov"`
}

// TableName returns the database table name for ProjectFunding.
func (ProjectFunding) TableName() string {
	return "project_funding"
}
