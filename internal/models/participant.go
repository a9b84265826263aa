package models

// Participant is a beneficiary enrolled in one or more projects.
type Participant struct {
	SyncMeta

	Name           string     `json:"name"`
	NameProv       Provenance `json:"name_prov"`
	Gender         string     `json:"gender,omitempty"`
	GenderProv     Provenance `json:"gender_prov"`
	AgeGroup       string     `json:"age_group,omitempty"`
	AgeGroupProv   Provenance `json:"age_group_prov"`
	Location       string     `json:"location,omitempty"`
	LocationProv   Provenance `json:"location_prov"`
	Disability     bool       `json:"disability"`
	DisabilityProv Provenance `json:"disability_prov"`
}

// TableName returns the database table name for Participant.
func (Participant) TableName() string {
	return "participants"
}
