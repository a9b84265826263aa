package models

// Donor is a funding organization or individual.
type Donor struct {
	SyncMeta

	Name              string     `json:"name"`
	NameProv          Provenance `json:"name_prov"`
	DonorType         string     `json:"donor_type,omitempty"`
	DonorTypeProv     Provenance `json:"donor_type_prov"`
	ContactPerson     string     `json:"contact_person,omitempty"`
	ContactPersonProv Provenance `json:"contact_person_prov"`
	Email             string     `json:"email,omitempty"`
	EmailProv         Provenance `json:"email_prov"`
	Phone             string     `json:"phone,omitempty"`
	PhoneProv         Provenance `json:"phone_prov"`
	Country           string     `json:"country,omitempty"`
	CountryProv       Provenance `json:"country_prov"`
}

// TableName returns the database table name for Donor.
func (Donor) TableName() string {
	return "donors"
}
