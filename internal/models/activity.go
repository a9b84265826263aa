package models

// Activity is a unit of work carried out within a project.
type Activity struct {
	SyncMeta

	ProjectID       UUID       `json:"project_id,omitempty"`
	Description     string     `json:"description"`
	DescriptionProv Provenance `json:"description_prov"`
	KPI             string     `json:"kpi,omitempty"`
	KPIProv         Provenance `json:"kpi_prov"`
	TargetValue     float64    `json:"target_value"`
	TargetValueProv Provenance `json:"target_value_prov"`
	ActualValue     float64    `json:"actual_value"`
	ActualValueProv Provenance `json:"actual_value_prov"`
}

// TableName returns the database table name for Activity.
func (Activity) TableName() string {
	return "activities"
}
