package models

// StrategicGoal is a top-level programme objective. Every tracked field
// carries a display-only Provenance shadow.
type StrategicGoal struct {
	SyncMeta

	ObjectiveCode       string     `json:"objective_code"`
	ObjectiveCodeProv   Provenance `json:"objective_code_prov"`
	Outcome             string     `json:"outcome"`
	OutcomeProv         Provenance `json:"outcome_prov"`
	KPI                 string     `json:"kpi"`
	KPIProv             Provenance `json:"kpi_prov"`
	TargetValue         float64    `json:"target_value"`
	TargetValueProv     Provenance `json:"target_value_prov"`
	ActualValue         float64    `json:"actual_value"`
	ActualValueProv     Provenance `json:"actual_value_prov"`
	ResponsibleTeam     string     `json:"responsible_team"`
	ResponsibleTeamProv Provenance `json:"responsible_team_prov"`
}

// TableName returns the database table name for StrategicGoal.
func (StrategicGoal) TableName() string {
	return "strategic_goals"
}
