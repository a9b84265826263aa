package models

// Project is a funded body of work under a strategic goal.
type Project struct {
	SyncMeta

	StrategicGoalID     UUID       `json:"strategic_goal_id,omitempty"`
	Name                string     `json:"name"`
	NameProv            Provenance `json:"name_prov"`
	Objective           string     `json:"objective,omitempty"`
	ObjectiveProv       Provenance `json:"objective_prov"`
	Outcome             string     `json:"outcome,omitempty"`
	OutcomeProv         Provenance `json:"outcome_prov"`
	Timeline            string     `json:"timeline,omitempty"`
	TimelineProv        Provenance `json:"timeline_prov"`
	ResponsibleTeam     string     `json:"responsible_team,omitempty"`
	ResponsibleTeamProv Provenance `json:"responsible_team_prov"`
}

// TableName returns the database table name for Project.
func (Project) TableName() string {
	return "projects"
}
