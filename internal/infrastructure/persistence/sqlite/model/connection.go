package model

type Connection struct {
	ConnectionID   int64   `gorm:"column:connection_id;primaryKey;autoIncrement"`
	Name           string  `gorm:"column:name;type:text;not null"`
	Type           string  `gorm:"column:type;type:text;not null;index"`
	Status         string  `gorm:"column:status;type:text;not null"`
	JiraURL        *string `gorm:"column:jira_url;type:text"`
	JiraEmail      *string `gorm:"column:jira_email;type:text"`
	JiraAPIToken   *string `gorm:"column:jira_api_token;type:text"`
	JiraProjectKey *string `gorm:"column:jira_project_key;type:text"`
	FieldConfig    *string `gorm:"column:field_config;type:text"`
	CreatedAt      string  `gorm:"column:created_at;type:text;not null"`
	UpdatedAt      string  `gorm:"column:updated_at;type:text;not null"`
}

func (Connection) TableName() string {
	return "connections"
}
