package model

type Request struct {
	RequestID          int64   `gorm:"column:request_id;primaryKey;autoIncrement"`
	Summary            string  `gorm:"column:summary;type:text;not null"`
	Description        string  `gorm:"column:description;type:text;not null"`
	Status             string  `gorm:"column:status;type:text;not null;index"`
	SourceTag          string  `gorm:"column:source_tag;type:text;not null"`
	SourceContent      *string `gorm:"column:source_content;type:text"`
	AcceptanceCriteria *string `gorm:"column:acceptance_criteria;type:text"`
	Requestor          *string `gorm:"column:requestor;type:text"`
	Assignee           *string `gorm:"column:assignee;type:text"`
	BusinessUnit       *string `gorm:"column:business_unit;type:text"`
	Tags               *string `gorm:"column:tags;type:text"`
	JiraIssueKey       *string `gorm:"column:jira_issue_key;type:text"`
	ReleasedAt         *string `gorm:"column:released_at;type:text"`
	CreatedAt          string  `gorm:"column:created_at;type:text;not null"`
	UpdatedAt          string  `gorm:"column:updated_at;type:text;not null"`
}

func (Request) TableName() string {
	return "requests"
}
