package jira

import (
	"context"
	"errors"
	"net/url"

	"jiragent/internal/domain/fieldconfig"
)

type projectDetailResponse struct {
	IssueTypes []issueTypeResponse `json:"issueTypes"`
}

type issueTypeResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subtask bool   `json:"subtask"`
}

type createMetaResponse struct {
	Projects []struct {
		IssueTypes []struct {
			Fields map[string]createMetaField `json:"fields"`
		} `json:"issuetypes"`
	} `json:"projects"`
}

type createMetaField struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Schema   struct {
		Type  string `json:"type"`
		Items string `json:"items"`
	} `json:"schema"`
}

// FetchFieldSchema walks the project's issue types and collects the
// create-screen field metadata for each via the createmeta endpoint. The
// result is the raw upstream schema; seeding overlay defaults is the caller's
// concern.
func (c *Client) FetchFieldSchema(ctx context.Context, projectKey string) (map[string]fieldconfig.IssueTypeConfig, error) {
	if projectKey == "" {
		return nil, errors.New("project key is required")
	}

	var project projectDetailResponse
	if err := c.get(ctx, "/rest/api/3/project/"+url.PathEscape(projectKey), nil, &project); err != nil {
		return nil, err
	}

	schema := make(map[string]fieldconfig.IssueTypeConfig, len(project.IssueTypes))
	for _, issueType := range project.IssueTypes {
		if issueType.Subtask {
			continue
		}

		query := url.Values{}
		query.Set("projectKeys", projectKey)
		query.Set("issuetypeNames", issueType.Name)
		query.Set("expand", "projects.issuetypes.fields")

		var meta createMetaResponse
		if err := c.get(ctx, "/rest/api/3/issue/createmeta", query, &meta); err != nil {
			return nil, err
		}
		if len(meta.Projects) == 0 || len(meta.Projects[0].IssueTypes) == 0 {
			continue
		}

		rawFields := meta.Projects[0].IssueTypes[0].Fields
		fields := make(map[string]fieldconfig.SchemaField, len(rawFields))
		for key, raw := range rawFields {
			fields[key] = fieldconfig.SchemaField{
				Key:      key,
				Name:     raw.Name,
				Type:     raw.Schema.Type,
				Required: raw.Required,
			}
		}
		schema[issueType.Name] = fieldconfig.IssueTypeConfig{
			ID:     issueType.ID,
			Fields: fields,
		}
	}
	return schema, nil
}
