package request

import (
	"encoding/json"

	"jiragent/internal/domain/fieldconfig"
	"jiragent/internal/errs"
)

// SourceContent is the free-form payload carried by a request: the chosen
// issue type, the dynamic field values, and whatever origin-specific metadata
// the intake channel attached. Unknown keys round-trip untouched.
type SourceContent struct {
	IssueType  string
	JiraFields map[string]fieldconfig.Value
	Extra      map[string]json.RawMessage
}

const (
	sourceKeyIssueType  = "issue_type"
	sourceKeyJiraFields = "jira_fields"
)

func (s SourceContent) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+2)
	for key, raw := range s.Extra {
		out[key] = raw
	}
	if s.IssueType != "" {
		out[sourceKeyIssueType] = s.IssueType
	}
	if s.JiraFields != nil {
		out[sourceKeyJiraFields] = s.JiraFields
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, errs.Wrap(err, "marshal source content")
	}
	return data, nil
}

func (s *SourceContent) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errs.Wrap(err, "unmarshal source content")
	}

	parsed := SourceContent{Extra: make(map[string]json.RawMessage)}
	for key, payload := range raw {
		switch key {
		case sourceKeyIssueType:
			if err := json.Unmarshal(payload, &parsed.IssueType); err != nil {
				return errs.Wrap(err, "unmarshal source content issue type")
			}
		case sourceKeyJiraFields:
			values, err := fieldconfig.DecodeValueMap(payload)
			if err != nil {
				return errs.Wrap(err, "decode source content field values")
			}
			parsed.JiraFields = values
		default:
			parsed.Extra[key] = payload
		}
	}
	if len(parsed.Extra) == 0 {
		parsed.Extra = nil
	}

	*s = parsed
	return nil
}
