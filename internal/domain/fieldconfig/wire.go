package fieldconfig

import (
	"encoding/json"

	"jiragent/internal/errs"
)

// The persisted JSON layout is the one the tracker fetch produced, with the
// overlay flags folded onto each field. It lives as a single JSON column on
// the owning connection.

type wireField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	// Included is a pointer so payloads written before the overlay existed
	// (no "included" key at all) keep their historical meaning of true.
	Included       *bool `json:"included"`
	CustomRequired bool  `json:"custom_required"`
}

type wireIssueType struct {
	ID     string               `json:"id"`
	Fields map[string]wireField `json:"fields"`
}

// MarshalConfig serializes a snapshot to its persisted JSON form.
func MarshalConfig(c Config) ([]byte, error) {
	wire := make(map[string]wireIssueType, len(c.issueTypes))
	for name, itc := range c.issueTypes {
		fields := make(map[string]wireField, len(itc.Fields))
		for key, field := range itc.Fields {
			override := itc.Overrides[key]
			included := override.Included
			fields[key] = wireField{
				Name:           field.Name,
				Type:           field.Type,
				Required:       field.Required,
				Included:       &included,
				CustomRequired: override.CustomRequired,
			}
		}
		wire[name] = wireIssueType{ID: itc.ID, Fields: fields}
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, errs.Wrap(err, "marshal field config")
	}
	return data, nil
}

// UnmarshalConfig parses the persisted JSON form back into a snapshot.
func UnmarshalConfig(data []byte) (Config, error) {
	if len(data) == 0 {
		return Config{}, nil
	}

	var wire map[string]wireIssueType
	if err := json.Unmarshal(data, &wire); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal field config")
	}

	issueTypes := make(map[string]IssueTypeConfig, len(wire))
	for name, witc := range wire {
		itc := IssueTypeConfig{
			ID:        witc.ID,
			Fields:    make(map[string]SchemaField, len(witc.Fields)),
			Overrides: make(map[string]Override, len(witc.Fields)),
		}
		for key, wf := range witc.Fields {
			itc.Fields[key] = SchemaField{
				Key:      key,
				Name:     wf.Name,
				Type:     wf.Type,
				Required: wf.Required,
			}
			included := wf.Included == nil || *wf.Included
			itc.Overrides[key] = Override{
				Included:       included,
				CustomRequired: wf.CustomRequired,
			}
		}
		issueTypes[name] = itc
	}
	return Config{issueTypes: issueTypes}, nil
}
