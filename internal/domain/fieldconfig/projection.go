package fieldconfig

import "sort"

// EditableField is one row of the dynamic form for an issue type.
type EditableField struct {
	Key       string
	Label     string
	Mandatory bool
}

// ProjectEditableFields derives the ordered editable form for an issue type:
// effectively-included fields only, mandatory first, then label ascending in
// codepoint order. The order is deterministic for the same snapshot no matter
// how the underlying maps were populated, since it drives form tab order.
func ProjectEditableFields(c Config, issueType string) []EditableField {
	itc, ok := c.issueTypes[issueType]
	if !ok {
		return nil
	}

	fields := make([]EditableField, 0, len(itc.Fields))
	for _, key := range sortedKeys(itc.Fields) {
		field := itc.Fields[key]
		override := itc.Overrides[key]
		if !EffectiveIncluded(field, override) {
			continue
		}
		fields = append(fields, EditableField{
			Key:       key,
			Label:     field.Name,
			Mandatory: EffectiveMandatory(field, override),
		})
	}

	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].Mandatory != fields[j].Mandatory {
			return fields[i].Mandatory
		}
		return fields[i].Label < fields[j].Label
	})
	return fields
}

// ProjectAnalysisSchema reduces an issue type's configuration to the schema
// handed to the AI collaborator: field key to a natural-language description
// built from the display name plus mandatory and multi-value hints. Only
// effectively-included fields appear.
func ProjectAnalysisSchema(c Config, issueType string) map[string]string {
	itc, ok := c.issueTypes[issueType]
	if !ok {
		return nil
	}

	schema := make(map[string]string, len(itc.Fields))
	for key, field := range itc.Fields {
		override := itc.Overrides[key]
		if !EffectiveIncluded(field, override) {
			continue
		}
		description := field.Name
		if EffectiveMandatory(field, override) {
			description += " (Required)"
		}
		if field.Type == "array" {
			description += " (List of values)"
		}
		schema[key] = description
	}
	return schema
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
