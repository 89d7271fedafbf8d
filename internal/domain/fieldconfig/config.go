package fieldconfig

import (
	"fmt"
)

// SchemaField is one upstream field definition as last fetched from the
// tracker. Name, Type and Required are owned by the tracker and only change
// on an explicit refresh.
type SchemaField struct {
	Key      string
	Name     string
	Type     string
	Required bool
}

// Override is the tenant overlay for one field. Included defaults to true for
// freshly fetched fields; CustomRequired is a tenant-added mandatory flag.
type Override struct {
	Included       bool
	CustomRequired bool
}

// IssueTypeConfig pairs the upstream schema of one issue type with its
// overlay. Both maps are keyed by the tracker's field key.
type IssueTypeConfig struct {
	ID        string
	Fields    map[string]SchemaField
	Overrides map[string]Override
}

// Config is the full per-connection field configuration: upstream schema plus
// tenant overlay per issue type. A Config is treated as an immutable snapshot;
// every toggle returns a fresh copy and never mutates the receiver.
type Config struct {
	issueTypes map[string]IssueTypeConfig
}

// New builds a snapshot from per-issue-type configs. Overrides missing for a
// known field key default to included, not custom-required.
func New(issueTypes map[string]IssueTypeConfig) Config {
	cloned := make(map[string]IssueTypeConfig, len(issueTypes))
	for name, itc := range issueTypes {
		cloned[name] = cloneIssueType(itc)
	}
	return Config{issueTypes: cloned}
}

// FromSchema seeds a fresh configuration from an upstream fetch: every field
// included, nothing custom-required.
func FromSchema(issueTypes map[string]IssueTypeConfig) Config {
	seeded := make(map[string]IssueTypeConfig, len(issueTypes))
	for name, itc := range issueTypes {
		c := cloneIssueType(itc)
		c.Overrides = make(map[string]Override, len(c.Fields))
		for key := range c.Fields {
			c.Overrides[key] = Override{Included: true}
		}
		seeded[name] = c
	}
	return Config{issueTypes: seeded}
}

// IsZero reports whether no issue type has been configured.
func (c Config) IsZero() bool { return len(c.issueTypes) == 0 }

// IssueTypes returns the configured issue type names, sorted.
func (c Config) IssueTypes() []string {
	return sortedKeys(c.issueTypes)
}

// IssueType returns the snapshot for one issue type.
func (c Config) IssueType(name string) (IssueTypeConfig, bool) {
	itc, ok := c.issueTypes[name]
	if !ok {
		return IssueTypeConfig{}, false
	}
	return cloneIssueType(itc), true
}

// EffectiveIncluded resolves the inclusion of a field: an upstream-mandatory
// field is always included no matter what the overlay stores.
func EffectiveIncluded(f SchemaField, o Override) bool {
	return f.Required || o.Included
}

// EffectiveMandatory resolves the mandatory flag: upstream required OR tenant
// custom-required.
func EffectiveMandatory(f SchemaField, o Override) bool {
	return f.Required || o.CustomRequired
}

// ToggleIncluded returns a new snapshot with the field's inclusion set.
// Excluding an upstream-mandatory field fails with ErrMandatoryFieldExcluded
// and leaves the snapshot unchanged. CustomRequired is never touched here.
func (c Config) ToggleIncluded(issueType, fieldKey string, included bool) (Config, error) {
	field, override, err := c.lookup(issueType, fieldKey)
	if err != nil {
		return Config{}, err
	}
	if field.Required && !included {
		return Config{}, fmt.Errorf("%s.%s: %w", issueType, fieldKey, ErrMandatoryFieldExcluded)
	}

	override.Included = included
	return c.withOverride(issueType, fieldKey, override), nil
}

// ToggleRequired returns a new snapshot with the field's custom-required flag
// set. Marking an excluded field required is rejected with
// ErrRequiredOnExcludedField rather than silently re-including it.
func (c Config) ToggleRequired(issueType, fieldKey string, required bool) (Config, error) {
	field, override, err := c.lookup(issueType, fieldKey)
	if err != nil {
		return Config{}, err
	}
	if required && !EffectiveIncluded(field, override) {
		return Config{}, fmt.Errorf("%s.%s: %w", issueType, fieldKey, ErrRequiredOnExcludedField)
	}

	override.CustomRequired = required
	return c.withOverride(issueType, fieldKey, override), nil
}

func (c Config) lookup(issueType, fieldKey string) (SchemaField, Override, error) {
	itc, ok := c.issueTypes[issueType]
	if !ok {
		return SchemaField{}, Override{}, fmt.Errorf("%q: %w", issueType, ErrUnknownIssueType)
	}
	field, ok := itc.Fields[fieldKey]
	if !ok {
		return SchemaField{}, Override{}, fmt.Errorf("%s.%s: %w", issueType, fieldKey, ErrUnknownField)
	}
	return field, itc.Overrides[fieldKey], nil
}

func (c Config) withOverride(issueType, fieldKey string, override Override) Config {
	next := make(map[string]IssueTypeConfig, len(c.issueTypes))
	for name, itc := range c.issueTypes {
		if name != issueType {
			next[name] = itc
			continue
		}
		updated := cloneIssueType(itc)
		updated.Overrides[fieldKey] = override
		next[name] = updated
	}
	return Config{issueTypes: next}
}

// MergeRefreshedSchema replaces the upstream snapshot with a fresh fetch while
// preserving overlay flags for field keys that survive. Vanished keys drop
// their overrides; new keys default to included.
func (c Config) MergeRefreshedSchema(fresh map[string]IssueTypeConfig) Config {
	next := make(map[string]IssueTypeConfig, len(fresh))
	for name, itc := range fresh {
		merged := cloneIssueType(itc)
		merged.Overrides = make(map[string]Override, len(merged.Fields))

		old, hadType := c.issueTypes[name]
		for key := range merged.Fields {
			if hadType {
				if prev, ok := old.Overrides[key]; ok {
					merged.Overrides[key] = prev
					continue
				}
			}
			merged.Overrides[key] = Override{Included: true}
		}
		next[name] = merged
	}
	return Config{issueTypes: next}
}

func cloneIssueType(itc IssueTypeConfig) IssueTypeConfig {
	fields := make(map[string]SchemaField, len(itc.Fields))
	for k, v := range itc.Fields {
		fields[k] = v
	}
	overrides := make(map[string]Override, len(itc.Overrides))
	for k, v := range itc.Overrides {
		overrides[k] = v
	}
	return IssueTypeConfig{ID: itc.ID, Fields: fields, Overrides: overrides}
}
