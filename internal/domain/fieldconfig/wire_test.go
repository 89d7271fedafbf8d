package fieldconfig

import (
	"testing"
)

func TestConfigWireRoundTrip(t *testing.T) {
	cfg := FromSchema(map[string]IssueTypeConfig{
		"Bug": {
			ID: "10001",
			Fields: map[string]SchemaField{
				"summary": {Key: "summary", Name: "Summary", Type: "string", Required: true},
				"labels":  {Key: "labels", Name: "Labels", Type: "array"},
			},
		},
	})
	var err error
	cfg, err = cfg.ToggleIncluded("Bug", "labels", false)
	if err != nil {
		t.Fatalf("ToggleIncluded() error = %v", err)
	}

	data, err := MarshalConfig(cfg)
	if err != nil {
		t.Fatalf("MarshalConfig() error = %v", err)
	}
	decoded, err := UnmarshalConfig(data)
	if err != nil {
		t.Fatalf("UnmarshalConfig() error = %v", err)
	}

	itc, ok := decoded.IssueType("Bug")
	if !ok {
		t.Fatalf("Bug missing after round trip")
	}
	if itc.ID != "10001" {
		t.Fatalf("issue type id = %q", itc.ID)
	}
	if !itc.Fields["summary"].Required {
		t.Fatalf("summary lost its required flag")
	}
	if itc.Overrides["labels"].Included {
		t.Fatalf("labels exclusion lost in round trip")
	}
}

// Payloads written before the overlay existed carry no "included" key; those
// fields must read back as included.
func TestUnmarshalConfigLegacyPayloadDefaultsIncluded(t *testing.T) {
	legacy := []byte(`{
		"Bug": {
			"id": "10001",
			"fields": {
				"labels": {"name": "Labels", "type": "array", "required": false}
			}
		}
	}`)

	cfg, err := UnmarshalConfig(legacy)
	if err != nil {
		t.Fatalf("UnmarshalConfig() error = %v", err)
	}
	itc, _ := cfg.IssueType("Bug")
	if !itc.Overrides["labels"].Included {
		t.Fatalf("legacy field without included key not treated as included")
	}
}

func TestUnmarshalConfigEmptyPayload(t *testing.T) {
	cfg, err := UnmarshalConfig(nil)
	if err != nil {
		t.Fatalf("UnmarshalConfig(nil) error = %v", err)
	}
	if !cfg.IsZero() {
		t.Fatalf("empty payload produced non-zero config")
	}
}

func TestDecodeValueShapes(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Value
	}{
		{"string", `"hello"`, StringValue("hello")},
		{"number", `3.5`, NumberValue(3.5)},
		{"bool", `true`, BoolValue(true)},
		{"string list", `["a","b"]`, StringListValue([]string{"a", "b"})},
		{"null", `null`, StringValue("")},
		{"object kept raw", `{"id":"1"}`, StringValue(`{"id":"1"}`)},
		{"mixed list kept raw", `["a",1]`, StringValue(`["a",1]`)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeValue([]byte(tc.in))
			if err != nil {
				t.Fatalf("DecodeValue(%s) error = %v", tc.in, err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("DecodeValue(%s) = %q, want %q", tc.in, got.String(), tc.want.String())
			}
		})
	}

	if _, err := DecodeValue([]byte(`{broken`)); err == nil {
		t.Fatalf("DecodeValue(broken) expected error")
	}
}
