package fieldconfig

import "testing"

func TestMergeExtractionAIKeysWin(t *testing.T) {
	existing := map[string]Value{
		"summary":  StringValue("manual summary"),
		"assignee": StringValue("alex"),
	}
	aiResult := map[string]Value{
		"summary": StringValue("extracted summary"),
		"labels":  StringListValue([]string{"backend", "intake"}),
	}

	merged := MergeExtraction(existing, aiResult)

	if !merged["summary"].Equal(StringValue("extracted summary")) {
		t.Fatalf("summary = %q, want AI value", merged["summary"].String())
	}
	if !merged["assignee"].Equal(StringValue("alex")) {
		t.Fatalf("manual key did not survive: %q", merged["assignee"].String())
	}
	if !merged["labels"].Equal(StringListValue([]string{"backend", "intake"})) {
		t.Fatalf("labels = %v", merged["labels"].StringList())
	}
}

func TestMergeExtractionIdempotent(t *testing.T) {
	existing := map[string]Value{"summary": StringValue("manual")}
	aiResult := map[string]Value{"summary": StringValue("ai"), "priority": StringValue("High")}

	once := MergeExtraction(existing, aiResult)
	twice := MergeExtraction(once, aiResult)

	if len(once) != len(twice) {
		t.Fatalf("len(once) = %d, len(twice) = %d", len(once), len(twice))
	}
	for key, value := range once {
		if !twice[key].Equal(value) {
			t.Fatalf("key %q changed on second apply: %q vs %q", key, value.String(), twice[key].String())
		}
	}
}

func TestMergeExtractionDoesNotMutateInputs(t *testing.T) {
	existing := map[string]Value{"summary": StringValue("manual")}
	aiResult := map[string]Value{"summary": StringValue("ai")}

	_ = MergeExtraction(existing, aiResult)

	if !existing["summary"].Equal(StringValue("manual")) {
		t.Fatalf("existing map mutated")
	}
}
