package json

import (
	"encoding/json"
	"testing"
)

func TestMergeLeavesInputUntouched(t *testing.T) {
	orig := json.RawMessage(`{"startVersion":"1.0.0.0","page":1,"after":"abc"}`)
	before := string(orig)

	merged, err := Merge(orig, Set("page", 3), Set("pageSize", 25), Delete("after"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(orig) != before {
		t.Errorf("input mutated: %s", orig)
	}
	if Int(merged, "page") != 3 || Int(merged, "pageSize") != 25 {
		t.Errorf("fields not set: %s", merged)
	}
	if Has(merged, "after") {
		t.Errorf("after not deleted: %s", merged)
	}
	if String(merged, "startVersion") != "1.0.0.0" {
		t.Errorf("unrelated field lost: %s", merged)
	}
}

func TestMergeEmptyInput(t *testing.T) {
	merged, err := Merge(nil, Set("sha", "abc"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if String(merged, "sha") != "abc" {
		t.Errorf("got %s", merged)
	}
}

func TestMergeRejectsNonObject(t *testing.T) {
	if _, err := Merge(json.RawMessage(`[1]`), Set("a", 1)); err == nil {
		t.Fatal("expected error for array input")
	}
	if _, err := Merge(json.RawMessage(`{broken`), Set("a", 1)); err == nil {
		t.Fatal("expected error for invalid input")
	}
}
