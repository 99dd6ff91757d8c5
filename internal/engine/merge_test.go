package engine

import (
	"testing"

	"metadata-export/internal/metadata"
)

func TestMerge_Idempotent(t *testing.T) {
	rec := metadata.Record{
		"title": {Value: "T"},
		"desc":  {Value: ""},
	}

	merged, err := Merge([]metadata.Record{rec, rec}, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(merged))
	}
	if merged["title"].Value != "T" || merged["desc"].Value != "" {
		t.Fatalf("merge with self changed the record: %v", merged)
	}
}

func TestMerge_NonEmptyWins(t *testing.T) {
	a := metadata.Record{"title": {Value: ""}}
	b := metadata.Record{"title": {Value: "T"}}

	merged, err := Merge([]metadata.Record{a, b}, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged["title"].Value != "T" {
		t.Fatalf("expected non-empty value to win, got %v", merged["title"].Value)
	}
}

func TestMerge_AllEmptyKeepsFirst(t *testing.T) {
	a := metadata.Record{"title": {Value: ""}}
	b := metadata.Record{"title": {Value: ""}}

	merged, err := Merge([]metadata.Record{a, b}, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, ok := merged["title"]; !ok {
		t.Fatal("all-empty key dropped entirely")
	}
}

func TestMerge_ConflictSilentlyDropped(t *testing.T) {
	a := metadata.Record{"title": {Value: "A"}}
	b := metadata.Record{"title": {Value: "B"}}

	merged, err := Merge([]metadata.Record{a, b}, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, ok := merged["title"]; ok {
		t.Fatal("conflicting key should be dropped when agreement is not required")
	}
}

func TestMerge_ConflictFatalWhenChecked(t *testing.T) {
	a := metadata.Record{"title": {Value: "A"}}
	b := metadata.Record{"title": {Value: "B"}}

	_, err := Merge([]metadata.Record{a, b}, []string{"title"})
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if !IsConflictError(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestMerge_EqualAfterNormalizationKeptOnce(t *testing.T) {
	a := metadata.Record{"tags": {Value: map[string]any{"a": "1", "b": "2"}}}
	b := metadata.Record{"tags": {Value: map[string]any{"b": "2", "a": "1"}}}

	merged, err := Merge([]metadata.Record{a, b}, []string{"tags"})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, ok := merged["tags"]; !ok {
		t.Fatal("normalization-equal values treated as conflict")
	}
}

// --- Emptiness ---

func TestIsEmptyValue(t *testing.T) {
	empty := []any{
		nil,
		"",
		[]any{},
		map[string]any{},
		map[string]any{"a": "", "b": map[string]any{"c": ""}},
	}
	for _, v := range empty {
		if !IsEmptyValue(v) {
			t.Fatalf("expected empty: %#v", v)
		}
	}

	nonEmpty := []any{
		"x",
		0,
		false,
		[]any{""},
		map[string]any{"a": "x"},
	}
	for _, v := range nonEmpty {
		if IsEmptyValue(v) {
			t.Fatalf("expected non-empty: %#v", v)
		}
	}
}
