package engine

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"metadata-export/internal/metadata"
)

func testContext(t *testing.T) *GenerationContext {
	t.Helper()
	return &GenerationContext{
		User: &metadata.User{
			ID:          "u1",
			FullName:    "Taro Yamada",
			Email:       "taro@example.org",
			AbsoluteURL: "https://osf.example.org/u1/",
		},
		SchemaID: "deposit",
		Now:      time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func newTestResolver(t *testing.T, ctx *GenerationContext) *Resolver {
	t.Helper()
	r, err := NewResolver(ctx, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	return r
}

func TestResolver_FilesCountMismatch(t *testing.T) {
	ctx := testContext(t)
	ctx.FileMetadata = []metadata.FileMetadata{
		{Path: "osfstorage/a.csv"},
		{Path: "osfstorage/b.csv"},
	}
	ctx.DownloadFiles = []metadata.DownloadFile{{Name: "a.csv", MIMEType: "text/csv"}}

	_, err := newTestResolver(t, ctx).Resolve(SourceFiles)
	if err == nil {
		t.Fatal("expected count mismatch error")
	}
	if !IsCountMismatchError(err) {
		t.Fatalf("expected COUNT_MISMATCH, got %v", err)
	}
}

func TestResolver_FilesBindings(t *testing.T) {
	ctx := testContext(t)
	ctx.FileMetadata = []metadata.FileMetadata{{
		Path: "osfstorage/data.csv",
		Items: []metadata.FileMetadataItem{{
			SchemaID: "deposit",
			Data: metadata.Record{
				"grdm-file:data-description": {Value: "observations"},
				"grdm-file:blank":            {Value: ""},
			},
		}},
	}}
	ctx.DownloadFiles = []metadata.DownloadFile{{Name: "data.csv", MIMEType: "text/csv"}}
	ctx.ProjectMetadata = []metadata.Record{{
		"project-title": {Value: "Sensor Study"},
	}}

	bindings, err := newTestResolver(t, ctx).Resolve(SourceFiles)
	if err != nil {
		t.Fatalf("resolve @files failed: %v", err)
	}
	if len(bindings) != 1 {
		t.Fatalf("expected 1 binding, got %d", len(bindings))
	}

	value, ok := bindings[0].Entry.Value.(map[string]any)
	if !ok {
		t.Fatalf("unexpected entry value type %T", bindings[0].Entry.Value)
	}
	if value["filename"] != "data.csv" || value["format"] != "text/csv" {
		t.Fatalf("file identity not bound: %v", value)
	}
	if value["grdm_file_data_description"] != "observations" {
		t.Fatalf("file field not flattened: %v", value)
	}
	if _, present := value["grdm_file_blank"]; present {
		t.Fatal("empty field should be skipped")
	}

	vars := bindings[0].Variables
	if vars["grdm_file_data_description"] != "observations" {
		t.Fatalf("file variable missing: %v", vars)
	}
	if vars["project_title"] != "Sensor Study" {
		t.Fatalf("project variable missing: %v", vars)
	}
	if vars["nowdate"] != "2024-03-15" {
		t.Fatalf("nowdate not pinned: %v", vars["nowdate"])
	}
}

func TestResolver_AgentBinding(t *testing.T) {
	ctx := testContext(t)
	ctx.NodeID = "ab12c"

	bindings, err := newTestResolver(t, ctx).Resolve(SourceAgent)
	if err != nil {
		t.Fatalf("resolve @agent failed: %v", err)
	}
	if len(bindings) != 1 {
		t.Fatalf("expected 1 binding, got %d", len(bindings))
	}

	attrs, ok := bindings[0].Entry.Value.(map[string]any)
	if !ok {
		t.Fatalf("unexpected entry value type %T", bindings[0].Entry.Value)
	}
	if attrs["fullname"] != "Taro Yamada" {
		t.Fatalf("user attribute missing: %v", attrs)
	}
	if attrs["absolute_url"] != "https://osf.example.org/ab12c/" {
		t.Fatalf("absolute_url not rewritten: %v", attrs["absolute_url"])
	}
}

func TestResolver_AgentURLUntouchedWithoutNode(t *testing.T) {
	ctx := testContext(t)

	bindings, err := newTestResolver(t, ctx).Resolve(SourceAgent)
	if err != nil {
		t.Fatalf("resolve @agent failed: %v", err)
	}
	attrs := bindings[0].Entry.Value.(map[string]any)
	if attrs["absolute_url"] != "https://osf.example.org/u1/" {
		t.Fatalf("absolute_url changed: %v", attrs["absolute_url"])
	}
}

func TestResolver_DefaultKeyMergesSources(t *testing.T) {
	ctx := testContext(t)
	ctx.ProjectMetadata = []metadata.Record{{
		"funder-name": {Value: "JSPS"},
	}}
	ctx.FileMetadata = []metadata.FileMetadata{{
		Items: []metadata.FileMetadataItem{{
			SchemaID: "deposit",
			Data:     metadata.Record{"funder-name": {Value: ""}},
		}},
	}}
	ctx.DownloadFiles = []metadata.DownloadFile{{Name: "a"}}

	bindings, err := newTestResolver(t, ctx).Resolve("funder-name")
	if err != nil {
		t.Fatalf("resolve funder-name failed: %v", err)
	}
	if bindings[0].Entry.Value != "JSPS" {
		t.Fatalf("merged entry wrong: %v", bindings[0].Entry.Value)
	}
}

func TestResolver_DefaultKeyConflictFatal(t *testing.T) {
	ctx := testContext(t)
	ctx.ProjectMetadata = []metadata.Record{
		{"funder-name": {Value: "JSPS"}},
		{"funder-name": {Value: "JST"}},
	}

	_, err := newTestResolver(t, ctx).Resolve("funder-name")
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if !IsConflictError(err) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestResolver_ProjectsBindingPerRecord(t *testing.T) {
	ctx := testContext(t)
	ctx.ProjectMetadata = []metadata.Record{
		{"project-title": {Value: "Study A"}},
		{"project-title": {Value: "Study B"}},
	}

	bindings, err := newTestResolver(t, ctx).Resolve(SourceProjects)
	if err != nil {
		t.Fatalf("resolve @projects failed: %v", err)
	}
	if len(bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(bindings))
	}
	first := bindings[0].Entry.Value.(map[string]any)
	if first["project_title"] != "Study A" {
		t.Fatalf("first project binding wrong: %v", first)
	}
}
