package engine

import (
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"metadata-export/internal/metadata"
)

// Synthetic source keys understood by the resolver.
const (
	SourceFiles    = "@files"
	SourceProjects = "@projects"
	SourceAgent    = "@agent"
)

// GenerationContext bundles the immutable inputs of one document
// generation. Every run constructs its own; nothing here is shared or
// cached across runs.
type GenerationContext struct {
	User            *metadata.User
	TargetIndex     metadata.Index
	SchemaID        string
	FileMetadata    []metadata.FileMetadata
	DownloadFiles   []metadata.DownloadFile
	ProjectMetadata []metadata.Record
	NodeID          string

	// Now pins the generation timestamp; zero means wall-clock time.
	Now time.Time
}

func (gc *GenerationContext) now() time.Time {
	if gc.Now.IsZero() {
		return time.Now().UTC()
	}
	return gc.Now
}

// SourceBinding pairs the record entry to evaluate against with the common
// variable context for that pass.
type SourceBinding struct {
	Entry     metadata.Entry
	Variables map[string]any
}

// Resolver assembles the (source, variables) pairs each mapping key is
// evaluated against. The merged file- and project-scoped contexts are
// computed once per generation.
type Resolver struct {
	ctx         *GenerationContext
	log         zerolog.Logger
	fileRecords []metadata.Record
	fileVars    map[string]any
	projectVars map[string]any
}

func NewResolver(ctx *GenerationContext, log zerolog.Logger) (*Resolver, error) {
	fileRecords := make([]metadata.Record, len(ctx.FileMetadata))
	for i, fm := range ctx.FileMetadata {
		fileRecords[i] = fm.RecordFor(ctx.SchemaID)
	}

	mergedFiles, err := Merge(fileRecords, nil)
	if err != nil {
		return nil, err
	}
	mergedProjects, err := Merge(ctx.ProjectMetadata, nil)
	if err != nil {
		return nil, err
	}

	return &Resolver{
		ctx:         ctx,
		log:         log,
		fileRecords: fileRecords,
		fileVars:    commonVariables(mergedFiles),
		projectVars: commonVariables(mergedProjects),
	}, nil
}

// commonVariables flattens a merged record into the flat name-to-value
// context with skip-empty semantics: keys with empty values contribute no
// variable at all.
func commonVariables(rec metadata.Record) map[string]any {
	vars := map[string]any{}
	for key, entry := range rec {
		if IsEmptyValue(entry.Value) {
			continue
		}
		vars[normalizeKey(key)] = entry.Value
	}
	return vars
}

// Resolve returns the source bindings for one mapping key.
func (r *Resolver) Resolve(key string) ([]SourceBinding, error) {
	switch key {
	case SourceFiles:
		return r.resolveFiles()
	case SourceProjects:
		return r.resolveProjects()
	case SourceAgent:
		return r.resolveAgent()
	default:
		return r.resolveKey(key)
	}
}

func (r *Resolver) resolveFiles() ([]SourceBinding, error) {
	if len(r.fileRecords) != len(r.ctx.DownloadFiles) {
		return nil, NewCountMismatchError(
			"file metadata count %d does not match download file count %d",
			len(r.fileRecords), len(r.ctx.DownloadFiles))
	}

	bindings := make([]SourceBinding, 0, len(r.fileRecords))
	for i, rec := range r.fileRecords {
		value := map[string]any{
			"filename": r.ctx.DownloadFiles[i].Name,
			"format":   r.ctx.DownloadFiles[i].MIMEType,
		}
		for key, entry := range rec {
			if IsEmptyValue(entry.Value) {
				continue
			}
			value[normalizeKey(key)] = entry.Value
		}

		vars := r.baseVariables(commonVariables(rec), r.projectVars)
		bindings = append(bindings, SourceBinding{
			Entry:     metadata.Entry{Value: value},
			Variables: vars,
		})
	}
	return bindings, nil
}

func (r *Resolver) resolveProjects() ([]SourceBinding, error) {
	bindings := make([]SourceBinding, 0, len(r.ctx.ProjectMetadata))
	for _, rec := range r.ctx.ProjectMetadata {
		value := map[string]any{}
		for key, entry := range rec {
			if IsEmptyValue(entry.Value) {
				continue
			}
			value[normalizeKey(key)] = entry.Value
		}

		vars := r.baseVariables(commonVariables(rec), r.fileVars)
		bindings = append(bindings, SourceBinding{
			Entry:     metadata.Entry{Value: value},
			Variables: vars,
		})
	}
	return bindings, nil
}

func (r *Resolver) resolveAgent() ([]SourceBinding, error) {
	attrs := r.ctx.User.SerializableAttributes()
	if r.ctx.NodeID != "" {
		if raw, ok := attrs["absolute_url"].(string); ok {
			attrs["absolute_url"] = rewriteNodeURL(raw, r.ctx.NodeID)
		}
	}

	return []SourceBinding{{
		Entry:     metadata.Entry{Value: attrs},
		Variables: r.baseVariables(r.fileVars, r.projectVars),
	}}, nil
}

func (r *Resolver) resolveKey(key string) ([]SourceBinding, error) {
	all := make([]metadata.Record, 0, len(r.ctx.ProjectMetadata)+len(r.fileRecords))
	all = append(all, r.ctx.ProjectMetadata...)
	all = append(all, r.fileRecords...)

	merged, err := Merge(all, []string{key})
	if err != nil {
		return nil, err
	}

	return []SourceBinding{{
		Entry:     merged[key],
		Variables: r.baseVariables(r.fileVars, r.projectVars),
	}}, nil
}

// baseVariables layers the given contexts over the per-run builtins.
func (r *Resolver) baseVariables(contexts ...map[string]any) map[string]any {
	vars := map[string]any{
		"nowdate": r.ctx.now().Format("2006-01-02"),
	}
	for _, ctx := range contexts {
		for name, value := range ctx {
			vars[name] = value
		}
	}
	return vars
}

// rewriteNodeURL rewrites an absolute URL to point at the exported node.
func rewriteNodeURL(raw, nodeID string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host + "/" + nodeID + "/"
}
