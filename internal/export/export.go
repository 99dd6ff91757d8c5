// Package export generates the two serializations of one metadata item:
// the tabular import CSV and the RO-Crate JSON-LD graph.
package export

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"metadata-export/internal/engine"
	"metadata-export/internal/metadata"
)

// Request carries the inputs of one document generation. Requests are
// independent; concurrent generations never share walker or counter state.
type Request struct {
	User            *metadata.User
	TargetIndex     metadata.Index
	DownloadFiles   []metadata.DownloadFile
	SchemaID        string
	FileMetadata    []metadata.FileMetadata
	ProjectMetadata []metadata.Record
	NodeID          string

	// Now pins timestamp fields like nowdate; zero means wall-clock time.
	Now time.Time
}

// AvailableSchemaID returns the first schema id among the files' metadata
// items that has registered mapping documents.
func AvailableSchemaID(reg *metadata.Registry, files []metadata.FileMetadata) (string, error) {
	for _, fm := range files {
		for _, item := range fm.Items {
			if reg.HasSchema(item.SchemaID) {
				return item.SchemaID, nil
			}
		}
	}
	return "", engine.NewConfigurationError("no registered schema matches the file metadata")
}

// WriteCSV generates the tabular import document and writes it to w.
func WriteCSV(w io.Writer, reg *metadata.Registry, req Request) error {
	stream, doc, err := generate(reg, req, metadata.DestinationCSV)
	if err != nil {
		return err
	}
	leading, trailing := systemColumns(req)
	return writeCSVDocument(w, doc.ItemType, stream, leading, trailing)
}

// WriteROCrateJSON generates the RO-Crate linked-data document and writes
// it to w.
func WriteROCrateJSON(w io.Writer, reg *metadata.Registry, req Request) error {
	stream, _, err := generate(reg, req, metadata.DestinationROCrate)
	if err != nil {
		return err
	}

	root, err := BuildHierarchy(stream)
	if err != nil {
		return err
	}
	graph, err := FlattenGraph(root)
	if err != nil {
		return err
	}
	return writeCrate(w, graph)
}

// generate runs one walk of the registered mapping document for the given
// destination and returns the emission stream.
func generate(reg *metadata.Registry, req Request, destination string) ([]engine.Emission, *metadata.MappingDocument, error) {
	runLog := log.With().
		Str("run_id", uuid.NewString()).
		Str("schema", req.SchemaID).
		Str("destination", destination).
		Logger()

	doc := reg.Mapping(req.SchemaID, destination)
	if doc == nil {
		return nil, nil, engine.NewConfigurationError(
			"no mapping rules registered for schema %q destination %q", req.SchemaID, destination)
	}
	schema := reg.Schema(req.SchemaID)
	if schema == nil {
		return nil, nil, engine.NewConfigurationError("no question schema registered for %q", req.SchemaID)
	}

	gc := &engine.GenerationContext{
		User:            req.User,
		TargetIndex:     req.TargetIndex,
		SchemaID:        req.SchemaID,
		FileMetadata:    req.FileMetadata,
		DownloadFiles:   req.DownloadFiles,
		ProjectMetadata: req.ProjectMetadata,
		NodeID:          req.NodeID,
		Now:             req.Now,
	}

	resolver, err := engine.NewResolver(gc, runLog)
	if err != nil {
		return nil, nil, err
	}

	walker := engine.NewWalker(engine.NewEvaluator(runLog), resolver, engine.NewIndexTable(), schema, runLog)
	stream, err := walker.Run(doc)
	if err != nil {
		return nil, nil, err
	}

	runLog.Debug().Int("emissions", len(stream)).Msg("generation complete")
	return stream, doc, nil
}
