package metadata

// Entry is one answered question: a scalar (or JSON-encoded) value plus an
// optional compound answer object.
type Entry struct {
	Value  any `json:"value"`
	Object any `json:"object,omitempty"`
}

// Record maps composite question keys ("namespace:field.language") to entries.
// Records are produced by the surrounding application and are immutable
// inputs to this engine.
type Record map[string]Entry

// FileMetadataItem is one metadata document authored against a schema.
type FileMetadataItem struct {
	SchemaID string `json:"schema"`
	Data     Record `json:"data"`
}

// FileMetadata is the set of metadata documents attached to one uploaded file.
type FileMetadata struct {
	Path  string             `json:"path,omitempty"`
	Items []FileMetadataItem `json:"items"`
}

// RecordFor returns the file's metadata record authored against the given
// schema, or an empty record when the file carries none.
func (f FileMetadata) RecordFor(schemaID string) Record {
	for _, item := range f.Items {
		if item.SchemaID == schemaID {
			return item.Data
		}
	}
	return Record{}
}

// DownloadFile is the display name and MIME type of one uploaded file,
// parallel to the FileMetadata list.
type DownloadFile struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
}

// Index is the storage index the generated item is filed under.
type Index struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
}
