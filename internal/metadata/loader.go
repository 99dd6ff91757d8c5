package metadata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// LoadAll reads all registered schemas and mapping documents from the
// database and populates the registry. Invalid blobs are skipped so that
// one broken registration cannot take down every export.
func LoadAll(ctx context.Context, pool *pgxpool.Pool, reg *Registry, log zerolog.Logger) error {
	schemas, err := loadSchemas(ctx, pool, reg, log)
	if err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}

	mappings, err := loadMappings(ctx, pool, reg, log)
	if err != nil {
		return fmt.Errorf("load mappings: %w", err)
	}

	log.Info().Int("schemas", schemas).Int("mappings", mappings).
		Msg("registered mapping documents loaded")
	return nil
}

func loadSchemas(ctx context.Context, pool *pgxpool.Pool, reg *Registry, log zerolog.Logger) (int, error) {
	rows, err := pool.Query(ctx,
		"SELECT schema_id, definition FROM _registered_schemas ORDER BY schema_id")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var schemaID string
		var defJSON []byte
		if err := rows.Scan(&schemaID, &defJSON); err != nil {
			return count, fmt.Errorf("scan schema row: %w", err)
		}

		schema, err := ParseSchema(defJSON)
		if err != nil {
			log.Warn().Str("schema", schemaID).Err(err).Msg("skipping invalid schema blob")
			continue
		}
		reg.RegisterSchema(schemaID, schema)
		count++
	}
	return count, rows.Err()
}

func loadMappings(ctx context.Context, pool *pgxpool.Pool, reg *Registry, log zerolog.Logger) (int, error) {
	rows, err := pool.Query(ctx,
		"SELECT schema_id, destination, rules FROM _registered_mappings ORDER BY schema_id, destination")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var schemaID, destination string
		var rulesJSON []byte
		if err := rows.Scan(&schemaID, &destination, &rulesJSON); err != nil {
			return count, fmt.Errorf("scan mapping row: %w", err)
		}

		doc, err := ParseMappingDocument(rulesJSON)
		if err != nil {
			log.Warn().Str("schema", schemaID).Str("destination", destination).Err(err).
				Msg("skipping invalid mapping blob")
			continue
		}
		reg.RegisterMapping(schemaID, destination, doc)
		count++
	}
	return count, rows.Err()
}

// mappingFiles maps on-disk file names to registry destinations for LoadDir.
var mappingFiles = map[string]string{
	"csv.json":      DestinationCSV,
	"ro-crate.json": DestinationROCrate,
}

// LoadDir populates the registry from a directory tree laid out as
// <dir>/<schema id>/{schema.json,csv.json,ro-crate.json}. Used by the CLI
// when no database is configured.
func LoadDir(dir string, reg *Registry, log zerolog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read rules dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		schemaID := entry.Name()

		raw, err := os.ReadFile(filepath.Join(dir, schemaID, "schema.json"))
		if err == nil {
			schema, err := ParseSchema(raw)
			if err != nil {
				log.Warn().Str("schema", schemaID).Err(err).Msg("skipping invalid schema file")
			} else {
				reg.RegisterSchema(schemaID, schema)
			}
		}

		for name, destination := range mappingFiles {
			raw, err := os.ReadFile(filepath.Join(dir, schemaID, name))
			if err != nil {
				continue
			}
			doc, err := ParseMappingDocument(raw)
			if err != nil {
				log.Warn().Str("schema", schemaID).Str("file", name).Err(err).
					Msg("skipping invalid mapping file")
				continue
			}
			reg.RegisterMapping(schemaID, destination, doc)
		}
	}
	return nil
}
