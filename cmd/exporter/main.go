package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"metadata-export/internal/config"
	"metadata-export/internal/export"
	"metadata-export/internal/logger"
	"metadata-export/internal/metadata"
)

// inputBundle is the JSON document describing one generation: the acting
// user, the target index, the file list, and the metadata documents.
type inputBundle struct {
	User            *metadata.User          `json:"user"`
	TargetIndex     metadata.Index          `json:"target_index"`
	SchemaID        string                  `json:"schema_id,omitempty"`
	FileMetadata    []metadata.FileMetadata `json:"file_metadatas"`
	DownloadFiles   []metadata.DownloadFile `json:"download_file_names"`
	ProjectMetadata []metadata.Record       `json:"project_metadatas"`
	NodeID          string                  `json:"node_id,omitempty"`
}

func main() {
	format := flag.String("format", "both", "output format: csv, ro-crate, or both")
	bundlePath := flag.String("bundle", "", "input bundle path (overrides config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	reg := metadata.NewRegistry()
	if cfg.Database.Enabled() {
		ctx := context.Background()
		pool, err := pgxpool.New(ctx, cfg.Database.ConnString())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		if err := metadata.LoadAll(ctx, pool, reg, log.Logger); err != nil {
			log.Fatal().Err(err).Msg("failed to load registered mappings")
		}
	} else {
		if err := metadata.LoadDir(cfg.Input.RulesDir, reg, log.Logger); err != nil {
			log.Fatal().Err(err).Msg("failed to load registered mappings")
		}
	}

	path := cfg.Input.Bundle
	if *bundlePath != "" {
		path = *bundlePath
	}
	bundle, err := readBundle(path)
	if err != nil {
		log.Fatal().Err(err).Str("bundle", path).Msg("failed to read input bundle")
	}

	schemaID := bundle.SchemaID
	if schemaID == "" {
		schemaID, err = export.AvailableSchemaID(reg, bundle.FileMetadata)
		if err != nil {
			log.Fatal().Err(err).Msg("no usable schema")
		}
	}

	req := export.Request{
		User:            bundle.User,
		TargetIndex:     bundle.TargetIndex,
		DownloadFiles:   bundle.DownloadFiles,
		SchemaID:        schemaID,
		FileMetadata:    bundle.FileMetadata,
		ProjectMetadata: bundle.ProjectMetadata,
		NodeID:          bundle.NodeID,
	}

	if *format == "csv" || *format == "both" {
		if err := writeFile(cfg.Output.Dir, metadata.DestinationCSV, func(f *os.File) error {
			return export.WriteCSV(f, reg, req)
		}); err != nil {
			log.Fatal().Err(err).Msg("csv generation failed")
		}
		log.Info().Str("file", metadata.DestinationCSV).Msg("wrote csv document")
	}

	if *format == "ro-crate" || *format == "both" {
		if err := writeFile(cfg.Output.Dir, metadata.DestinationROCrate, func(f *os.File) error {
			return export.WriteROCrateJSON(f, reg, req)
		}); err != nil {
			log.Fatal().Err(err).Msg("ro-crate generation failed")
		}
		log.Info().Str("file", metadata.DestinationROCrate).Msg("wrote ro-crate document")
	}
}

func readBundle(path string) (*inputBundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bundle inputBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

func writeFile(dir, name string, write func(*os.File) error) error {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer f.Close()

	if err := write(f); err != nil {
		return err
	}
	return f.Sync()
}
