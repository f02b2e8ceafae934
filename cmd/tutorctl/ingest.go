package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ai-tutoring-be/internal/bootstrap"
	"ai-tutoring-be/internal/config"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/pkg/ai/gateway"
	"ai-tutoring-be/pkg/database"
	"ai-tutoring-be/pkg/ingest"
	"ai-tutoring-be/pkg/utils"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest --scope <scope> <file>...",
	Short: "Extract, chunk and index files into the configured vector store",
	Long:  "Each file becomes one source keyed by its base name. Re-ingesting a file replaces the chunks indexed for it before.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, _ := cmd.Flags().GetString("scope")
		if strings.TrimSpace(scope) == "" {
			return fmt.Errorf("--scope is required")
		}
		verbose, _ := cmd.Flags().GetBool("verbose")

		cfg := config.Load()
		log := logger.NewConsoleLogger(verbose)
		defer log.Sync()

		var db *gorm.DB
		if cfg.UsesPgVector() && cfg.Database.Connection != "" && !strings.HasPrefix(cfg.Ai.VectorStoreURL, "postgres") {
			var err error
			db, err = database.NewGormDBFromDSN(cfg.Database.Connection)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
		}

		retrieval, err := bootstrap.NewRetrieval(cfg, db, log)
		if err != nil {
			return err
		}
		if err := retrieval.Ready(); err != nil {
			return err
		}

		return ingestFiles(cmd.Context(), retrieval, cfg.Tuning.Chunking, gateway.CollectionKey(scope), args)
	},
}

func init() {
	ingestCmd.Flags().String("scope", "", "Owning course or activity id")
}

func ingestFiles(ctx context.Context, retrieval gateway.RetrievalGateway, chunking config.ChunkingTuning, collection string, files []string) error {
	extractor := ingest.NewExtractor()
	bar := progressbar.Default(int64(len(files)), "Indexing")

	var failed int
	total := 0
	for _, path := range files {
		n, err := ingestFile(ctx, extractor, retrieval, chunking, collection, path)
		_ = bar.Add(1)
		if err != nil {
			failed++
			color.Red("\n%s: %v", path, err)
			continue
		}
		total += n
	}

	color.Green("\nIndexed %d chunks from %d of %d files into %s", total, len(files)-failed, len(files), collection)
	if failed > 0 {
		return fmt.Errorf("%d files failed", failed)
	}
	return nil
}

func ingestFile(ctx context.Context, extractor *ingest.Extractor, retrieval gateway.RetrievalGateway, chunking config.ChunkingTuning, collection, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	sourceType, err := ingest.DetectType(path, data)
	if err != nil {
		return 0, err
	}

	name := filepath.Base(path)
	key := strings.TrimSuffix(name, filepath.Ext(name))
	doc, err := extractor.Extract(key, sourceType, data)
	if err != nil {
		return 0, err
	}

	size, overlap := chunking.ChunkWindowFor(doc.SourceType)
	return retrieval.Index(ctx, collection, key, utils.SplitText(doc.Text, size, overlap))
}
