package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/assetgrabber/assetgrabber/internal/importer"
)

var importMetaCmd = &cobra.Command{
	Use:   "import-meta",
	Short: "Import cached raw metadata files into the database",
	Long: `Scan the raw-metadata cache directory and import every .json file.
Already-imported entries are skipped; unreadable or invalid files are
counted as failures. The command exits 0 regardless of per-file failures.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		dir := filepath.Join(a.cfg.DataDir, "plugin-raw-data")
		files, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("scan %s: %w", dir, err)
		}

		pipeline := importer.New(a.db, a.repos, a.log)
		var report importer.Report

		a.log.Info(ctx, "importing cached metadata", "dir", dir, "files", len(files))
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			slug := strings.TrimSuffix(f.Name(), ".json")
			path := filepath.Join(dir, f.Name())

			data, err := os.ReadFile(path)
			if err != nil {
				a.log.Error(ctx, "read failed", "file", path, "err", err)
				report.Failed++
				continue
			}
			var meta map[string]any
			if err := json.Unmarshal(data, &meta); err != nil {
				a.log.Error(ctx, "decode failed", "file", path, "err", err)
				report.Failed++
				continue
			}

			// pulled_at reflects when the raw response was fetched
			pulledAt := time.Now()
			if info, err := f.Info(); err == nil {
				pulledAt = info.ModTime()
			}

			report.Observe(ctx, a.log, slug, pipeline.Import(ctx, meta, pulledAt))
		}

		a.log.Info(ctx, "import finished",
			"imported", report.Imported, "skipped", report.Skipped, "failed", report.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importMetaCmd)
}
