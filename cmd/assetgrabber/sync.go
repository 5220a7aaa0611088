package main

import (
	"github.com/spf13/cobra"

	"github.com/assetgrabber/assetgrabber/internal/importer"
	"github.com/assetgrabber/assetgrabber/internal/syncer"
)

var (
	syncAction  string
	syncPlugins []string
	syncForce   bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Detect changed catalog entries and import their metadata",
	Long: `Compute the set of catalog entries that changed since the last recorded
revision for the given action (or pull the whole listing on a first run),
then fetch and import each entry's metadata.

Per-entry failures are logged and counted; they never fail the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		engine, err := syncer.New(ctx, a.client, a.repos.Revisions(a.db), a.store, a.log)
		if err != nil {
			return err
		}

		if _, err := engine.IdentifyCurrentRevision(ctx, syncForce); err != nil {
			return err
		}

		candidates, err := engine.ListCandidates(ctx, syncAction, syncPlugins)
		if err != nil {
			return err
		}
		a.log.Info(ctx, "candidates computed", "action", syncAction, "count", len(candidates))

		pipeline := importer.New(a.db, a.repos, a.log)
		report := pipeline.ImportAll(ctx, candidates, a.client)

		// The fast path observes no revision; recording would persist a
		// stale duplicate.
		if _, ok := engine.Observed(syncAction); ok {
			if err := engine.RecordRevision(ctx, syncAction); err != nil {
				return err
			}
		}
		if err := engine.PreserveBaseline(candidates); err != nil {
			return err
		}

		a.log.Info(ctx, "sync finished", "action", syncAction,
			"imported", report.Imported, "skipped", report.Skipped, "failed", report.Failed)
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncAction, "action", "meta:import", "sync action name (independent revision watermark)")
	syncCmd.Flags().StringSliceVar(&syncPlugins, "plugins", nil, "import only these slugs, even if unchanged")
	syncCmd.Flags().BoolVar(&syncForce, "force-head", false, "bypass the cached changelog when identifying the head revision")
	rootCmd.AddCommand(syncCmd)
}
