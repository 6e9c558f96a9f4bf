package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hrygo/studypulse/plugin/study/graph"
	"github.com/hrygo/studypulse/server/runner/conceptsync"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the concept graph",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		o, err := owner()
		if err != nil {
			return err
		}
		g, err := a.service.ConceptGraph(cmd.Context(), o, graph.Config{})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), g)
	}),
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank the concepts to study next",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		o, err := owner()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		recs, err := a.service.Recommendations(cmd.Context(), o, limit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), recs)
	}),
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Derive concepts from revision items",
	Long:  "Derive concepts from the owner's revision items, or from every owner's items with --all.",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		if all, _ := cmd.Flags().GetBool("all"); all {
			report, err := a.service.SyncAll(cmd.Context())
			if err != nil {
				return err
			}
			failed := make(map[string]string, len(report.Failed))
			for owner, err := range report.Failed {
				failed[owner] = err.Error()
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"owners":   report.Owners,
				"concepts": report.Concepts,
				"failed":   failed,
			})
		}

		o, err := owner()
		if err != nil {
			return err
		}
		n, err := a.service.SyncFromRevisions(cmd.Context(), o)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]int{"concepts": n})
	}),
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the periodic concept sync until interrupted",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		if a.profile.SyncInterval == 0 {
			slog.Warn("sync interval is zero, nothing to run")
			return nil
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return conceptsync.NewRunner(a.service, a.profile.SyncInterval).Run(ctx)
	}),
}

func init() {
	recommendCmd.Flags().Int("limit", 0, "number of recommendations, 0 uses the configured default")
	syncCmd.Flags().Bool("all", false, "sync every owner")
}
