package main

import (
	"github.com/spf13/cobra"

	"github.com/hrygo/studypulse/plugin/study/review"
	"github.com/hrygo/studypulse/server/service/study"
)

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage SM-2 revision items",
}

var itemCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a revision item",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		o, err := owner()
		if err != nil {
			return err
		}
		title, _ := cmd.Flags().GetString("title")
		content, _ := cmd.Flags().GetString("content")
		subject, _ := cmd.Flags().GetString("subject")
		tags, _ := cmd.Flags().GetStringSlice("tags")

		item, err := a.service.CreateRevisionItem(cmd.Context(), o, &study.CreateRevisionItemRequest{
			Title:   title,
			Content: content,
			Subject: subject,
			Tags:    tags,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), item)
	}),
}

var itemReviewCmd = &cobra.Command{
	Use:   "review [id]",
	Short: "Record a 0-5 review of an item",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		o, err := owner()
		if err != nil {
			return err
		}
		quality, _ := cmd.Flags().GetInt("quality")
		item, err := a.service.ReviewRevisionItem(cmd.Context(), o, args[0], review.Quality(quality))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), item)
	}),
}

var itemArchiveCmd = &cobra.Command{
	Use:   "archive [id]",
	Short: "Archive an item",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		o, err := owner()
		if err != nil {
			return err
		}
		item, err := a.service.ArchiveRevisionItem(cmd.Context(), o, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), item)
	}),
}

var itemDueCmd = &cobra.Command{
	Use:   "due",
	Short: "List items due for review",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		o, err := owner()
		if err != nil {
			return err
		}
		due, err := a.service.DueRevisionItems(cmd.Context(), o)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), due)
	}),
}

var itemStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the owner's items",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		o, err := owner()
		if err != nil {
			return err
		}
		stats, err := a.service.RevisionStatistics(cmd.Context(), o)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), stats)
	}),
}

func init() {
	itemCreateCmd.Flags().String("title", "", "item title")
	itemCreateCmd.Flags().String("content", "", "item content (markdown)")
	itemCreateCmd.Flags().String("subject", "", "subject the item belongs to")
	itemCreateCmd.Flags().StringSlice("tags", nil, "comma separated tags")

	itemReviewCmd.Flags().Int("quality", int(review.QualityCorrectHesitation), "recall quality from 0 (blackout) to 5 (perfect)")

	itemCmd.AddCommand(itemCreateCmd, itemReviewCmd, itemArchiveCmd, itemDueCmd, itemStatsCmd)
}
