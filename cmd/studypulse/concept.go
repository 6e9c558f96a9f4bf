package main

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/studypulse/plugin/study/mastery"
	"github.com/hrygo/studypulse/server/service/study"
)

var conceptCmd = &cobra.Command{
	Use:   "concept",
	Short: "Track concept mastery",
}

var conceptUpsertCmd = &cobra.Command{
	Use:   "upsert [name]",
	Short: "Create a concept or edit its identity fields",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		o, err := owner()
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		upsert := &study.UpsertConceptRequest{ConceptName: args[0]}
		if flags.Changed("subject") {
			subject, _ := flags.GetString("subject")
			upsert.Subject = &subject
		}
		if flags.Changed("tags") {
			upsert.Tags, _ = flags.GetStringSlice("tags")
		}
		if flags.Changed("importance") {
			importance, _ := flags.GetFloat64("importance")
			upsert.Importance = &importance
		}
		if flags.Changed("difficulty") {
			difficulty, _ := flags.GetFloat64("difficulty")
			upsert.Difficulty = &difficulty
		}
		if flags.Changed("prereq") {
			raw, _ := flags.GetStringSlice("prereq")
			if upsert.Prerequisites, err = parseRelations(raw); err != nil {
				return err
			}
		}

		c, err := a.service.UpsertConcept(cmd.Context(), o, upsert)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), c)
	}),
}

var conceptActivityCmd = &cobra.Command{
	Use:   "activity [name-or-key]",
	Short: "Record a scored activity on a concept",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		o, err := owner()
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		score, _ := flags.GetFloat64("score")
		fraction, _ := flags.GetBool("fraction")
		source, _ := flags.GetString("source")
		subject, _ := flags.GetString("subject")
		tags, _ := flags.GetStringSlice("tags")
		difficultyShift, _ := flags.GetFloat64("difficulty-shift")
		importanceShift, _ := flags.GetFloat64("importance-shift")

		event := mastery.ActivityEvent{
			Score:           mastery.Percent(score),
			DifficultyShift: difficultyShift,
			ImportanceShift: importanceShift,
			Source:          mastery.Source(source),
		}
		if fraction {
			event.Score = mastery.Fraction(score)
		}

		activity := &study.RecordActivityRequest{
			ConceptName: args[0],
			Subject:     subject,
			Tags:        tags,
			Event:       event,
		}
		if byKey, _ := flags.GetBool("key"); byKey {
			activity.ConceptKey = args[0]
		}

		c, err := a.service.RecordActivity(cmd.Context(), o, activity)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), c)
	}),
}

var conceptMasterCmd = &cobra.Command{
	Use:   "master [key]",
	Short: "Mark a concept as mastered",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		o, err := owner()
		if err != nil {
			return err
		}
		c, err := a.service.MarkMastered(cmd.Context(), o, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), c)
	}),
}

var conceptListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the owner's concepts",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		o, err := owner()
		if err != nil {
			return err
		}
		due, _ := cmd.Flags().GetBool("due")
		var list []*mastery.ConceptMastery
		if due {
			list, err = a.service.DueConcepts(cmd.Context(), o)
		} else {
			list, err = a.service.ListConcepts(cmd.Context(), o)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), list)
	}),
}

// parseRelations reads key=strength pairs. A bare key gets strength 1.
func parseRelations(raw []string) ([]mastery.Relation, error) {
	relations := make([]mastery.Relation, 0, len(raw))
	for _, r := range raw {
		key, strength, found := strings.Cut(r, "=")
		rel := mastery.Relation{ConceptKey: strings.TrimSpace(key), Strength: 1}
		if found {
			v, err := strconv.ParseFloat(strings.TrimSpace(strength), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid strength in %q", r)
			}
			rel.Strength = v
		}
		relations = append(relations, rel)
	}
	return relations, nil
}

func init() {
	upsertFlags := conceptUpsertCmd.Flags()
	upsertFlags.String("subject", "", "subject the concept belongs to")
	upsertFlags.StringSlice("tags", nil, "comma separated tags")
	upsertFlags.Float64("importance", mastery.DefaultImportance, "importance from 0 to 1")
	upsertFlags.Float64("difficulty", mastery.DefaultDifficulty, "difficulty from 0 to 1")
	upsertFlags.StringSlice("prereq", nil, "prerequisites as key=strength")

	activityFlags := conceptActivityCmd.Flags()
	activityFlags.Float64("score", 0, "observed score, 0-100 unless --fraction")
	activityFlags.Bool("fraction", false, "treat --score as a 0-1 fraction")
	activityFlags.String("source", string(mastery.SourceManual), "manual, quiz, review or sync")
	activityFlags.String("subject", "", "subject used when the concept is created")
	activityFlags.StringSlice("tags", nil, "tags used when the concept is created")
	activityFlags.Float64("difficulty-shift", 0, "difficulty adjustment")
	activityFlags.Float64("importance-shift", 0, "importance adjustment")
	activityFlags.Bool("key", false, "treat the argument as a concept key")

	conceptListCmd.Flags().Bool("due", false, "only concepts due for review")

	conceptCmd.AddCommand(conceptUpsertCmd, conceptActivityCmd, conceptMasterCmd, conceptListCmd)
}
