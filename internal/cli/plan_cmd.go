package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vampirenirmal/chapterforge/internal/foreshadow"
	"github.com/vampirenirmal/chapterforge/internal/session"
	"github.com/vampirenirmal/chapterforge/internal/story"
)

func newForeshadowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "foreshadow",
		Aliases: []string{"fs"},
		Short:   "Plan reveals and the hints that lead up to them",
	}

	cmd.AddCommand(
		newForeshadowAddCmd(app),
		newForeshadowListCmd(app),
		newForeshadowUpdateCmd(app),
		newForeshadowDeleteCmd(app),
	)
	return cmd
}

func newForeshadowAddCmd(app *App) *cobra.Command {
	var chapter int
	var reveal, hint string

	cmd := &cobra.Command{
		Use:   "add <story>",
		Short: "Add a reveal for a chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			n, err := sess.AddNote(story.ForeshadowingNote{
				TargetChapterID:   chapter,
				RevealDescription: reveal,
				ForeshadowingHint: hint,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added note %s for chapter %d\n", n.ID, n.TargetChapterID)
			return nil
		},
	}

	cmd.Flags().IntVar(&chapter, "chapter", 0, "chapter where the reveal happens")
	cmd.Flags().StringVar(&reveal, "reveal", "", "what is revealed")
	cmd.Flags().StringVar(&hint, "hint", "", "how earlier chapters should hint at it")
	_ = cmd.MarkFlagRequired("chapter")
	_ = cmd.MarkFlagRequired("reveal")
	return cmd
}

func newForeshadowListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list <story>",
		Short: "List foreshadowing notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printNotes(cmd.OutOrStdout(), sess.Notes(), app.now())
			printStaleReveals(cmd.OutOrStdout(), sess.StaleReveals())
			return nil
		},
	}
}

func newForeshadowUpdateCmd(app *App) *cobra.Command {
	var chapter int
	var reveal, hint string

	cmd := &cobra.Command{
		Use:   "update <story> <note-id>",
		Short: "Change a foreshadowing note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p foreshadow.Patch
			if cmd.Flags().Changed("chapter") {
				p.TargetChapterID = &chapter
			}
			if cmd.Flags().Changed("reveal") {
				p.RevealDescription = &reveal
			}
			if cmd.Flags().Changed("hint") {
				p.ForeshadowingHint = &hint
			}

			sess, err := app.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			n, err := sess.UpdateNote(args[1], p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated note %s (chapter %d)\n", n.ID, n.TargetChapterID)
			return nil
		},
	}

	cmd.Flags().IntVar(&chapter, "chapter", 0, "chapter where the reveal happens")
	cmd.Flags().StringVar(&reveal, "reveal", "", "what is revealed")
	cmd.Flags().StringVar(&hint, "hint", "", "how earlier chapters should hint at it")
	return cmd
}

func newForeshadowDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <story> <note-id>",
		Short: "Delete a foreshadowing note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := sess.DeleteNote(args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted note %s\n", args[1])
			return nil
		},
	}
}

func newOutcomesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outcomes",
		Short: "Pick where a continuous story goes next",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list <story>",
			Short: "Show the current suggestions",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, err := app.open(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printOutcomes(cmd.OutOrStdout(), sess.Outcomes())
				return nil
			},
		},
		&cobra.Command{
			Use:   "refresh <story>",
			Short: "Ask for a new set of suggestions",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, err := app.open(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				outcomes, err := sess.RefreshOutcomes(cmd.Context())
				if err != nil {
					return err
				}
				printOutcomes(cmd.OutOrStdout(), outcomes)
				return nil
			},
		},
		&cobra.Command{
			Use:   "choose <story> <number>",
			Short: "Add the chosen suggestion as the next chapter",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[1])
				if err != nil || n < 1 {
					return fmt.Errorf("suggestion must be a positive number, got %q", args[1])
				}
				sess, err := app.open(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				ch, err := sess.ChooseOutcome(n - 1)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Chapter %d %q added to the outline\n", ch.ID, ch.Title)
				return nil
			},
		},
	)
	return cmd
}

func newCriteriaCmd(app *App) *cobra.Command {
	var set string

	cmd := &cobra.Command{
		Use:   "criteria <story> <chapter>",
		Short: "Set a chapter's acceptance criteria, or refresh its reveals",
		Long: `Without --set the chapter keeps its own criteria text and the foreshadowing reveals
are rebuilt from the current notes, which drops reveals no note asks for any more.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChapter(args[1])
			if err != nil {
				return err
			}
			sess, err := app.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			text := set
			if !cmd.Flags().Changed("set") {
				ch, err := sess.Chapter(id)
				if err != nil {
					return err
				}
				text = ch.AcceptanceCriteria
			}
			ch, err := sess.UpdateChapter(id, session.ChapterPatch{AcceptanceCriteria: &text})
			if err != nil {
				return err
			}
			if ch.AcceptanceCriteria == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Chapter %d has no criteria\n", ch.ID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chapter %d criteria:\n%s\n", ch.ID, ch.AcceptanceCriteria)
			return nil
		},
	}

	cmd.Flags().StringVar(&set, "set", "", "new criteria text")
	return cmd
}
