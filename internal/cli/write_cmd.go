package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vampirenirmal/chapterforge/internal/session"
	"github.com/vampirenirmal/chapterforge/internal/story"
)

func generateOutline(cmd *cobra.Command, sess *session.Session) error {
	outline, err := sess.GenerateOutline(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Outline with %d %s:\n", len(outline), plural(len(outline), "chapter", "chapters"))
	for _, ch := range outline {
		fmt.Fprintf(out, "  %2d. %s: %s\n", ch.ID, ch.Title, ch.Summary)
	}
	return nil
}

func reportChapter(cmd *cobra.Command, ch story.Chapter) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Chapter %d %q written (%s words)\n", ch.ID, ch.Title, humanize.Comma(int64(wordCount(ch.Content))))
	if ch.AwaitingDecision() {
		fmt.Fprintf(out, "  Validation failed: %s\n", ch.ValidationResult.Feedback)
		fmt.Fprintf(out, "  Decide with: chapterforge validation accept|retry <story> %d\n", ch.ID)
	}
}

func newOutlineCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "outline <story>",
		Short: "Generate the chapter outline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return generateOutline(cmd, sess)
		},
	}
}

func newWriteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "write <story>",
		Short: "Write every remaining chapter in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			before := sess.Snapshot()

			n, err := sess.WriteAll(cmd.Context())
			after := sess.Snapshot()
			for i, ch := range after.Outline {
				if i < len(before.Outline) && before.Outline[i].Status == story.StatusCompleted {
					continue
				}
				if ch.Status == story.StatusCompleted {
					reportChapter(cmd, ch)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d %s. Story is at step %s.\n", n, plural(n, "chapter", "chapters"), after.Step)
			return nil
		},
	}
}

func newNextCmd(app *App) *cobra.Command {
	var promptFile string

	cmd := &cobra.Command{
		Use:   "next <story>",
		Short: "Write the next chapter, optionally with your own prompt",
		Long: `Write the next pending chapter.

With --prompt-file the file's text is sent instead of the built prompt. Seed the file with
"chapterforge prompt <story> <chapter>" and edit it. Use - to read the prompt from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var custom string
			if promptFile != "" {
				text, err := readInput(cmd.InOrStdin(), promptFile)
				if err != nil {
					return err
				}
				if strings.TrimSpace(text) == "" {
					return errors.New("prompt file is empty")
				}
				custom = text
			}

			sess, err := app.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ch, err := sess.GenerateNext(cmd.Context(), custom)
			if err != nil {
				return err
			}
			reportChapter(cmd, ch)
			return nil
		},
	}

	cmd.Flags().StringVar(&promptFile, "prompt-file", "", "send this prompt instead of the built one")
	return cmd
}

func newPromptCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt <story> <chapter>",
		Short: "Print the prompt the next generation of a chapter would send",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChapter(args[1])
			if err != nil {
				return err
			}
			sess, err := app.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p, err := sess.PreviewPrompt(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func newRegenerateCmd(app *App) *cobra.Command {
	var feedback string

	cmd := &cobra.Command{
		Use:   "regenerate <story> <chapter>",
		Short: "Rewrite a completed chapter to address feedback",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChapter(args[1])
			if err != nil {
				return err
			}
			sess, err := app.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ch, err := sess.Regenerate(cmd.Context(), id, feedback)
			if err != nil {
				return err
			}
			reportChapter(cmd, ch)
			return nil
		},
	}

	cmd.Flags().StringVarP(&feedback, "feedback", "f", "", "what to change")
	_ = cmd.MarkFlagRequired("feedback")
	return cmd
}

func newUndoCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <story> <chapter>",
		Short: "Restore a chapter's previous version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChapter(args[1])
			if err != nil {
				return err
			}
			sess, err := app.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ch, err := sess.UndoRevision(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chapter %d restored (%d earlier %s left)\n",
				ch.ID, len(ch.Revisions), plural(len(ch.Revisions), "version", "versions"))
			return nil
		},
	}
}

func newEditCmd(app *App) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "edit <story> <chapter>",
		Short: "Replace a chapter's prose with your own text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChapter(args[1])
			if err != nil {
				return err
			}
			content, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			sess, err := app.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ch, err := sess.EditContent(id, content)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chapter %d updated (%s words)\n", ch.ID, humanize.Comma(int64(wordCount(ch.Content))))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "-", "file with the new prose, - for stdin")
	return cmd
}

func newValidationCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validation",
		Short: "Decide on chapters that failed their acceptance criteria",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "accept <story> <chapter>",
			Short: "Keep the chapter as written",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseChapter(args[1])
				if err != nil {
					return err
				}
				sess, err := app.open(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := sess.AcceptValidation(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Chapter %d accepted\n", id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "retry <story> <chapter>",
			Short: "Rewrite the chapter using the validator's feedback",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseChapter(args[1])
				if err != nil {
					return err
				}
				sess, err := app.open(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				ch, err := sess.RetryValidation(cmd.Context(), id)
				if err != nil {
					return err
				}
				reportChapter(cmd, ch)
				return nil
			},
		},
	)

	return cmd
}
