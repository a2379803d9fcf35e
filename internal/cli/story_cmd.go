package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vampirenirmal/chapterforge/internal/session"
	"github.com/vampirenirmal/chapterforge/internal/setup"
	"github.com/vampirenirmal/chapterforge/internal/storage"
	"github.com/vampirenirmal/chapterforge/internal/story"
)

func parseChapter(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("chapter must be a positive number, got %q", arg)
	}
	return n, nil
}

func newNewCmd(app *App) *cobra.Command {
	var templatePath, title, genre, level, mode, systemPrompt string
	var chapters int
	var outline bool

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a story from flags or a YAML template",
		Long: `Create a story from flags or a YAML template.

A template that sets per-chapter criteria generates the outline straight away so the
criteria can be attached to their chapters. Print a starting template with --example.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var tmpl *setup.Template
			if templatePath != "" {
				t, err := setup.Load(templatePath)
				if err != nil {
					return err
				}
				tmpl = t
			} else {
				if title == "" || genre == "" {
					return fmt.Errorf("--title and --genre are required without --template")
				}
				tmpl = &setup.Template{
					Title: title, Genre: genre, Chapters: chapters,
					ReadingLevel: level, Mode: mode, SystemPrompt: systemPrompt,
				}
				if level != "" {
					if _, err := story.ParseReadingLevel(level); err != nil {
						return err
					}
				}
			}

			st, err := tmpl.Story(app.now())
			if err != nil {
				return err
			}
			sess, err := app.Manager.Create(ctx, st)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Created %q (%s)\n", st.Title, sess.ID())

			if !outline && len(tmpl.Criteria) == 0 {
				return nil
			}
			if err := generateOutline(cmd, sess); err != nil {
				return err
			}
			for _, n := range tmpl.CriteriaChapters() {
				criteria := tmpl.Criteria[n]
				if _, err := sess.UpdateChapter(n, session.ChapterPatch{AcceptanceCriteria: &criteria}); err != nil {
					app.logger().Warn("criteria not applied", "chapter", n, "error", err)
					fmt.Fprintf(out, "Criteria for chapter %d skipped: %v\n", n, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&templatePath, "template", "", "YAML story template")
	cmd.Flags().StringVar(&title, "title", "", "story title")
	cmd.Flags().StringVar(&genre, "genre", "", "story genre")
	cmd.Flags().IntVar(&chapters, "chapters", 10, "number of chapters (fixed mode)")
	cmd.Flags().StringVar(&level, "level", "adult", "reading level: elementary, middle-grade, young-adult, adult")
	cmd.Flags().StringVar(&mode, "mode", "fixed", "fixed or continuous")
	cmd.Flags().StringVar(&systemPrompt, "system-prompt", "", "writer system prompt for this story")
	cmd.Flags().BoolVar(&outline, "outline", false, "generate the outline after creating the story")
	cmd.AddCommand(&cobra.Command{
		Use:         "example",
		Short:       "Print an example story template",
		Annotations: map[string]string{skipConnect: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), setup.Example)
			return err
		},
	})

	return cmd
}

func newListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stories",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := app.Manager.List(cmd.Context())
			if err != nil {
				return err
			}
			printStories(cmd.OutOrStdout(), list, app.now())
			return nil
		},
	}
}

func newShowCmd(app *App) *cobra.Command {
	var chapter int
	var content bool

	cmd := &cobra.Command{
		Use:   "show <story>",
		Short: "Show a story's outline, or one chapter with --chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if chapter == 0 {
				printStory(cmd.OutOrStdout(), sess.Snapshot())
				return nil
			}
			ch, err := sess.Chapter(chapter)
			if err != nil {
				return err
			}
			printChapter(cmd.OutOrStdout(), ch, content)
			return nil
		},
	}

	cmd.Flags().IntVarP(&chapter, "chapter", "c", 0, "chapter to show")
	cmd.Flags().BoolVar(&content, "content", false, "print the chapter prose")
	return cmd
}

func newDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <story>",
		Aliases: []string{"rm"},
		Short:   "Delete a story",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			title := sess.Snapshot().Title
			if err := app.Manager.Delete(cmd.Context(), sess.ID()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", title)
			return nil
		},
	}
}

func newExportCmd(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <story>",
		Short: "Write a story to a portable JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "-" {
				return app.Manager.Export(cmd.Context(), sess.ID(), cmd.OutOrStdout())
			}
			if output == "" {
				output = storage.ExportFileName(sess.Snapshot().Title, app.now())
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating export file: %w", err)
			}
			if err := app.Manager.Export(cmd.Context(), sess.ID(), f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", filepath.Clean(output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default <date>_<title>.json)")
	return cmd
}

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import an exported story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			sess, err := app.Manager.Import(cmd.Context(), f)
			if err != nil {
				return err
			}
			st := sess.Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %q (%s) with %d chapters\n", st.Title, sess.ID(), len(st.Outline))
			return nil
		},
	}
}
