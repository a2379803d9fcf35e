package cli

import (
	"github.com/spf13/cobra"
)

const skipConnect = "skip-connect"

// NewRootCmd creates the top-level "chapterforge" command and registers every subcommand.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "chapterforge",
		Short:         "Plan and write long-form fiction with a language model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app.setupLogging()
			if cmd.Annotations[skipConnect] == "true" {
				return nil
			}
			return app.connect()
		},
	}

	root.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "config file (default $CHAPTERFORGE_CONFIG or ~/.config/chapterforge/config.yaml)")
	root.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newNewCmd(app),
		newListCmd(app),
		newShowCmd(app),
		newDeleteCmd(app),
		newOutlineCmd(app),
		newWriteCmd(app),
		newNextCmd(app),
		newPromptCmd(app),
		newRegenerateCmd(app),
		newUndoCmd(app),
		newEditCmd(app),
		newValidationCmd(app),
		newForeshadowCmd(app),
		newCriteriaCmd(app),
		newOutcomesCmd(app),
		newExportCmd(app),
		newImportCmd(app),
		newConfigCmd(app),
		newServeCmd(app),
	)

	return root
}
