package cli

import (
	"github.com/spf13/cobra"

	"github.com/kkdl-dev/kkdl/internal/quiz"
)

func newQuizCommand(opts *rootOptions) *cobra.Command {
	var sep bool

	cmd := &cobra.Command{
		Use:   "dl-quiz",
		Short: "Download quiz questions and answers as Markdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd, map[string]string{"output-dir": "download.output_dir"})
			if err != nil {
				return err
			}
			defer a.Close()

			// Quizzes are public; credentials from config or environment are sent when present.
			client, err := a.Client(a.Credentials())
			if err != nil {
				return err
			}

			w := quiz.NewWriter(client, a.Logger, a.Config.Download.OutputDir)
			paths, err := w.Download(cmd.Context(), sep)
			if err != nil {
				return err
			}

			a.Logger.Info("Wrote %d markdown file(s)", len(paths))
			return nil
		},
	}

	cmd.Flags().StringP("output-dir", "o", "", "Output directory (default ~/Downloads)")
	cmd.Flags().BoolVar(&sep, "sep", false, "Write one markdown file per quiz")

	return cmd
}
