// Package cli wires the cobra commands onto the download and quiz services.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kkdl-dev/kkdl/internal/app"
	"github.com/kkdl-dev/kkdl/internal/domain"
	"github.com/kkdl-dev/kkdl/internal/infra/config"
	"github.com/kkdl-dev/kkdl/internal/infra/logger"
	"github.com/kkdl-dev/kkdl/internal/selector"
)

type rootOptions struct {
	verbose    int
	configPath string
	// selector overrides the interactive prompt; tests set it.
	selector app.Selector
}

// Execute runs the CLI and returns the process exit code: 0 on success (even when
// individual lectures failed), 2 on usage errors, 1 on anything that aborted the run.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return run(ctx, NewRootCommand(stdout, stderr, nil), args, stderr)
}

func run(ctx context.Context, cmd *cobra.Command, args []string, stderr io.Writer) int {
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	if errors.Is(err, domain.ErrUsage) {
		fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", cmd.CommandPath())
		return 2
	}
	return 1
}

func NewRootCommand(stdout, stderr io.Writer, sel app.Selector) *cobra.Command {
	opts := &rootOptions{selector: sel}

	root := &cobra.Command{
		Use:           "kkdl",
		Short:         "Download course videos and quizzes from KodeKloud",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", domain.ErrUsage, err)
	})

	root.PersistentFlags().CountVarP(&opts.verbose, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file")

	root.AddCommand(
		newDownloadCommand(opts),
		newQuizCommand(opts),
		newCoursesCommand(opts),
	)

	return root
}

// newApp loads configuration with the command's flags bound over it and builds the logger.
func (o *rootOptions) newApp(cmd *cobra.Command, bindings map[string]string) (*app.Context, error) {
	v := config.New()
	if err := bindFlags(v, cmd, bindings); err != nil {
		return nil, err
	}

	cfg, err := config.Load(v, o.configPath)
	if err != nil {
		return nil, err
	}

	level := logger.FromVerbosity(o.verbose, logger.ParseLevel(cfg.Log.Level))

	log := logger.New(cmd.ErrOrStderr(), level)
	if cfg.Log.Path != "" {
		if log, err = logger.NewWithFile(cmd.ErrOrStderr(), level, cfg.Log.Path); err != nil {
			return nil, err
		}
	}

	sel := o.selector
	switch {
	case len(cfg.Download.Courses) > 0:
		sel = selector.Slugs(cfg.Download.Courses...)
	case sel == nil:
		sel = &selector.Prompt{Stdin: os.Stdin, Stdout: os.Stdout}
	}

	a := app.NewContext(cfg, log, sel)
	if cfg.Download.Progress {
		a.Progress = cmd.OutOrStdout()
	}
	return a, nil
}

// bindFlags maps flag names onto config keys so that flags override file and environment values.
func bindFlags(v *viper.Viper, cmd *cobra.Command, bindings map[string]string) error {
	for flag, key := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// qualityFlag rejects unknown qualities while flags are parsed.
type qualityFlag struct {
	value domain.Quality
}

func (q *qualityFlag) String() string { return string(q.value) }
func (q *qualityFlag) Type() string   { return "quality" }

func (q *qualityFlag) Set(s string) error {
	parsed, err := domain.ParseQuality(s)
	if err != nil {
		return err
	}
	q.value = parsed
	return nil
}
