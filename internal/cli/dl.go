package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kkdl-dev/kkdl/internal/app"
	"github.com/kkdl-dev/kkdl/internal/domain"
	"github.com/kkdl-dev/kkdl/internal/downloader"
	"github.com/kkdl-dev/kkdl/internal/platform"
	"github.com/kkdl-dev/kkdl/internal/selector"
)

func newDownloadCommand(opts *rootOptions) *cobra.Command {
	quality := &qualityFlag{value: domain.Quality1080p}

	cmd := &cobra.Command{
		Use:   "dl [COURSE_URL]",
		Short: "Download the videos of a course",
		Long: `Download every video lecture of a course into OUTPUT_DIR/<course>/<NN - chapter>/<NN - lecture>.mp4.

Without COURSE_URL the accessible courses are listed for interactive selection.
Exactly one of --cookie (Netscape cookies.txt) or --token (bearer token) is required.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return domain.Usagef("dl accepts at most one COURSE_URL, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd, map[string]string{
				"quality":             "download.quality",
				"output-dir":          "download.output_dir",
				"cookie":              "auth.cookie",
				"token":               "auth.token",
				"max-duplicate-count": "download.max_duplicate_count",
			})
			if err != nil {
				return err
			}
			defer a.Close()

			var courseURL string
			if len(args) == 1 {
				courseURL = args[0]
			}
			return runDownload(cmd.Context(), a, courseURL)
		},
	}

	f := cmd.Flags()
	f.VarP(quality, "quality", "q", "Quality of the videos ("+domain.QualityNames()+")")
	f.StringP("output-dir", "o", "", "Output directory (default ~/Downloads)")
	f.StringP("cookie", "c", "", "Netscape cookie file with a logged-in session")
	f.StringP("token", "t", "", "Bearer token")
	f.Int("max-duplicate-count", 3, "Abandon a lecture after this many non-progressing download attempts")

	return cmd
}

func runDownload(ctx context.Context, a *app.Context, courseURL string) error {
	log := a.Logger

	creds := a.Credentials()
	if err := creds.Validate(); err != nil {
		return err
	}

	var slug string
	if courseURL != "" {
		var err error
		if slug, err = platform.ParseCourseURL(courseURL); err != nil {
			log.Error("Please enter a valid URL: %s", courseURL)
			return err
		}
	}

	client, err := a.Client(creds)
	if err != nil {
		return err
	}

	slugs := []string{slug}
	if slug == "" {
		if slugs, err = selectCourses(ctx, a, client); err != nil {
			if errors.Is(err, selector.ErrNoSelection) {
				log.Warn("Nothing selected")
				return nil
			}
			return err
		}
	}

	svc := downloader.NewService(client, log, downloader.Options{
		OutputDir:         a.Config.Download.OutputDir,
		Quality:           a.Config.Quality(),
		MaxDuplicateCount: a.Config.Download.MaxDuplicateCount,
		Progress:          a.Progress,
	})

	for _, s := range slugs {
		course, err := client.Course(ctx, s)
		if err != nil {
			if errors.Is(err, domain.ErrAuth) || ctx.Err() != nil {
				return err
			}
			log.Error("Course %s: %v", s, err)
			continue
		}

		report, err := svc.DownloadCourse(ctx, course)
		if err != nil {
			return fmt.Errorf("course %s: %w", s, err)
		}

		for _, f := range report.Failed {
			log.Warn("Not downloaded: %s / %s: %v", f.Chapter, f.Lecture.Title, f.Err)
		}
	}

	return nil
}

func selectCourses(ctx context.Context, a *app.Context, client *platform.Client) ([]string, error) {
	courses, err := client.ListCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing courses: %w", err)
	}

	picked, err := a.Selector.Select(ctx, courses)
	if err != nil {
		return nil, err
	}

	slugs := make([]string, len(picked))
	for i, c := range picked {
		slugs[i] = c.Slug
	}
	return slugs, nil
}
