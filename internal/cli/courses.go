package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCoursesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courses",
		Short: "List the courses accessible with the given credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd, map[string]string{"cookie": "auth.cookie", "token": "auth.token"})
			if err != nil {
				return err
			}
			defer a.Close()

			creds := a.Credentials()
			if err := creds.Validate(); err != nil {
				return err
			}

			client, err := a.Client(creds)
			if err != nil {
				return err
			}

			courses, err := client.ListCourses(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tURL")
			for _, c := range courses {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Title, c.URL)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringP("cookie", "c", "", "Netscape cookie file with a logged-in session")
	cmd.Flags().StringP("token", "t", "", "Bearer token")

	return cmd
}
