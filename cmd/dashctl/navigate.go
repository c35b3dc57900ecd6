package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/spec-kit/logistics-dashboard/internal/guard"
	"github.com/spec-kit/logistics-dashboard/internal/navigation"
)

func newNavigateCmd(c *cli) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "navigate <path>",
		Short: "Show where the route guard sends the current session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			nav := navigation.New(c.store, c.logger)
			nav.OnNavigate(func(d guard.Decision) { printDecision(out, d) })
			if _, ok := nav.Navigate(args[0]); !ok {
				return fmt.Errorf("navigation to %s failed", args[0])
			}
			fmt.Fprintf(out, "location: %s\n", nav.Location())

			if !remote {
				return nil
			}
			client, _, err := c.api()
			if err != nil {
				return err
			}
			d, err := client.Navigation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(out, "server: ")
			printDecision(out, d)
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "also ask the server guard")
	return cmd
}

func printDecision(w io.Writer, d guard.Decision) {
	if !d.Redirect() {
		fmt.Fprintf(w, "render %s\n", d.Path)
		return
	}
	fmt.Fprintf(w, "redirect %s -> %s", d.Path, d.Target)
	if d.Notice != "" {
		fmt.Fprintf(w, " (%s)", d.Notice)
	}
	fmt.Fprintln(w)
}
