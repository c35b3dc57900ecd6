package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/logistics-dashboard/internal/apiclient"
	"github.com/spec-kit/logistics-dashboard/internal/domain"
)

func newTasksCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Work with warehouse pick and packing tasks",
	}
	cmd.AddCommand(newTasksUpdateCmd(c))
	return cmd
}

func newTasksUpdateCmd(c *cli) *cobra.Command {
	var (
		status     string
		assignedTo string
		unassign   bool
	)

	cmd := &cobra.Command{
		Use:   "update <pick|packing> <id>",
		Short: "Change a task's status or assignee",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := domain.ParseTaskKind(args[0])
			if !ok {
				return fmt.Errorf("unknown task kind %q (want pick or packing)", args[0])
			}

			var update apiclient.TaskUpdate
			if status != "" {
				update.Status = domain.TaskStatus(status)
			}
			switch {
			case unassign && assignedTo != "":
				return errors.New("--assigned-to and --unassign are mutually exclusive")
			case unassign:
				empty := ""
				update.AssignedTo = &empty
			case assignedTo != "":
				update.AssignedTo = &assignedTo
			}
			if update.Status == "" && update.AssignedTo == nil {
				return errors.New("nothing to update; pass --status, --assigned-to or --unassign")
			}

			client, _, err := c.authedAPI()
			if err != nil {
				return err
			}
			task, err := client.UpdateTask(cmd.Context(), kind, args[1], update)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(task)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "pending, in_progress, completed or cancelled")
	cmd.Flags().StringVar(&assignedTo, "assigned-to", "", "assignee")
	cmd.Flags().BoolVar(&unassign, "unassign", false, "clear the assignee")
	return cmd
}

func newResourcesCmd(c *cli) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "resources <kind>",
		Short: "List a resource collection as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := domain.ParseResourceKind(args[0])
			if !ok {
				return fmt.Errorf("unknown resource kind %q", args[0])
			}
			client, _, err := c.authedAPI()
			if err != nil {
				return err
			}
			docs, err := client.ListResources(cmd.Context(), kind, limit, offset)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, doc := range docs {
				fmt.Fprintln(out, string(doc))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum documents to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "documents to skip")
	return cmd
}
