package commands

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/danmuck/placectl/internal/microversion"
	"github.com/danmuck/placectl/internal/output"
	"github.com/danmuck/placectl/internal/placement"
)

// Resource classes exist from 1.2 on; the idempotent set needs 1.7.
var classesSince = microversion.Ge("1.2")

// NewClassCommand groups the resource class operations.
func NewClassCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "class",
		Short: "Manage resource classes",
	}
	cmd.AddCommand(
		newClassListCommand(rt),
		newClassShowCommand(rt),
		newClassCreateCommand(rt),
		newClassSetCommand(rt),
		newClassDeleteCommand(rt),
	)
	return cmd
}

func newClassListCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List resource classes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.CheckVersion(classesSince); err != nil {
				return err
			}
			resp, err := client.Request(ctx, http.MethodGet, "/resource_classes", nil)
			if err != nil {
				return err
			}
			var doc struct {
				Classes []struct {
					Name string `json:"name"`
				} `json:"resource_classes"`
			}
			if err := resp.JSON(&doc); err != nil {
				return err
			}
			rows := make([][]any, 0, len(doc.Classes))
			for _, class := range doc.Classes {
				rows = append(rows, []any{class.Name})
			}
			return renderTable(cmd, output.List([]string{"name"}, rows))
		},
	}
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}

func newClassShowCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show one resource class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.CheckVersion(classesSince); err != nil {
				return err
			}
			resp, err := client.Request(ctx, http.MethodGet, "/resource_classes/"+args[0], nil)
			if err != nil {
				return err
			}
			var doc struct {
				Name string `json:"name"`
			}
			if err := resp.JSON(&doc); err != nil {
				return err
			}
			return renderTable(cmd, output.Object([]string{"name"}, []any{doc.Name}))
		},
	}
	cmd.Flags().AddFlagSet(output.Flags())
	return cmd
}

func newClassCreateCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a custom resource class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.CheckVersion(classesSince); err != nil {
				return err
			}
			_, err = client.Request(ctx, http.MethodPost, "/resource_classes",
				&placement.RequestOptions{JSON: map[string]any{"name": args[0]}})
			return err
		},
	}
}

func newClassSetCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "set <name>",
		Short: "Create a resource class if it does not exist yet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.CheckVersion(microversion.Ge("1.7")); err != nil {
				return err
			}
			_, err = client.Request(ctx, http.MethodPut, "/resource_classes/"+args[0], nil)
			return err
		},
	}
}

func newClassDeleteCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a custom resource class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := rt.Client(ctx)
			if err != nil {
				return err
			}
			if err := client.CheckVersion(classesSince); err != nil {
				return err
			}
			_, err = client.Request(ctx, http.MethodDelete, "/resource_classes/"+args[0], nil)
			return err
		},
	}
}
