package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"jiragent/internal/bootstrap"
	"jiragent/internal/bootstrap/logging"
	"jiragent/internal/domain/fieldconfig"
	"jiragent/internal/errs"
	"jiragent/internal/usecase/intake"
)

var connectionCmd = &cobra.Command{
	Use:   "connection",
	Short: "Manage Jira connections and their field configuration",
}

var connectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connections",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		records, err := svc.ListConnections(ctx)
		if err != nil {
			logging.Error(ctx, "list connections failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list connections")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATUS\tPROJECT")
		for _, c := range records {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", c.ConnectionID, c.Name, c.Type, c.Status, c.JiraProjectKey)
		}
		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "write connection list")
		}
		return nil
	}),
}

var connectionAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a Jira connection (inactive until tested)",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		name, _ := cmd.Flags().GetString("name")
		url, _ := cmd.Flags().GetString("url")
		email, _ := cmd.Flags().GetString("email")
		token, _ := cmd.Flags().GetString("token")
		projectKey, _ := cmd.Flags().GetString("project")

		created, err := svc.CreateConnection(ctx, intake.CreateConnectionInput{
			Name:           name,
			Type:           "jira",
			JiraURL:        url,
			JiraEmail:      email,
			JiraAPIToken:   token,
			JiraProjectKey: projectKey,
		})
		if err != nil {
			logging.Error(ctx, "create connection failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create connection")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "created connection %d (%s)\n", created.ConnectionID, created.Status); err != nil {
			return errs.Wrap(err, "write add output")
		}
		return nil
	}),
}

var connectionSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Update connection settings",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		connectionID, err := parseConnectionID(cmd.Flags().Args()[0])
		if err != nil {
			return err
		}

		var input intake.UpdateConnectionInput
		if cmd.Flags().Changed("name") {
			v, _ := cmd.Flags().GetString("name")
			input.Name = &v
		}
		if cmd.Flags().Changed("url") {
			v, _ := cmd.Flags().GetString("url")
			input.JiraURL = &v
		}
		if cmd.Flags().Changed("email") {
			v, _ := cmd.Flags().GetString("email")
			input.JiraEmail = &v
		}
		if cmd.Flags().Changed("token") {
			v, _ := cmd.Flags().GetString("token")
			input.JiraAPIToken = &v
		}
		if cmd.Flags().Changed("project") {
			v, _ := cmd.Flags().GetString("project")
			input.JiraProjectKey = &v
		}

		updated, err := svc.UpdateConnection(ctx, connectionID, input)
		if err != nil {
			logging.Error(ctx, "update connection failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "update connection")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "updated connection %d\n", updated.ConnectionID); err != nil {
			return errs.Wrap(err, "write set output")
		}
		return nil
	}),
}

var connectionTestCmd = &cobra.Command{
	Use:   "test <id>",
	Short: "Verify credentials and seed the field configuration",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		connectionID, err := parseConnectionID(cmd.Flags().Args()[0])
		if err != nil {
			return err
		}

		result, err := svc.TestConnection(ctx, connectionID)
		if err != nil {
			logging.Error(ctx, "test connection failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "test connection")
		}

		out := cmd.OutOrStdout()
		if !result.Success {
			fmt.Fprintf(out, "connection test failed: %s\n", result.FailureReason)
			return nil
		}
		fmt.Fprintf(out, "connection ok, authenticated as %s\n", result.User)
		if result.SchemaSeeded {
			fmt.Fprintln(out, "field configuration seeded from project schema")
		}
		return nil
	}),
}

var connectionProjectsCmd = &cobra.Command{
	Use:   "projects <id>",
	Short: "List projects visible to a connection",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		connectionID, err := parseConnectionID(cmd.Flags().Args()[0])
		if err != nil {
			return err
		}

		projects, err := svc.ListProjects(ctx, connectionID)
		if err != nil {
			logging.Error(ctx, "list projects failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list projects")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tNAME")
		for _, p := range projects {
			fmt.Fprintf(w, "%s\t%s\n", p.Key, p.Name)
		}
		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "write project list")
		}
		return nil
	}),
}

var connectionRefreshFieldsCmd = &cobra.Command{
	Use:   "refresh-fields <id>",
	Short: "Re-fetch the upstream schema, preserving overrides",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		connectionID, err := parseConnectionID(cmd.Flags().Args()[0])
		if err != nil {
			return err
		}

		cfg, err := svc.RefreshFieldConfig(ctx, connectionID)
		if err != nil {
			logging.Error(ctx, "refresh field configuration failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "refresh field configuration")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "refreshed field configuration: %s\n", strings.Join(cfg.IssueTypes(), ", "))
		return nil
	}),
}

var connectionFieldsCmd = &cobra.Command{
	Use:   "fields <id> <issue-type>",
	Short: "Show the effective form fields for an issue type",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		connectionID, err := parseConnectionID(cmd.Flags().Args()[0])
		if err != nil {
			return err
		}
		issueType := cmd.Flags().Args()[1]

		fields, err := svc.EditableFields(ctx, connectionID, issueType)
		if err != nil {
			logging.Error(ctx, "list editable fields failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list editable fields")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tLABEL\tMANDATORY")
		for _, f := range fields {
			fmt.Fprintf(w, "%s\t%s\t%t\n", f.Key, f.Label, f.Mandatory)
		}
		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "write field list")
		}
		return nil
	}),
}

var connectionIncludeCmd = &cobra.Command{
	Use:   "include <id> <issue-type> <field-key>",
	Short: "Toggle whether a field appears on the form",
	Args:  cobra.ExactArgs(3),
	RunE:  fieldToggleRunE("include", (*intake.Service).SetFieldIncluded),
}

var connectionRequireCmd = &cobra.Command{
	Use:   "require <id> <issue-type> <field-key>",
	Short: "Toggle whether an included field is mandatory on the form",
	Args:  cobra.ExactArgs(3),
	RunE:  fieldToggleRunE("require", (*intake.Service).SetFieldRequired),
}

func fieldToggleRunE(name string, toggle func(*intake.Service, context.Context, int64, string, string, bool) (fieldconfig.Config, error)) func(cmd *cobra.Command, args []string) error {
	return withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		args := cmd.Flags().Args()
		connectionID, err := parseConnectionID(args[0])
		if err != nil {
			return err
		}
		issueType, fieldKey := args[1], args[2]
		off, _ := cmd.Flags().GetBool("off")

		if _, err := toggle(svc, ctx, connectionID, issueType, fieldKey, !off); err != nil {
			logging.Error(ctx, name+" field toggle failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrapf(err, "%s field", name)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s/%s set to %t\n", name, issueType, fieldKey, !off)
		return nil
	})
}

func parseConnectionID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid connection id %q", arg)
	}
	return id, nil
}

func init() {
	rootCmd.AddCommand(connectionCmd)
	connectionCmd.AddCommand(connectionListCmd)
	connectionCmd.AddCommand(connectionAddCmd)
	connectionCmd.AddCommand(connectionSetCmd)
	connectionCmd.AddCommand(connectionTestCmd)
	connectionCmd.AddCommand(connectionProjectsCmd)
	connectionCmd.AddCommand(connectionRefreshFieldsCmd)
	connectionCmd.AddCommand(connectionFieldsCmd)
	connectionCmd.AddCommand(connectionIncludeCmd)
	connectionCmd.AddCommand(connectionRequireCmd)

	connectionAddCmd.Flags().String("name", "", "Connection name")
	connectionAddCmd.Flags().String("url", "", "Jira base URL")
	connectionAddCmd.Flags().String("email", "", "Jira account email")
	connectionAddCmd.Flags().String("token", "", "Jira API token")
	connectionAddCmd.Flags().String("project", "", "Jira project key")
	_ = connectionAddCmd.MarkFlagRequired("name")

	connectionSetCmd.Flags().String("name", "", "Connection name")
	connectionSetCmd.Flags().String("url", "", "Jira base URL")
	connectionSetCmd.Flags().String("email", "", "Jira account email")
	connectionSetCmd.Flags().String("token", "", "Jira API token")
	connectionSetCmd.Flags().String("project", "", "Jira project key")

	connectionIncludeCmd.Flags().Bool("off", false, "Exclude instead of include")
	connectionRequireCmd.Flags().Bool("off", false, "Clear the custom-required override")
}
