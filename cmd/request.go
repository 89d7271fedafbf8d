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
	"jiragent/internal/errs"
	"jiragent/internal/ports"
	"jiragent/internal/usecase/intake"
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Manage intake requests",
}

var requestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List requests, optionally filtered by status",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		status, _ := cmd.Flags().GetString("status")
		records, err := svc.ListRequests(ctx, status)
		if err != nil {
			logging.Error(ctx, "list requests failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list requests")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tKEY\tSUMMARY")
		for _, r := range records {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.RequestID, r.Status, r.JiraIssueKey, r.Summary)
		}
		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "write request list")
		}
		return nil
	}),
}

var requestCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a request in Under Review",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		summary, _ := cmd.Flags().GetString("summary")
		description, _ := cmd.Flags().GetString("description")
		sourceTag, _ := cmd.Flags().GetString("source")
		requestor, _ := cmd.Flags().GetString("requestor")
		tags, _ := cmd.Flags().GetStringSlice("tag")

		created, err := svc.CreateRequest(ctx, intake.CreateRequestInput{
			Summary:     summary,
			Description: description,
			SourceTag:   sourceTag,
			Requestor:   requestor,
			Tags:        tags,
		})
		if err != nil {
			logging.Error(ctx, "create request failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create request")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "created request %d: %s\n", created.RequestID, created.Summary); err != nil {
			return errs.Wrap(err, "write create output")
		}
		return nil
	}),
}

var requestShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one request",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		requestID, err := parseRequestID(cmd.Flags().Args()[0])
		if err != nil {
			return err
		}

		record, err := svc.GetRequest(ctx, requestID)
		if err != nil {
			logging.Error(ctx, "get request failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "get request")
		}

		printRequest(cmd, record)
		return nil
	}),
}

var requestApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a request under review",
	Args:  cobra.ExactArgs(1),
	RunE:  statusActionRunE("approve", (*intake.Service).ApproveRequest),
}

var requestRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a request under review",
	Args:  cobra.ExactArgs(1),
	RunE:  statusActionRunE("reject", (*intake.Service).RejectRequest),
}

var requestAnalyzeCmd = &cobra.Command{
	Use:   "analyze <id>",
	Short: "Run AI field extraction for a request and merge the result",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		requestID, err := parseRequestID(cmd.Flags().Args()[0])
		if err != nil {
			return err
		}
		issueType, _ := cmd.Flags().GetString("issue-type")

		result, err := svc.AnalyzeRequest(ctx, intake.AnalyzeRequestInput{
			RequestID: requestID,
			IssueType: issueType,
		})
		if err != nil {
			logging.Error(ctx, "analyze request failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "analyze request")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "analyzed request %d issue-type=%s fields=%d\n",
			requestID, result.IssueType, len(result.Values))
		return nil
	}),
}

var requestReleaseCmd = &cobra.Command{
	Use:   "release <id> [id...]",
	Short: "Release approved requests to Jira in one batch",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		requestIDs := make([]int64, 0, len(cmd.Flags().Args()))
		for _, arg := range cmd.Flags().Args() {
			id, err := parseRequestID(arg)
			if err != nil {
				return err
			}
			requestIDs = append(requestIDs, id)
		}

		result, err := svc.ReleaseBatch(ctx, intake.ReleaseBatchInput{RequestIDs: requestIDs})
		if err != nil {
			logging.Error(ctx, "release batch failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "release batch")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "batch %s: %d released, %d failed, %d skipped, %d missing of %d\n",
			result.BatchID, result.Success, result.Failed, result.Skipped, result.Missing, result.Total)
		for _, detail := range result.Details {
			line := fmt.Sprintf("  %d: %s", detail.RequestID, detail.Outcome)
			if detail.IssueKey != "" {
				line += " " + detail.IssueKey
			}
			if detail.Message != "" {
				line += " (" + detail.Message + ")"
			}
			fmt.Fprintln(out, line)
		}
		return nil
	}),
}

func statusActionRunE(name string, action func(*intake.Service, context.Context, int64) (ports.RequestRecord, error)) func(cmd *cobra.Command, args []string) error {
	return withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *intake.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		requestID, err := parseRequestID(cmd.Flags().Args()[0])
		if err != nil {
			return err
		}

		record, err := action(svc, ctx, requestID)
		if err != nil {
			logging.Error(ctx, name+" request failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrapf(err, "%s request", name)
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "request %d is now %s\n", record.RequestID, record.Status); err != nil {
			return errs.Wrapf(err, "write %s output", name)
		}
		return nil
	})
}

func parseRequestID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid request id %q", arg)
	}
	return id, nil
}

func printRequest(cmd *cobra.Command, r ports.RequestRecord) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:          %d\n", r.RequestID)
	fmt.Fprintf(out, "status:      %s\n", r.Status)
	fmt.Fprintf(out, "summary:     %s\n", r.Summary)
	fmt.Fprintf(out, "source:      %s\n", r.SourceTag)
	if r.Requestor != "" {
		fmt.Fprintf(out, "requestor:   %s\n", r.Requestor)
	}
	if r.Assignee != "" {
		fmt.Fprintf(out, "assignee:    %s\n", r.Assignee)
	}
	if len(r.Tags) > 0 {
		fmt.Fprintf(out, "tags:        %s\n", strings.Join(r.Tags, ", "))
	}
	if r.JiraIssueKey != "" {
		fmt.Fprintf(out, "issue key:   %s\n", r.JiraIssueKey)
		fmt.Fprintf(out, "released at: %s\n", r.ReleasedAt)
	}
	fmt.Fprintf(out, "description:\n%s\n", r.Description)
}

func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.AddCommand(requestListCmd)
	requestCmd.AddCommand(requestCreateCmd)
	requestCmd.AddCommand(requestShowCmd)
	requestCmd.AddCommand(requestApproveCmd)
	requestCmd.AddCommand(requestRejectCmd)
	requestCmd.AddCommand(requestAnalyzeCmd)
	requestCmd.AddCommand(requestReleaseCmd)

	requestListCmd.Flags().String("status", "", "Filter by status (e.g. \"Under Review\")")

	requestCreateCmd.Flags().String("summary", "", "Request summary (extracted when omitted)")
	requestCreateCmd.Flags().String("description", "", "Request description")
	requestCreateCmd.Flags().String("source", "manual", "Source tag")
	requestCreateCmd.Flags().String("requestor", "", "Requestor name")
	requestCreateCmd.Flags().StringSlice("tag", nil, "Request tag (repeatable)")
	_ = requestCreateCmd.MarkFlagRequired("description")

	requestAnalyzeCmd.Flags().String("issue-type", "", "Issue type (defaults to the request's, then the first configured)")
}
