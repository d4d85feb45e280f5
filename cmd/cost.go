package cmd

import (
	"fmt"
	"os"
	"text/tabwriter" // For aligned output

	"github.com/spf13/cobra"

	"shipclass/internal/clix"
)

// costCmd represents the base command for cost operations.
var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "View AI usage costs",
	Long:  `Provides subcommands to list detailed AI usage logs and view cost summaries.`,
}

// costListCmd represents the command to list cost logs.
var costListCmd = &cobra.Command{
	Use:   "list",
	Short: "List detailed AI usage logs",
	Long:  `Displays a paginated list of recorded classification calls with their token counts, cost and run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		if appInstance.CostService == nil {
			return fmt.Errorf("cost service is not initialized")
		}

		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid pagination flags: %w", err)
		}

		logs, err := appInstance.CostService.ListUsage(cmd.Context(), pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("failed to list cost logs: %w", err)
		}

		if len(logs) == 0 {
			fmt.Println("No cost logs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTimestamp\tProvider\tService\tModel\tIn Tokens\tOut Tokens\tCost\tRunID")
		fmt.Fprintln(w, "--\t---------\t--------\t-------\t-----\t---------\t----------\t----\t-----")

		for _, usage := range logs {
			runIDStr := "N/A"
			if usage.RelatedRunID != nil {
				runIDStr = usage.RelatedRunID.String()
			}

			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%.8f\t%s\n",
				usage.ID,
				usage.Timestamp.Format(timeLayout),
				usage.ProviderName,
				usage.ServiceType,
				usage.ModelName,
				usage.InputTokens,
				usage.OutputTokens,
				usage.Cost,
				runIDStr,
			)
		}
		w.Flush()

		fmt.Printf("\nDisplayed %d logs.\n", len(logs))
		return nil
	},
}

// costSummaryCmd represents the command to view cost summary.
var costSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show summary of total AI costs and token usage",
	Long:  `Calculates and displays the total cost, total input tokens, and total output tokens across all recorded AI usage.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		if appInstance.CostService == nil {
			return fmt.Errorf("cost service is not initialized")
		}

		summary, err := appInstance.CostService.GetSummary(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get cost summary: %w", err)
		}

		fmt.Println("AI Usage Cost Summary:")
		fmt.Println("----------------------")
		fmt.Printf("Total Cost:         $%.6f\n", summary.TotalCost)
		fmt.Printf("Total Input Tokens:  %d\n", summary.TotalInputTokens)
		fmt.Printf("Total Output Tokens: %d\n", summary.TotalOutputTokens)
		fmt.Println("----------------------")

		return nil
	},
}

func init() {
	costCmd.AddCommand(costListCmd)
	costCmd.AddCommand(costSummaryCmd)

	clix.AddPaginationFlags(costListCmd.Flags(), 50)
}
