package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var classifyOutput string

var classifyCmd = &cobra.Command{
	Use:   "classify <input>",
	Short: "Classify a single table file or URL",
	Long: `Reads a CSV or XLSX table (local path or http(s) URL), labels every row
with a type, category and code, and writes the labeled table. The output
defaults to classified_<name> in the configured output folder.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		if err := requireClassifier(ctx, appInstance); err != nil {
			return err
		}

		res, err := appInstance.ClassificationService.ProcessInput(ctx, args[0], classifyOutput)
		if err != nil {
			return fmt.Errorf("failed to classify %s: %w", args[0], err)
		}

		renderStats(os.Stdout, res.Stats)
		renderDistribution(os.Stdout, res.Distribution)
		fmt.Printf("%s %s -> %s\n", statusColor(res.Run.Status), res.InputPath, color.CyanString(res.OutputPath))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().StringVarP(&classifyOutput, "output", "O", "", "Output file path (.csv or .xlsx)")
}
