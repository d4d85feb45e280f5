package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"shipclass/internal/services"
)

var runNoSplit bool

var runCmd = &cobra.Command{
	Use:   "run [source]",
	Short: "Split a source table into chunks and classify each chunk",
	Long: `Splits the source table (argument or input.path) into chunk files and
classifies every chunk whose output file does not exist yet, so an
interrupted run resumes where it stopped. With --no-split only the chunk
files already in the chunk folder are processed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		if err := requireClassifier(ctx, appInstance); err != nil {
			return err
		}

		source := sourceArg(args, appInstance.Config.Input.Path)
		if runNoSplit {
			source = ""
		}

		results, runErr := appInstance.ClassificationService.ProcessSource(ctx, source)
		printResults(results)
		if runErr != nil {
			return runErr
		}
		if len(results) == 0 {
			fmt.Println("No chunk files to process.")
		}
		return nil
	},
}

func printResults(results []*services.FileResult) {
	var processed, skipped, errorRows int
	for _, res := range results {
		name := filepath.Base(res.InputPath)
		if res.Skipped {
			skipped++
			fmt.Printf("%s %s (output exists)\n", color.GreenString("skipped"), name)
			continue
		}
		processed++
		errorRows += res.Stats.ErrorRows
		fmt.Printf("%s %s -> %s (%d rows, %d error rows)\n",
			statusColor(res.Run.Status), name, res.OutputPath, res.Stats.Rows, res.Stats.ErrorRows)
	}
	if len(results) > 0 {
		log.Infof("Processed %d chunks, skipped %d, %d error rows", processed, skipped, errorRows)
	}
	if errorRows > 0 {
		fmt.Fprintln(os.Stderr, color.YellowString("%d rows carry the error label; delete their output files and re-run to retry.", errorRows))
	}
}

func sourceArg(args []string, fallback string) string {
	if len(args) > 0 {
		return args[0]
	}
	return fallback
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runNoSplit, "no-split", false, "Only process chunk files already in the chunk folder")
}
