package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue [source]",
	Short: "Split a source table and enqueue one classify task per chunk",
	Long: `Like run, but instead of classifying in-process each pending chunk is
handed to the background workers (see 'shipclass worker') through Redis.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		if err := appInstance.InitJobClient(); err != nil {
			return err
		}
		if err := appInstance.InitClassification(ctx, false); err != nil {
			return err
		}

		enqueued, err := appInstance.ClassificationService.EnqueueSource(ctx, sourceArg(args, appInstance.Config.Input.Path))
		if len(enqueued) > 0 {
			table := newTable(os.Stdout, "Chunk", "Output", "Task")
			for _, e := range enqueued {
				task := e.TaskID
				if e.Skipped {
					task = statusColor("skipped")
				}
				table.Append([]string{filepath.Base(e.ChunkPath), e.OutputPath, task})
			}
			table.Render()
		}
		if err != nil {
			return err
		}
		if len(enqueued) == 0 {
			fmt.Println("No chunk files to enqueue.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
}
