package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var splitCmd = &cobra.Command{
	Use:   "split [source]",
	Short: "Split a source table into chunk files",
	Long: `Validates the source table (argument or input.path) and writes it as
chunk_<n> files of input.chunk_size rows into the chunk folder. Existing
chunk files are kept. Without a source the existing chunks are listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		// Splitting needs the column layout, not the provider.
		if err := appInstance.InitClassification(ctx, false); err != nil {
			return err
		}

		chunks, err := appInstance.ClassificationService.Split(ctx, sourceArg(args, appInstance.Config.Input.Path))
		if err != nil {
			return err
		}
		if len(chunks) == 0 {
			fmt.Println("No chunk files found.")
			return nil
		}

		table := newTable(os.Stdout, "#", "Chunk", "Size", "Output")
		for _, c := range chunks {
			out := appInstance.ClassificationService.OutputPathFor(c.Path)
			state := "pending"
			if _, err := os.Stat(out); err == nil {
				state = "done"
			}
			table.Append([]string{strconv.Itoa(c.Number), c.Path, strconv.FormatInt(c.Size, 10), state})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(splitCmd)
}
