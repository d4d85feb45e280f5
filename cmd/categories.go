package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"shipclass/internal/models"
)

var categoriesCmd = &cobra.Command{
	Use:         "categories",
	Short:       "Print the category taxonomy and the type values",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipAppAnnotation: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		table := newTable(os.Stdout, "ID", "Category")
		for _, c := range models.Categories {
			table.Append([]string{strconv.Itoa(c.ID), c.Name})
		}
		table.Render()
		fmt.Printf("Types: %s\n", strings.Join(models.Types, ", "))
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}
