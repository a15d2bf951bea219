// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jeranaias/cortex/internal/model"
	"github.com/jeranaias/cortex/internal/util"
)

func newModelsCommand(opts *rootOptions) *cobra.Command {
	var (
		query    string
		category string
	)

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the model catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cat model.Category
			if category != "" {
				c, err := model.ParseCategory(category)
				if err != nil {
					return usageErrorf("%v (want cortex, local or cloud)", err)
				}
				cat = c
			}

			e, err := opts.load()
			if err != nil {
				return err
			}
			a := e.newApp(false)
			defer a.Close()

			selected, _ := a.SelectedModel()
			printModels(cmd.OutOrStdout(), a.Models(query, cat), selected.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "filter by name or description")
	cmd.Flags().StringVar(&category, "category", "", "cortex, local or cloud")
	return cmd
}

// printModels writes the catalog as a table. The selected model is starred.
func printModels(w io.Writer, models []model.ModelInfo, selectedID string) {
	if len(models) == 0 {
		fmt.Fprintln(w, "No models match.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tNAME\tCATEGORY\tSIZE\tSTATUS\tDESCRIPTION")
	for _, m := range models {
		mark := " "
		if m.ID == selectedID {
			mark = "*"
		}
		size := m.Size
		if size == "" {
			size = "-"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\t%s\t%s\n",
			mark, m.ID, m.Name, m.Category, size, m.StatusLabel(),
			util.FitWidth(m.Description, 48))
	}
	tw.Flush()
}
