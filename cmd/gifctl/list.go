package main

import (
	"fmt"
	"strconv"

	"github.com/Sternrassler/devlife-client/internal/console"
	"github.com/Sternrassler/devlife-client/pkg/gif"
	"github.com/Sternrassler/devlife-client/pkg/navigation"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <section> [page]",
		Short: "Print one page of a section as a table",
		Long:  "Print one page of a section. For random a single GIF is printed and page is ignored.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			section, err := gif.ParseSection(args[0])
			if err != nil {
				return err
			}

			page := 0
			if len(args) > 1 {
				page, err = strconv.Atoi(args[1])
				if err != nil || page < 0 {
					return fmt.Errorf("invalid page %q", args[1])
				}
			}

			var items []gif.Item
			if section.IsPaged() {
				p, err := a.client.Page(cmd.Context(), section, page)
				if err != nil {
					return err
				}
				items = p.Result
			} else {
				item, err := a.client.Random(cmd.Context())
				if err != nil {
					return err
				}
				if item.GifURL != "" {
					items = []gif.Item{item}
				}
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				console.Warning.Fprintln(out, navigation.MessageEmptyCollection)
				return nil
			}
			return console.RenderItems(out, items)
		},
	}
}
