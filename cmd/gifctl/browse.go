package main

import (
	"github.com/Sternrassler/devlife-client/internal/console"
	"github.com/Sternrassler/devlife-client/pkg/gif"
	"github.com/Sternrassler/devlife-client/pkg/logging"
	"github.com/Sternrassler/devlife-client/pkg/navigation"
	"github.com/spf13/cobra"
)

func newBrowseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse [section]",
		Short: "Browse a section interactively (default random)",
		Long: `Show one GIF at a time and step through the section.

Commands: n next, p previous, r refresh or retry, h help, q quit.
Sections: random, top, latest, hot.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			section, err := sectionArg(args, 0, gif.SectionRandom)
			if err != nil {
				return err
			}

			nav := navigation.New(navigation.NewSource(a.client, section), logging.NewLogger("navigator"))
			defer nav.Close()

			browser := console.NewBrowser(nav, section.String(), cmd.InOrStdin(), cmd.OutOrStdout())
			return browser.Run(cmd.Context())
		},
	}
}
