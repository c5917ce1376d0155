package main

import (
	"fmt"
	"time"

	"github.com/Sternrassler/devlife-client/internal/console"
	"github.com/Sternrassler/devlife-client/pkg/cache"
	"github.com/Sternrassler/devlife-client/pkg/gif"
	"github.com/Sternrassler/devlife-client/pkg/pagination"
	"github.com/spf13/cobra"
)

func newWarmCmd(a *app) *cobra.Command {
	var pages, first int

	cmd := &cobra.Command{
		Use:   "warm <section>",
		Short: "Prefetch pages of a section into the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			section, err := gif.ParseSection(args[0])
			if err != nil {
				return err
			}
			if !section.IsPaged() {
				return fmt.Errorf("section %s cannot be prefetched", section)
			}
			if !cmd.Flags().Changed("pages") {
				pages = a.cfg.Prefetch.Pages
			}

			fetcher := pagination.NewBatchFetcher(a.client, pagination.Config{
				MaxConcurrency: a.cfg.Prefetch.Concurrency,
				Timeout:        a.cfg.API.Timeout,
				PageSize:       a.cfg.Prefetch.PageSize,
			})

			result, err := fetcher.FetchPages(cmd.Context(), section, first, pages)
			items := len(pagination.Items(result))
			if err != nil {
				console.Warning.Fprintf(cmd.OutOrStdout(), "warmed %d pages (%d items) before failing\n", len(result), items)
				return err
			}

			console.Info.Fprintf(cmd.OutOrStdout(), "warmed %d pages (%d items) of %s\n", len(result), items, section)

			cached, err := a.client.CachedPages(cmd.Context(), section)
			if err != nil {
				return err
			}
			if len(cached) > 0 {
				console.Muted.Fprintf(cmd.OutOrStdout(), "%d pages of %s cached, pages %d-%d, first expires in %s\n",
					len(cached), section, cached[0].Page, cached[len(cached)-1].Page, soonest(cached).Round(time.Second))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 5, "number of pages to prefetch (default from prefetch.pages)")
	cmd.Flags().IntVar(&first, "first", 0, "first page to prefetch")
	return cmd
}

func soonest(pages []cache.PageSummary) time.Duration {
	ttl := pages[0].TTL
	for _, p := range pages[1:] {
		ttl = min(ttl, p.TTL)
	}
	return ttl
}
