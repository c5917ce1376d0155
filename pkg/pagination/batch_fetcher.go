package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/devlife-client/pkg/gif"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
	// PageSize is the number of items a full page holds. 0 infers it from
	// the first page fetched.
	PageSize int
}

// DefaultConfig returns safe default configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// PageFetcher fetches a single section page. client.Client implements it.
type PageFetcher interface {
	Page(ctx context.Context, section gif.Section, page int) (gif.Page, error)
}

// BatchFetcher handles parallel fetching of multiple pages
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchPages fetches count pages of section starting at page first.
// The result is ordered and ends before the first empty page. On error the
// pages fetched contiguously from first are returned along with it.
func (bf *BatchFetcher) FetchPages(ctx context.Context, section gif.Section, first, count int) ([]gif.Page, error) {
	if !section.IsPaged() {
		return nil, fmt.Errorf("section %s has no pages", section)
	}
	if first < 0 || count <= 0 {
		return nil, fmt.Errorf("invalid page range first=%d count=%d", first, count)
	}

	start := time.Now()
	logger := log.With().Str("component", "pagination").Str("section", section.String()).Logger()

	firstPage, err := bf.fetchOne(ctx, section, first)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}
	if firstPage.Empty() {
		logger.Info().Int("page", first).Msg("First page empty, nothing to fetch")
		return nil, nil
	}

	pageSize := max(bf.config.PageSize, len(firstPage.Result))
	if len(firstPage.Result) < bf.config.PageSize {
		// a short page ends the section
		count = 1
	}
	count = capCount(first, count, pageSize, firstPage.TotalCount)

	logger.Info().
		Int("first", first).
		Int("pages", count).
		Int("total_count", firstPage.TotalCount).
		Msg("Starting parallel page fetch")

	pages := make([]gif.Page, count)
	errs := make([]error, count)
	pages[0] = firstPage

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.config.MaxConcurrency)
	for i := 1; i < count; i++ {
		g.Go(func() error {
			page, err := bf.fetchOne(gctx, section, first+i)
			if err != nil {
				errs[i] = err
				return fmt.Errorf("page %d: %w", first+i, err)
			}
			pages[i] = page
			return nil
		})
	}
	waitErr := g.Wait()

	result := make([]gif.Page, 0, count)
	for i := range pages {
		if errs[i] != nil || pages[i].Empty() {
			break
		}
		result = append(result, pages[i])
	}

	if waitErr != nil {
		logger.Warn().
			Err(waitErr).
			Int("fetched_pages", len(result)).
			Int("requested_pages", count).
			Msg("Page fetch failed - returning partial results")
		return result, fmt.Errorf("batch fetch (partial data: %d/%d pages): %w", len(result), count, waitErr)
	}

	logger.Info().
		Int("pages", len(result)).
		Int("items", len(Items(result))).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return result, nil
}

func (bf *BatchFetcher) fetchOne(ctx context.Context, section gif.Section, page int) (gif.Page, error) {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()
	return bf.fetcher.Page(pageCtx, section, page)
}

// capCount limits count to the pages totalCount allows, given the size of
// a full page. totalCount is only a hint, so 0 leaves count alone.
func capCount(first, count, pageSize, totalCount int) int {
	if pageSize <= 0 || totalCount <= 0 {
		return count
	}
	totalPages := (totalCount + pageSize - 1) / pageSize
	if available := totalPages - first; available < count {
		count = max(available, 1)
	}
	return count
}

// Items flattens pages into one ordered item slice.
func Items(pages []gif.Page) []gif.Item {
	var items []gif.Item
	for _, p := range pages {
		items = append(items, p.Result...)
	}
	return items
}
