package navigation

import (
	"context"
	"fmt"

	"github.com/Sternrassler/devlife-client/pkg/gif"
)

// Fetcher is the remote API as seen by the navigator.
// client.Client implements it.
type Fetcher interface {
	Random(ctx context.Context) (gif.Item, error)
	Page(ctx context.Context, section gif.Section, page int) (gif.Page, error)
}

// Source produces the next batch of items for a Navigator.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Paged reports whether token selects a page. Unpaged sources ignore it.
	Paged() bool

	// Fetch returns the batch for token. An empty batch means the source is
	// exhausted at that token.
	Fetch(ctx context.Context, token int) ([]gif.Item, error)
}

// NewSource picks the source variant matching section.
func NewSource(fetcher Fetcher, section gif.Section) Source {
	if !section.IsPaged() {
		return &RandomSource{fetcher: fetcher}
	}
	return &SectionSource{fetcher: fetcher, section: section}
}

// RandomSource returns exactly one random item per fetch.
type RandomSource struct {
	fetcher Fetcher
}

// NewRandomSource creates a RandomSource.
func NewRandomSource(fetcher Fetcher) *RandomSource {
	return &RandomSource{fetcher: fetcher}
}

func (s *RandomSource) Name() string { return gif.SectionRandom.String() }

func (s *RandomSource) Paged() bool { return false }

// Fetch ignores token.
func (s *RandomSource) Fetch(ctx context.Context, _ int) ([]gif.Item, error) {
	item, err := s.fetcher.Random(ctx)
	if err != nil {
		return nil, err
	}
	if item.GifURL == "" {
		return nil, nil
	}
	return []gif.Item{item}, nil
}

// SectionSource returns one page of a named section per fetch.
type SectionSource struct {
	fetcher Fetcher
	section gif.Section
}

// NewSectionSource creates a SectionSource for a paged section.
func NewSectionSource(fetcher Fetcher, section gif.Section) (*SectionSource, error) {
	if !section.IsPaged() {
		return nil, fmt.Errorf("section %q is not paged", section)
	}
	return &SectionSource{fetcher: fetcher, section: section}, nil
}

func (s *SectionSource) Name() string { return s.section.String() }

func (s *SectionSource) Paged() bool { return true }

// Fetch returns the items of page token.
func (s *SectionSource) Fetch(ctx context.Context, token int) ([]gif.Item, error) {
	page, err := s.fetcher.Page(ctx, s.section, token)
	if err != nil {
		return nil, err
	}
	return page.Result, nil
}
