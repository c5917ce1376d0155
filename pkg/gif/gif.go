// Package gif defines the records served by the developerslife GIF API.
package gif

import (
	"fmt"
	"strings"
)

// Item is a single GIF record. Items are immutable once fetched.
type Item struct {
	ID          int    `json:"id"`
	GifURL      string `json:"gifURL"`
	PreviewURL  string `json:"previewURL,omitempty"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Votes       int    `json:"votes,omitempty"`
	Date        string `json:"date,omitempty"`
}

// Page is the payload of a paged section request.
type Page struct {
	Result []Item `json:"result"`

	// TotalCount is a hint from the server, not a guarantee of what the
	// following pages hold.
	TotalCount int `json:"totalCount"`
}

// Empty reports whether the page holds no items.
func (p Page) Empty() bool {
	return len(p.Result) == 0
}

// Section names a collection of GIFs exposed by the API.
type Section string

const (
	SectionRandom Section = "random"
	SectionTop    Section = "top"
	SectionLatest Section = "latest"
	SectionHot    Section = "hot"
)

// Sections lists every known section in display order.
var Sections = []Section{SectionRandom, SectionTop, SectionLatest, SectionHot}

// ParseSection converts a user supplied name into a Section.
func ParseSection(s string) (Section, error) {
	name := Section(strings.ToLower(strings.TrimSpace(s)))
	for _, section := range Sections {
		if section == name {
			return section, nil
		}
	}
	return "", fmt.Errorf("unknown section %q", s)
}

func (s Section) String() string {
	return string(s)
}

// IsPaged reports whether the section is fetched page by page.
// The random section always returns a single item.
func (s Section) IsPaged() bool {
	return s != SectionRandom
}
