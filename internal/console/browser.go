// Package console is the terminal front end: an interactive GIF browser
// driven by a navigation.Navigator, and table output for listings.
package console

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/Sternrassler/devlife-client/pkg/navigation"
	"github.com/fatih/color"
)

// Navigator is the part of navigation.Navigator the browser drives.
type Navigator interface {
	Initialize()
	Next()
	Previous()
	Refresh()
	HasPrevious() bool
	Subscribe() (<-chan navigation.State, func())
}

// Browser renders navigator states and maps typed commands to navigator
// actions: n next, p previous, r refresh, h help, q quit.
//
// Commands typed while a fetch is outstanding are queued and run once it
// settles, so piped input behaves like a patient user.
type Browser struct {
	nav   Navigator
	title string
	in    io.Reader

	mu  sync.Mutex
	out io.Writer
}

// NewBrowser creates a browser reading commands from in and writing to out.
// title names the section being browsed.
func NewBrowser(nav Navigator, title string, in io.Reader, out io.Writer) *Browser {
	return &Browser{nav: nav, title: title, in: in, out: out}
}

// Run shows the current item and processes commands until q, end of input
// or ctx is done.
func (b *Browser) Run(ctx context.Context) error {
	states, unsubscribe := b.nav.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)
	cmds := b.readCommands(done)

	b.printf(Title, "devlife: %s\n", b.title)
	b.nav.Initialize()

	busy := true
	inputDone := false
	var queue []string

	for {
		if !busy {
			for len(queue) > 0 && !busy {
				cmd := queue[0]
				queue = queue[1:]
				quit, expectState := b.handle(cmd)
				if quit {
					return nil
				}
				busy = expectState
			}
			if inputDone && !busy {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case state, ok := <-states:
			if !ok {
				return nil
			}
			b.render(state)
			busy = state.Kind == navigation.KindLoading

		case line, ok := <-cmds:
			if !ok {
				inputDone = true
				cmds = nil
				continue
			}
			queue = append(queue, line)
		}
	}
}

func (b *Browser) readCommands(done <-chan struct{}) <-chan string {
	cmds := make(chan string)
	go func() {
		defer close(cmds)
		scanner := bufio.NewScanner(b.in)
		for scanner.Scan() {
			line := strings.ToLower(strings.TrimSpace(scanner.Text()))
			if line == "" {
				continue
			}
			select {
			case cmds <- line:
			case <-done:
				return
			}
		}
	}()
	return cmds
}

// handle runs one command. expectState reports whether the navigator will
// publish a state in response.
func (b *Browser) handle(cmd string) (quit, expectState bool) {
	switch cmd {
	case "q", "quit", "exit":
		b.printf(Muted, "bye\n")
		return true, false
	case "n", "next":
		b.nav.Next()
		return false, true
	case "p", "prev", "previous":
		if !b.nav.HasPrevious() {
			b.printf(Warning, "no previous gif\n")
			return false, false
		}
		b.nav.Previous()
		return false, true
	case "r", "refresh", "retry":
		b.nav.Refresh()
		return false, true
	case "h", "help", "?":
		b.help()
		return false, false
	default:
		b.printf(Warning, "unknown command %q\n", cmd)
		b.help()
		return false, false
	}
}

func (b *Browser) render(state navigation.State) {
	switch state.Kind {
	case navigation.KindLoading:
		b.printf(Info, "loading...\n")

	case navigation.KindSuccess:
		item := state.Item
		description := item.Description
		if description == "" {
			description = "(no description)"
		}
		b.printf(Title, "%s\n", description)
		if item.Author != "" {
			b.printf(Author, "  by %s\n", item.Author)
		}
		b.printf(Link, "  %s\n", item.GifURL)
		b.prompt(state.HasPrevious, false)

	case navigation.KindError:
		b.printf(Error, "%s\n", state.Message)
		b.prompt(state.HasPrevious, true)
	}
}

func (b *Browser) prompt(hasPrevious, failed bool) {
	actions := []string{"[n]ext"}
	if hasPrevious {
		actions = append(actions, "[p]rev")
	}
	if failed {
		actions = append(actions, "[r]etry")
	} else {
		actions = append(actions, "[r]efresh")
	}
	actions = append(actions, "[q]uit")
	b.printf(Prompt, "%s > \n", strings.Join(actions, " "))
}

func (b *Browser) help() {
	b.printf(Muted, "commands: n next, p previous, r refresh or retry, h help, q quit\n")
}

func (b *Browser) printf(c *color.Color, format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.Fprintf(b.out, format, args...)
}
