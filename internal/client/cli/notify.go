package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/dmitrijs2005/docmark/internal/client/client"
)

// consoleNotifier renders notifications as single lines on w.
type consoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func newConsoleNotifier(w io.Writer) *consoleNotifier {
	return &consoleNotifier{w: w}
}

func (n *consoleNotifier) Notify(_ context.Context, note client.Notification) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", note.Level, note.Title)
	if note.Message != "" {
		fmt.Fprintf(&b, ": %s", note.Message)
	}
	if note.Err != nil {
		if note.Err.Message != "" && note.Err.Message != note.Message {
			fmt.Fprintf(&b, " (%s)", note.Err.Message)
		}
		fields := make([]string, 0, len(note.Err.FieldErrors))
		for f := range note.Err.FieldErrors {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, field := range fields {
			for _, m := range note.Err.FieldErrors[field] {
				fmt.Fprintf(&b, "\n  %s: %s", field, m)
			}
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, b.String())
}
