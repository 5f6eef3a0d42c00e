package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/docmark/internal/client/client"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Signup(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Forgot(ctx context.Context) error
	List(ctx context.Context, args []string) error
	Search(ctx context.Context, args []string) error
	Stats(ctx context.Context) error
	Upload(ctx context.Context, args []string) error
	Verify(ctx context.Context, id string) error
	Rewatermark(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Rename(ctx context.Context, id, name string) error
	SetPublic(ctx context.Context, id string, public bool) error
	Download(ctx context.Context, args []string) error
	Pending(ctx context.Context) error
}

const (
	guestHelp = "Available commands: signup, login, forgot, exit"
	userHelp  = "Available commands: (l)ist, search, stats, upload, verify, rewatermark, delete, rename, " +
		"publish, unpublish, download, pending, whoami, logout, exit"
)

// runREPL starts a simple read-eval-print loop for the docmark CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. The loop exits on scanner EOF,
// when ctx is done, or when the user types "exit" or "quit".
//
// Commands that need a session are refused until the user logs in.
// Failures the backend reported are already shown by the notifier, so only
// local errors (usage, missing files) are printed here.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("dm> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if cmd == "exit" || cmd == "quit" {
			printlnFn("Bye!")
			return
		}

		report(dispatch(ctx, a, cmd, args))
	}
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string) error {
	switch cmd {
	case "help":
		if a.isLoggedIn() {
			printlnFn(userHelp)
		} else {
			printlnFn(guestHelp)
		}
		return nil
	case "signup", "register":
		return a.Signup(ctx)
	case "login":
		return a.Login(ctx)
	case "forgot":
		return a.Forgot(ctx)
	}

	if !isUserCommand(cmd) {
		printlnFn("Unknown command:", cmd)
		return nil
	}
	if !a.isLoggedIn() {
		printlnFn("Please log in first")
		return nil
	}

	switch cmd {
	case "logout":
		return a.Logout(ctx)
	case "whoami":
		return a.WhoAmI(ctx)
	case "l", "list":
		return a.List(ctx, args)
	case "search":
		return a.Search(ctx, args)
	case "stats":
		return a.Stats(ctx)
	case "upload":
		return a.Upload(ctx, args)
	case "download":
		return a.Download(ctx, args)
	case "pending":
		return a.Pending(ctx)
	case "rename":
		if len(args) < 2 {
			return fmt.Errorf("%w: rename <id> <name>", ErrUsage)
		}
		return a.Rename(ctx, args[0], strings.Join(args[1:], " "))
	}

	if len(args) != 1 {
		return fmt.Errorf("%w: %s <id>", ErrUsage, cmd)
	}
	id := args[0]
	switch cmd {
	case "verify":
		return a.Verify(ctx, id)
	case "rewatermark":
		return a.Rewatermark(ctx, id)
	case "delete", "rm":
		return a.Delete(ctx, id)
	case "publish":
		return a.SetPublic(ctx, id, true)
	default: // unpublish
		return a.SetPublic(ctx, id, false)
	}
}

func isUserCommand(cmd string) bool {
	switch cmd {
	case "logout", "whoami", "l", "list", "search", "stats", "upload", "download", "pending",
		"rename", "verify", "rewatermark", "delete", "rm", "publish", "unpublish":
		return true
	}
	return false
}

func report(err error) {
	if err == nil || client.KindOf(err) != "" {
		return
	}
	printlnFn("Error:", err)
}
