package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dmitrijs2005/docmark/internal/client/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	loggedIn bool

	calls []string
	args  [][]string
	err   error
}

func (f *fakeExec) record(name string, args ...string) error {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	return f.err
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Signup(ctx context.Context) error {
	return f.record("signup")
}
func (f *fakeExec) Login(ctx context.Context) error {
	f.loggedIn = true
	return f.record("login")
}
func (f *fakeExec) Logout(ctx context.Context) error {
	f.loggedIn = false
	return f.record("logout")
}
func (f *fakeExec) WhoAmI(ctx context.Context) error { return f.record("whoami") }
func (f *fakeExec) Forgot(ctx context.Context) error { return f.record("forgot") }
func (f *fakeExec) List(ctx context.Context, args []string) error {
	return f.record("list", args...)
}
func (f *fakeExec) Search(ctx context.Context, args []string) error {
	return f.record("search", args...)
}
func (f *fakeExec) Stats(ctx context.Context) error { return f.record("stats") }
func (f *fakeExec) Upload(ctx context.Context, args []string) error {
	return f.record("upload", args...)
}
func (f *fakeExec) Verify(ctx context.Context, id string) error { return f.record("verify", id) }
func (f *fakeExec) Rewatermark(ctx context.Context, id string) error {
	return f.record("rewatermark", id)
}
func (f *fakeExec) Delete(ctx context.Context, id string) error { return f.record("delete", id) }
func (f *fakeExec) Rename(ctx context.Context, id, name string) error {
	return f.record("rename", id, name)
}
func (f *fakeExec) SetPublic(ctx context.Context, id string, public bool) error {
	return f.record("public", id, fmt.Sprint(public))
}
func (f *fakeExec) Download(ctx context.Context, args []string) error {
	return f.record("download", args...)
}
func (f *fakeExec) Pending(ctx context.Context) error { return f.record("pending") }

// capturePrint swaps printlnFn and returns the collected lines.
func capturePrint(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSpace(fmt.Sprintln(a...)))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func runLines(exec execIface, lines ...string) {
	sc := bufio.NewScanner(strings.NewReader(strings.Join(lines, "\n")))
	runREPL(context.Background(), exec, func() string { return "status" }, sc)
}

func TestRunREPL_LoginFlowAndCommands(t *testing.T) {
	capturePrint(t)

	exec := &fakeExec{}
	runLines(exec,
		"help",
		"login",
		"help",
		"upload a.pdf -verify",
		"l -status completed",
		"verify 7",
		"rewatermark 7",
		"rename 7 new name.pdf",
		"publish 7",
		"unpublish 7",
		"download -s3 7",
		"pending",
		"stats",
		"rm 7",
		"logout",
		"exit",
		"whoami",
	)

	require.Equal(t, []string{
		"login", "upload", "list", "verify", "rewatermark", "rename", "public", "public",
		"download", "pending", "stats", "delete", "logout",
	}, exec.calls)
	assert.Equal(t, []string{"a.pdf", "-verify"}, exec.args[1])
	assert.Equal(t, []string{"7", "new name.pdf"}, exec.args[5])
	assert.Equal(t, []string{"7", "true"}, exec.args[6])
	assert.Equal(t, []string{"7", "false"}, exec.args[7])
}

func TestRunREPL_RequiresLogin(t *testing.T) {
	out := capturePrint(t)

	exec := &fakeExec{}
	runLines(exec, "list", "upload x.pdf", "quit")

	assert.Empty(t, exec.calls)
	assert.Contains(t, *out, "Please log in first")
	assert.Equal(t, "Bye!", (*out)[len(*out)-1])
}

func TestRunREPL_UsageAndUnknown(t *testing.T) {
	out := capturePrint(t)

	exec := &fakeExec{loggedIn: true}
	runLines(exec, "verify", "rename 7", "foobar")

	assert.Empty(t, exec.calls)
	assert.Contains(t, *out, "Unknown command: foobar")
	usage := 0
	for _, l := range *out {
		if strings.HasPrefix(l, "Error: invalid arguments") {
			usage++
		}
	}
	assert.Equal(t, 2, usage)
}

func TestRunREPL_ReportsOnlyLocalErrors(t *testing.T) {
	out := capturePrint(t)

	exec := &fakeExec{loggedIn: true, err: &client.RequestError{Kind: client.KindNotFound, Message: "gone"}}
	runLines(exec, "verify 1")
	for _, l := range *out {
		assert.NotContains(t, l, "gone")
	}

	exec.err = errors.New("open x.pdf: no such file")
	runLines(exec, "upload x.pdf")
	assert.Contains(t, *out, "Error: open x.pdf: no such file")
}

func TestRunREPL_StopsOnCanceledContext(t *testing.T) {
	capturePrint(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := &fakeExec{loggedIn: true}
	sc := bufio.NewScanner(strings.NewReader("stats\n"))
	runREPL(ctx, exec, func() string { return "" }, sc)

	assert.Empty(t, exec.calls)
}
