package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type fakeTokens struct {
	mu      sync.Mutex
	token   string
	err     error
	LastSet string
	Clears  int
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.err
}

func (f *fakeTokens) SetToken(_ context.Context, t string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token, f.LastSet = t, t
	return nil
}

func (f *fakeTokens) ClearToken(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.Clears++
	return nil
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recordingNotifier) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.got...)
}

func newTestGateway(t *testing.T, h http.HandlerFunc, opts ...Option) (*Gateway, *fakeTokens, *recordingNotifier) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	tokens := &fakeTokens{}
	notes := &recordingNotifier{}
	opts = append([]Option{WithNotifier(notes)}, opts...)
	return NewGateway(srv.URL+"/api", tokens, opts...), tokens, notes
}
