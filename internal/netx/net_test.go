package netx

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, path string
		query      url.Values
		want       string
	}{
		{"http://localhost:8000/api", "/files", nil, "http://localhost:8000/api/files"},
		{"http://localhost:8000/api/", "files/f1/process", nil, "http://localhost:8000/api/files/f1/process"},
		{"http://h/api", "/files", url.Values{"page": {"2"}, "status": {"processed"}}, "http://h/api/files?page=2&status=processed"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, JoinURL(tc.base, tc.path, tc.query))
	}
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsTimeout(fmt.Errorf("get: %w", context.DeadlineExceeded)))
	assert.True(t, IsTimeout(&url.Error{Op: "Get", URL: "x", Err: timeoutErr{}}))
	assert.False(t, IsTimeout(errors.New("connection refused")))
	assert.False(t, IsTimeout(context.Canceled))
}

func TestIsCanceled(t *testing.T) {
	assert.True(t, IsCanceled(fmt.Errorf("wrap: %w", context.Canceled)))
	assert.False(t, IsCanceled(context.DeadlineExceeded))
}
