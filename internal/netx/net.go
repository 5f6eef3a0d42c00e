// Package netx holds transport-level helpers used by the HTTP gateway.
package netx

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
)

// JoinURL appends path (and an optional encoded query) to base, keeping
// exactly one slash between them.
func JoinURL(base, path string, query url.Values) string {
	u := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsCanceled reports whether err came from a canceled context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
