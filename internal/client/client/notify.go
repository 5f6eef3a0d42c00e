package client

import (
	"context"
	"net/http"
)

// Level is the severity of a Notification.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
)

// Notification is a user-facing toast. Rendering is up to the Notifier.
type Notification struct {
	Level   Level
	Title   string
	Message string
	// Err is set for error notifications.
	Err *RequestError
}

// Notifier receives side-channel notifications. Implementations must be
// safe for concurrent use and must not block for long.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notification) {}

// NopNotifier drops every notification.
var NopNotifier Notifier = nopNotifier{}

// ErrorNotification builds the toast reported for err.
func ErrorNotification(err *RequestError) Notification {
	n := Notification{Level: LevelError, Err: err}

	switch err.Kind {
	case KindUnauthorized:
		n.Title, n.Message = "Authentication Required", "Please log in to continue"
	case KindForbidden:
		n.Title, n.Message = "Access Denied", "You don't have permission to perform this action"
	case KindNotFound:
		n.Title, n.Message = "Not Found", "The requested resource was not found"
	case KindValidation:
		n.Title, n.Message = "Validation Error", "Please check your input and try again"
	case KindRateLimited:
		n.Title, n.Message = "Rate Limited", "Too many requests. Please try again later"
	case KindServerError:
		if err.HTTPStatus == http.StatusServiceUnavailable {
			n.Title, n.Message = "Service Unavailable", "The service is temporarily unavailable"
		} else {
			n.Title, n.Message = "Server Error", "Something went wrong on our end. Please try again"
		}
	case KindTimeout:
		n.Title, n.Message = "Request Timeout", "The request took too long to complete. Please try again."
	case KindNetwork:
		n.Title, n.Message = "Network Error", "Please check your internet connection and try again."
	case KindCanceled:
		n.Title, n.Message = "Request Canceled", err.Message
	case KindUnexpected:
		n.Title, n.Message = "Unexpected Response", err.Message
	default:
		n.Title, n.Message = "Request Failed", err.Message
	}
	return n
}
