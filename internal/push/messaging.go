// Package push registers this device for push notifications.
package push

import (
	"context"
	"errors"
)

// ErrPermissionDenied is returned when the user refused notifications.
var ErrPermissionDenied = errors.New("push: permission denied")

// Message is a notification delivered while the client is running.
type Message struct {
	Title string            `json:"title,omitempty"`
	Body  string            `json:"body,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// Messaging is a push service connection.
type Messaging interface {
	// RequestPermission asks for permission to receive notifications. It returns
	// ErrPermissionDenied if the user refuses.
	RequestPermission(ctx context.Context) error
	// Token returns the current device token, waiting for one if necessary.
	Token(ctx context.Context) (string, error)
	// OnTokenRefresh registers fn for token changes after the first token.
	OnTokenRefresh(fn func(token string))
	// OnMessage registers fn for incoming notifications.
	OnMessage(fn func(Message))
}
