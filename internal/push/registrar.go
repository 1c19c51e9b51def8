package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/claude/fitconsole/internal/api"
	"github.com/claude/fitconsole/internal/metrics"
	"github.com/claude/fitconsole/internal/models"
	"github.com/claude/fitconsole/internal/state"
)

// ClientUpdater is the backend call that stores a device registration.
type ClientUpdater interface {
	UpdateClient(ctx context.Context, req api.ClientRequest) (*models.Client, error)
}

// KV persists the last token sent to the backend.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Registrar keeps the backend's copy of this device's push token current.
type Registrar struct {
	messaging Messaging
	backend   ClientUpdater
	kv        KV
	deviceID  string
	platform  string
	log       *slog.Logger

	mu        sync.Mutex // serializes pushes so a refresh cannot race Enable
	refreshOn sync.Once
}

// NewRegistrar returns a registrar for the device identified by deviceID.
func NewRegistrar(m Messaging, backend ClientUpdater, kv KV, deviceID, platform string, log *slog.Logger) *Registrar {
	return &Registrar{
		messaging: m,
		backend:   backend,
		kv:        kv,
		deviceID:  deviceID,
		platform:  platform,
		log:       log.With("device_id", deviceID),
	}
}

// Enable asks for permission, reads the device token and registers it with the
// backend if it changed since the last registration. Later token refreshes are
// registered the same way. A refused permission returns ErrPermissionDenied and
// is not asked again.
func (r *Registrar) Enable(ctx context.Context) (string, error) {
	if err := r.messaging.RequestPermission(ctx); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			metrics.PushTokenUpdates.WithLabelValues("denied").Inc()
			r.log.Info("push permission denied")
		}
		return "", err
	}

	tok, err := r.messaging.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("reading push token: %w", err)
	}

	r.refreshOn.Do(func() {
		r.messaging.OnTokenRefresh(func(tok string) {
			if err := r.register(context.Background(), tok); err != nil {
				r.log.Error("registering refreshed push token", "error", err)
			}
		})
	})

	if err := r.register(ctx, tok); err != nil {
		return "", err
	}
	return tok, nil
}

func (r *Registrar) register(ctx context.Context, tok string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	last, _, err := r.kv.Get(state.KeyPushToken)
	if err != nil {
		return err
	}
	if last == tok {
		metrics.PushTokenUpdates.WithLabelValues("unchanged").Inc()
		return nil
	}

	_, err = r.backend.UpdateClient(ctx, api.ClientRequest{
		ID:       r.deviceID,
		Token:    tok,
		Platform: r.platform,
		Enabled:  true,
	})
	if err != nil {
		metrics.PushTokenUpdates.WithLabelValues("error").Inc()
		return fmt.Errorf("registering push token: %w", err)
	}
	metrics.PushTokenUpdates.WithLabelValues("sent").Inc()
	r.log.Info("push token registered")
	return r.kv.Set(state.KeyPushToken, tok)
}

// Disable marks this device's registration disabled and forgets the last token.
func (r *Registrar) Disable(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.backend.UpdateClient(ctx, api.ClientRequest{
		ID:       r.deviceID,
		Platform: r.platform,
		Enabled:  false,
	})
	if err != nil {
		return fmt.Errorf("disabling push client: %w", err)
	}
	return r.kv.Delete(state.KeyPushToken)
}
