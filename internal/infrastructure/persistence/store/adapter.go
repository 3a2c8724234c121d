package store

import (
	"context"
	"encoding/json"

	"github.com/AtRiskMedia/zori-go/internal/domain/faults"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
)

// Adapter wraps a Backend and never fails: unavailable storage degrades to a
// no-op write or an absent read for that call.
type Adapter struct {
	backend Backend
	logger  *logging.ChanneledLogger
}

// NewAdapter creates an adapter over backend.
func NewAdapter(backend Backend, logger *logging.ChanneledLogger) *Adapter {
	return &Adapter{backend: backend, logger: logger}
}

// Cookie returns the cookie value, or "" and false when absent or unreadable.
func (a *Adapter) Cookie(ctx context.Context, name string) (string, bool) {
	value, ok, err := a.backend.GetCookie(ctx, name)
	if err != nil {
		a.degraded("get_cookie", name, err)
		return "", false
	}
	return value, ok
}

// SetCookie writes a cookie, reporting whether it was persisted.
func (a *Adapter) SetCookie(ctx context.Context, name, value string, days int) bool {
	if err := a.backend.SetCookie(ctx, name, value, days); err != nil {
		a.degraded("set_cookie", name, err)
		return false
	}
	return true
}

// DeleteCookie removes a cookie.
func (a *Adapter) DeleteCookie(ctx context.Context, name string) {
	if err := a.backend.DeleteCookie(ctx, name); err != nil {
		a.degraded("delete_cookie", name, err)
	}
}

// Get returns the stored value, or "" and false when absent or unreadable.
func (a *Adapter) Get(ctx context.Context, key string) (string, bool) {
	value, ok, err := a.backend.Get(ctx, key)
	if err != nil {
		a.degraded("get", key, err)
		return "", false
	}
	return value, ok
}

// Set writes a value, reporting whether it was persisted.
func (a *Adapter) Set(ctx context.Context, key, value string) bool {
	if err := a.backend.Set(ctx, key, value); err != nil {
		a.degraded("set", key, err)
		return false
	}
	return true
}

// Remove deletes a value.
func (a *Adapter) Remove(ctx context.Context, key string) {
	if err := a.backend.Remove(ctx, key); err != nil {
		a.degraded("remove", key, err)
	}
}

// GetJSON decodes the value at key into dst. Corrupt JSON is logged and reported
// as absent so callers recreate the state.
func (a *Adapter) GetJSON(ctx context.Context, key string, dst any) bool {
	raw, ok := a.Get(ctx, key)
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		a.logger.Storage().Warn("Discarding malformed persisted state",
			"key", key,
			"error", faults.MalformedState("decode "+key, err).Error())
		return false
	}
	return true
}

// SetJSON encodes v and stores it at key.
func (a *Adapter) SetJSON(ctx context.Context, key string, v any) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		a.logger.Storage().Error("Failed to encode state", "key", key, "error", err.Error())
		return false
	}
	return a.Set(ctx, key, string(raw))
}

func (a *Adapter) degraded(op, key string, err error) {
	a.logger.Storage().Debug("Storage operation degraded to no-op",
		"operation", op,
		"key", key,
		"error", faults.StorageUnavailable(op, err).Error())
}
