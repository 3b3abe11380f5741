// Package persist serializes committed records and edit buffers into a KV
// store, upgrading the legacy layout on first load.
package persist

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"treno/internal/model"
	"treno/internal/store"
)

const (
	KeyRecords     = "treno_records_v1"
	KeyEditBuffers = "treno_editBuffers_v1"

	LegacyKeyRecords     = "records"
	LegacyKeyEditBuffers = "editBuffers"

	// WarnCooldown is the minimum gap between two user-facing storage alerts.
	WarnCooldown = 10 * time.Second
)

const (
	msgRecordsSaveFailed = "Failed to save your records. Check the available storage."
	msgBuffersSaveFailed = "Failed to save your in-progress edits. Check the available storage."
)

// Alerter surfaces a blocking, user-visible message.
type Alerter interface {
	Alert(msg string)
}

type AlertFunc func(msg string)

func (f AlertFunc) Alert(msg string) { f(msg) }

type Options struct {
	Logger *slog.Logger
	Alert  Alerter
	// Now defaults to time.Now.
	Now func() time.Time
}

type Adapter struct {
	kv    store.KV
	log   *slog.Logger
	alert Alerter
	now   func() time.Time

	mu         sync.Mutex
	lastWarned time.Time
}

func New(kv store.KV, opts Options) *Adapter {
	a := &Adapter{kv: kv, log: opts.Logger, alert: opts.Alert, now: opts.Now}
	if a.log == nil {
		a.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Load never fails: unreadable or corrupt data degrades to empty mappings.
func (a *Adapter) Load(ctx context.Context) (model.Records, model.EditBuffers) {
	return a.LoadRecords(ctx), a.LoadEditBuffers(ctx)
}

func (a *Adapter) LoadRecords(ctx context.Context) model.Records {
	raw, ok, err := a.kv.Get(ctx, KeyRecords)
	if err != nil {
		a.log.Warn("failed to load records from storage", "err", err)
		return model.Records{}
	}
	if ok && raw != "" {
		recs, err := MigrateRecords([]byte(raw))
		if err != nil {
			a.log.Warn("failed to load records from storage", "err", err)
			return model.Records{}
		}
		if len(recs) > 0 {
			return recs
		}
	}

	legacyRaw, ok, err := a.kv.Get(ctx, LegacyKeyRecords)
	if err != nil || !ok || legacyRaw == "" {
		if err != nil {
			a.log.Warn("failed to read legacy records", "err", err)
		}
		return model.Records{}
	}
	legacy, err := MigrateRecords([]byte(legacyRaw))
	if err != nil {
		a.log.Warn("failed to load legacy records", "err", err)
		return model.Records{}
	}
	if len(legacy) == 0 {
		return model.Records{}
	}

	a.log.Info("migrated legacy records", "dates", len(legacy))
	// The upgraded copy is still returned when the write-through fails; the
	// legacy key is kept so the next load can retry.
	_ = a.SaveRecords(ctx, legacy)
	return legacy
}

func (a *Adapter) LoadEditBuffers(ctx context.Context) model.EditBuffers {
	raw := ""
	for _, key := range []string{KeyEditBuffers, LegacyKeyEditBuffers} {
		v, ok, err := a.kv.Get(ctx, key)
		if err != nil {
			a.log.Warn("failed to load edit buffers from storage", "key", key, "err", err)
			return model.EditBuffers{}
		}
		if ok && v != "" {
			raw = v
			break
		}
	}
	if raw == "" {
		return model.EditBuffers{}
	}
	bufs, err := DecodeEditBuffers([]byte(raw))
	if err != nil {
		a.log.Warn("failed to load edit buffers from storage", "err", err)
		return model.EditBuffers{}
	}
	return bufs
}

func (a *Adapter) SaveRecords(ctx context.Context, recs model.Records) error {
	if recs == nil {
		recs = model.Records{}
	}
	if err := a.write(ctx, KeyRecords, recs); err != nil {
		a.log.Warn("failed to save records to storage", "err", err)
		a.warn(msgRecordsSaveFailed)
		return err
	}
	return nil
}

func (a *Adapter) SaveEditBuffers(ctx context.Context, bufs model.EditBuffers) error {
	if bufs == nil {
		bufs = model.EditBuffers{}
	}
	if err := a.write(ctx, KeyEditBuffers, bufs); err != nil {
		a.log.Warn("failed to save edit buffers to storage", "err", err)
		a.warn(msgBuffersSaveFailed)
		return err
	}
	return nil
}

func (a *Adapter) write(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return a.kv.Set(ctx, key, string(b))
}

// warn raises msg unless another alert went out within WarnCooldown.
func (a *Adapter) warn(msg string) {
	if a.alert == nil {
		return
	}
	a.mu.Lock()
	now := a.now()
	if !a.lastWarned.IsZero() && now.Sub(a.lastWarned) < WarnCooldown {
		a.mu.Unlock()
		return
	}
	a.lastWarned = now
	a.mu.Unlock()
	a.alert.Alert(msg)
}
