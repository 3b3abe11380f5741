package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"treno/internal/model"
)

// Dump is the portable form of everything the adapter stores.
type Dump struct {
	Records     model.Records     `json:"records" yaml:"records"`
	EditBuffers model.EditBuffers `json:"editBuffers" yaml:"editBuffers"`
}

func (a *Adapter) Export(ctx context.Context) Dump {
	recs, bufs := a.Load(ctx)
	return Dump{Records: recs, EditBuffers: bufs}
}

// ReadDump parses a dump, accepting either the wrapped {records, editBuffers}
// shape or a bare records mapping in any layout MigrateRecords understands.
func ReadDump(r io.Reader) (Dump, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Dump{}, err
	}
	if !json.Valid(b) {
		return Dump{}, fmt.Errorf("import: input is not valid JSON")
	}

	var wrapped struct {
		Records     json.RawMessage `json:"records"`
		EditBuffers json.RawMessage `json:"editBuffers"`
	}
	if err := json.Unmarshal(b, &wrapped); err == nil && wrapped.Records != nil && isObject(wrapped.Records) {
		d := Dump{EditBuffers: model.EditBuffers{}}
		if d.Records, err = MigrateRecords(wrapped.Records); err != nil {
			return Dump{}, fmt.Errorf("import records: %w", err)
		}
		if wrapped.EditBuffers != nil {
			if d.EditBuffers, err = DecodeEditBuffers(wrapped.EditBuffers); err != nil {
				return Dump{}, fmt.Errorf("import edit buffers: %w", err)
			}
		}
		return d, nil
	}

	recs, err := MigrateRecords(b)
	if err != nil {
		return Dump{}, fmt.Errorf("import records: %w", err)
	}
	return Dump{Records: recs, EditBuffers: model.EditBuffers{}}, nil
}

// Import replaces the stored mappings with d.
func (a *Adapter) Import(ctx context.Context, d Dump) error {
	if err := a.SaveRecords(ctx, d.Records); err != nil {
		return err
	}
	return a.SaveEditBuffers(ctx, d.EditBuffers)
}

// UpgradeReport describes what Upgrade found and did.
type UpgradeReport struct {
	CurrentDates  int  `json:"currentDates" yaml:"currentDates"`
	LegacyDates   int  `json:"legacyDates" yaml:"legacyDates"`
	LegacyDrafts  int  `json:"legacyDrafts" yaml:"legacyDrafts"`
	Migrated      bool `json:"migrated" yaml:"migrated"`
	DraftsCopied  bool `json:"draftsCopied" yaml:"draftsCopied"`
	LegacyRemoved bool `json:"legacyRemoved" yaml:"legacyRemoved"`
}

// Upgrade copies legacy data to the current keys, never overwriting non-empty
// current data. With removeLegacy the legacy keys are deleted once the
// current keys hold the data.
func (a *Adapter) Upgrade(ctx context.Context, removeLegacy bool) (UpgradeReport, error) {
	var rep UpgradeReport

	current, err := a.readRecords(ctx, KeyRecords)
	if err != nil {
		return rep, err
	}
	legacy, err := a.readRecords(ctx, LegacyKeyRecords)
	if err != nil {
		return rep, err
	}
	rep.CurrentDates, rep.LegacyDates = len(current), len(legacy)
	if len(current) == 0 && len(legacy) > 0 {
		if err := a.SaveRecords(ctx, legacy); err != nil {
			return rep, err
		}
		rep.Migrated = true
	}

	_, haveDrafts, err := a.kv.Get(ctx, KeyEditBuffers)
	if err != nil {
		return rep, err
	}
	raw, ok, err := a.kv.Get(ctx, LegacyKeyEditBuffers)
	if err != nil {
		return rep, err
	}
	if ok && raw != "" {
		bufs, err := DecodeEditBuffers([]byte(raw))
		if err != nil {
			return rep, fmt.Errorf("legacy edit buffers: %w", err)
		}
		rep.LegacyDrafts = len(bufs)
		if !haveDrafts {
			if err := a.SaveEditBuffers(ctx, bufs); err != nil {
				return rep, err
			}
			rep.DraftsCopied = true
		}
	}

	if removeLegacy && (rep.LegacyDates > 0 || rep.LegacyDrafts > 0) {
		for _, key := range []string{LegacyKeyRecords, LegacyKeyEditBuffers} {
			if err := a.kv.Remove(ctx, key); err != nil {
				return rep, err
			}
		}
		rep.LegacyRemoved = true
	}
	return rep, nil
}

func (a *Adapter) readRecords(ctx context.Context, key string) (model.Records, error) {
	raw, ok, err := a.kv.Get(ctx, key)
	if err != nil || !ok || raw == "" {
		return model.Records{}, err
	}
	recs, err := MigrateRecords([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return recs, nil
}
