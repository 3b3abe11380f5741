package persist

import (
	"bytes"
	"encoding/json"

	"treno/internal/model"
)

// MigrateRecords decodes either storage layout into Records.
//
// Per date, the legacy layout stores a bare array of records and the current
// one wraps it as {"records": [...]}. Entries of any other shape, and records
// that do not decode, are dropped. Dates left without records are dropped
// too. Only syntactically invalid JSON is reported as an error.
func MigrateRecords(raw []byte) (model.Records, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		if json.Valid(raw) {
			return model.Records{}, nil
		}
		return nil, err
	}

	out := model.Records{}
	for date, msg := range entries {
		list := recordList(msg)
		recs := make([]model.WorkoutRecord, 0, len(list))
		for _, item := range list {
			if rec, ok := decodeRecord(item); ok {
				recs = append(recs, rec)
			}
		}
		if len(recs) == 0 {
			continue
		}
		out[date] = model.DayBucket{Records: recs}
	}
	return out, nil
}

func recordList(msg json.RawMessage) []json.RawMessage {
	var list []json.RawMessage
	if err := json.Unmarshal(msg, &list); err == nil {
		return list
	}
	var wrapped struct {
		Records []json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(msg, &wrapped); err == nil {
		return wrapped.Records
	}
	return nil
}

func decodeRecord(msg json.RawMessage) (model.WorkoutRecord, bool) {
	if !isObject(msg) {
		return model.WorkoutRecord{}, false
	}
	var rec model.WorkoutRecord
	if err := json.Unmarshal(msg, &rec); err != nil {
		return model.WorkoutRecord{}, false
	}
	if rec.Images == nil {
		rec.Images = []string{}
	}
	return rec, true
}

func isObject(msg json.RawMessage) bool {
	msg = bytes.TrimSpace(msg)
	return len(msg) > 0 && msg[0] == '{'
}

// DecodeEditBuffers keeps every entry that decodes as an EditBuffer object.
func DecodeEditBuffers(raw []byte) (model.EditBuffers, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		if json.Valid(raw) {
			return model.EditBuffers{}, nil
		}
		return nil, err
	}
	out := model.EditBuffers{}
	for date, msg := range entries {
		if !isObject(msg) {
			continue
		}
		var buf model.EditBuffer
		if err := json.Unmarshal(msg, &buf); err != nil {
			continue
		}
		out[date] = buf
	}
	return out, nil
}
