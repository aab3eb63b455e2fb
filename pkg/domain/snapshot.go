package domain

import (
	"encoding/json"
	"fmt"
)

// Snapshot is the canonical JSON image of an entity on one side of a Change.
// The zero value means no image, which is how the Before side of a create and
// the After side of a physical delete are represented.
type Snapshot struct {
	raw json.RawMessage
}

// SnapshotOf marshals a value into a Snapshot.
func SnapshotOf(v any) (Snapshot, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	return Snapshot{raw: raw}, nil
}

// RawSnapshot wraps pre-serialized JSON. The bytes are cloned so later caller
// mutations cannot reach the stored image.
func RawSnapshot(raw json.RawMessage) Snapshot {
	if len(raw) == 0 {
		return Snapshot{}
	}
	return Snapshot{raw: append(json.RawMessage(nil), raw...)}
}

// Present reports whether the snapshot carries an image.
func (s Snapshot) Present() bool {
	return len(s.raw) > 0
}

// Raw returns a copy of the underlying JSON, or nil when no image is present.
func (s Snapshot) Raw() json.RawMessage {
	if len(s.raw) == 0 {
		return nil
	}
	return append(json.RawMessage(nil), s.raw...)
}

// Decode unmarshals the image into the given value. Decoding an absent
// snapshot is an error; callers check Present first.
func (s Snapshot) Decode(into any) error {
	if len(s.raw) == 0 {
		return fmt.Errorf("snapshot: no image to decode")
	}
	return json.Unmarshal(s.raw, into)
}
