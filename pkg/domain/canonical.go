package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// MarshalCanonical serializes a record to its canonical byte form: struct
// fields in declaration order, map keys sorted (encoding/json guarantees
// both). Two writes of logically-equal records therefore produce byte-identical
// stored representations, which fingerprinting and deterministic replication
// depend on. Callers must normalize order-carrying slices (see
// NormalizeApprovals) before marshaling.
func MarshalCanonical(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Fingerprint returns the hex-encoded SHA-256 digest of the canonical
// serialization of v. Used to anchor private-data integrity in the public
// record without revealing content.
func Fingerprint(v any) (string, error) {
	raw, err := MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// NormalizeApprovals sorts approvals by role so that approval order never
// influences the stored byte representation. Membership is unique per role;
// ordering is irrelevant to the workflow.
func NormalizeApprovals(approvals []Approval) []Approval {
	if len(approvals) <= 1 {
		return approvals
	}
	out := append([]Approval(nil), approvals...)
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}
