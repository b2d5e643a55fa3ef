package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows the hashed layout to change later.
const (
	DomainPlan = "tally/plan/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PlanID computes the content-addressed identity of a query plan body.
// Two plans with the same predicates, shape, grouping and limit for the
// same user always share an ID, regardless of which request produced them.
func PlanID(body IRObject) (string, error) {
	canonical, err := MarshalCanonical(body)
	if err != nil {
		return "", fmt.Errorf("PlanID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPlan, canonical), nil
}
