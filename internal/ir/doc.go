// Package ir provides the literal value types carried by query plans.
//
// This package contains value definitions only. All other internal packages
// may import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere. Money is int64 minor units (paise, cents).
//   - Canonical JSON (RFC 8785) is the only encoding used for plan identity.
//   - Strings are NFC normalized at the serialization boundary.
package ir
