// Package ir holds the literal value types that flow through qplan and the
// canonical JSON encoding used to fingerprint command trees.
//
// This package has no internal imports. Every other package may depend on
// it.
//
// Key constraints:
//   - No binary floating point values. Fractional literals use Decimal,
//     which keeps the exact digits the caller wrote.
//   - Canonical encoding sorts object keys by UTF-16 code units and NFC
//     normalizes strings, so the same tree always hashes the same way.
package ir
