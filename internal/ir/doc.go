// Package ir provides the canonical record model shared by every other
// package: the sealed wire value types, the flat Record, RFC 8785 canonical
// JSON, the cookers/uncookers that move field values between their live and
// wire forms, and domain-separated hashing for derived identities.
//
// ir imports nothing internal. This keeps it the foundational layer with no
// circular dependencies.
//
// Key design constraints:
//   - Wire values are JSON-compatible primitives only (string, number,
//     bool, null, ordered list, string-keyed map)
//   - Non-finite floats never reach the wire
//   - Strings are NFC normalized when cooked and when canonically marshaled
//   - Undecodable dates become the Epoch sentinel rather than an error
package ir
