// Package ir provides the literal value representation shared by the
// specification compiler, the query plan and the executors.
//
// This package contains value types only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Values are a sealed set: Null, String, Int, Float, Bool, Time, Array, Object
//   - JSON numbers without a fraction or exponent decode to Int, never Float
//   - Object keys are iterated in RFC 8785 order (UTF-16 code units) so that
//     anything derived from a document is deterministic
//   - Canonical encoding (MarshalCanonical) is the only input to Fingerprint
package ir
