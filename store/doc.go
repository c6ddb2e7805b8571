// Package store implements the dual-tier secure store: a volatile partition
// whose contents are scoped to one browser session and a durable partition
// that persists until explicitly cleared. The refresh token is the only
// secret written to the durable partition and is always sealed with an
// authenticated cipher before it touches disk.
//
// # Partition contract
//
// Both partitions expose the same four operations: Get, Set, Remove and
// Clear. Get never fails on a missing key; it reports absence through its
// second return value. Backend failures surface as [ErrUnavailable] so
// callers can map them to a single storage failure code.
//
// # Session layout
//
// A logged-in session is physically split across the two partitions. The
// access-side fields (access token, id token, email, expiry, creation time)
// live under the volatile "auth" key; the refresh token lives in the durable
// partition as ciphertext plus nonce, next to a small metadata record. The
// two halves form one logical session: [Store.LoadSession] reports a session
// only when both halves are present and erases whichever half survived a
// partial write.
//
// # What this package must NOT do
//
//   - Call the identity provider or make any network request other than to
//     its own storage backends.
//   - Decide flow-state transitions. It reports facts; the machine decides.
//   - Return a decrypt failure as a hard error. A secret that cannot be
//     opened is erased and reported as absent.
package store
