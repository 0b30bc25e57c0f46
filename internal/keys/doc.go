// Package keys rotates provider API keys across translation batches.
//
// The pool hands keys out round-robin. A key that fails is skipped until the
// rotation has moved a full pool length past the failure; there is no timed
// backoff. All operations are safe for concurrent use.
package keys
