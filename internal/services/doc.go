// Package services holds the shared plumbing for external service clients:
// the failure taxonomy stage executors classify errors into, the Wrap helper
// that tags errors with sentinel markers, and context annotations that carry
// episode, stage, and request identifiers into logs.
package services
