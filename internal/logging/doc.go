// Package logging builds the slog loggers used across Tubecraft.
//
// It provides a console handler tuned for operator-facing daemon output, a
// JSON handler for machine ingestion, standardized field-name constants, and
// helpers that lift episode/stage/request identifiers out of a context into
// structured attributes.
package logging
