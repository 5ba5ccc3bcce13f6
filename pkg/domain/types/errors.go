package types

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrTagSourceUnavailable marks an alert source condition that is safe to read as
	// "zero findings", such as code scanning not being enabled for a repository.
	ErrTagSourceUnavailable = goerr.NewTag("source_unavailable")

	// ErrTagAlertNotFound marks a lookup of a single alert that no longer exists.
	ErrTagAlertNotFound = goerr.NewTag("alert_not_found")

	// ErrTagMutationFailure marks a failed ticket create or update.
	ErrTagMutationFailure = goerr.NewTag("mutation_failure")

	// ErrTagLocked marks a run lock already held by another run.
	ErrTagLocked = goerr.NewTag("locked")

	// ErrTagInvalidConfig marks invalid user supplied configuration.
	ErrTagInvalidConfig = goerr.NewTag("invalid_config")

	// ErrTagInvalidPayload marks a webhook payload that cannot be decoded.
	ErrTagInvalidPayload = goerr.NewTag("invalid_payload")
)
