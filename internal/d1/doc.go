// Package d1 drives the remote bulk-import protocol for one database.
//
// An import is a small state machine:
//
//	Init -> {UploadStaging -> Ingest} | SkipToStatus -> Polling -> {Complete | Failed}
//
// Init sends the script checksum as an idempotency token. The service either
// returns a staging URL, in which case the script is PUT there, its ETag is
// verified against the checksum and ingestion is requested, or it returns the
// status of an import it has already seen for that checksum. Either way the
// client then polls until the import is complete, fails, or the attempt cap
// is reached.
//
// Polling decisions are made by Decide, a pure function of the last status
// and the attempt count, and delays go through an injected Sleeper so tests
// never wait on wall time.
//
// No request is retried here. A failed import is reported to the caller,
// whose next run repeats it idempotently.
package d1
