// Package switchover publishes a merged batch to a blue/green pair of remote
// databases so readers never see a partially loaded database.
//
// A pointer in the key-value store names the active color. A switch uploads
// the batch to the inactive database, flips the pointer to it exactly once,
// then brings the previously active database up to date. The checkpoint is
// extended and persisted only after both databases confirmed the batch, so a
// crash at any point before that causes a repeat upload, never a loss.
package switchover
