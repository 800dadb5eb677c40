// Package source finds and decodes collector output files.
//
// Two kinds of source exist:
//   - Blob: pda_collector_*.blob files written by collector workers. A blob is
//     only eligible once it has been untouched for QuiescenceWindow, so files
//     still being written are left for the next run.
//   - SQL store: SQLite files holding a pda_registry table. These are produced
//     by a separate finalizing process and are eligible by extension alone.
//
// Every reader opens, fully reads and closes its file before returning.
package source
