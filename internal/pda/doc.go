// Package pda defines the address-derivation record and its on-disk encodings.
//
// A Record pairs a derived 32-byte address with the program identifier and the
// ordered seeds that produced it. Records are identified by Address alone:
// two records with the same address are interchangeable for deduplication.
//
// # Encodings
//
// Collector blobs, the checkpoint set and the seed column of rendered insert
// scripts use the bincode v1 layout written by the upstream collectors:
// little-endian fixed-width integers, u64 length prefixes for sequences and
// no prefix for fixed 32-byte arrays.
//
// Local SQL stores keep seeds in a separate compact layout (u32 count, then
// u32 length + bytes per seed). The two seed layouts are not interchangeable.
package pda
