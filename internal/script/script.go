// Package script renders record batches as bulk SQL insert scripts.
//
// A script is a sequence of INSERT OR IGNORE statements of at most ChunkRows
// rows each, so no single statement exceeds the remote engine's size limits.
// Its checksum is the MD5 of the exact script bytes: the staging store reports
// the same digest as the uploaded object's ETag, which makes it both the
// import idempotency key and the upload integrity check.
package script

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/roach88/pda-uploader/internal/pda"
)

// ChunkRows is the maximum number of rows per INSERT statement.
const ChunkRows = 500

const insertPrefix = "INSERT OR IGNORE INTO " + pda.RegistryTable + " (pda, program_id, seed_count, seed_bytes) VALUES\n"

// Script is a rendered insert script.
type Script struct {
	// Body is the SQL text.
	Body []byte

	// Checksum is the lowercase hex MD5 of Body.
	Checksum string

	// Rows is the number of records rendered.
	Rows int
}

// Build renders records into a script.
// Returns nil when records is empty.
func Build(records []pda.Record) *Script {
	if len(records) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.Grow(len(records) * 256)

	for start := 0; start < len(records); start += ChunkRows {
		end := min(start+ChunkRows, len(records))
		sb.WriteString(insertPrefix)
		for i, r := range records[start:end] {
			sb.WriteByte('(')
			writeBlob(&sb, r.Address[:])
			sb.WriteString(", ")
			writeBlob(&sb, r.ProgramID[:])
			sb.WriteString(", ")
			sb.WriteString(strconv.Itoa(len(r.Seeds)))
			sb.WriteString(", ")
			writeBlob(&sb, pda.EncodeSeeds(r.Seeds))
			sb.WriteByte(')')
			if start+i+1 == end {
				sb.WriteString(";\n")
			} else {
				sb.WriteString(",\n")
			}
		}
	}

	body := []byte(sb.String())
	return &Script{Body: body, Checksum: Checksum(body), Rows: len(records)}
}

// Checksum returns the lowercase hex MD5 of body.
func Checksum(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}

const hexUpper = "0123456789ABCDEF"

// writeBlob writes b as a SQL blob literal: X'..' with uppercase hex.
func writeBlob(sb *strings.Builder, b []byte) {
	sb.WriteString("X'")
	for _, c := range b {
		sb.WriteByte(hexUpper[c>>4])
		sb.WriteByte(hexUpper[c&0x0f])
	}
	sb.WriteByte('\'')
}

// BlobLiteral returns b as a SQL blob literal.
func BlobLiteral(b []byte) string {
	var sb strings.Builder
	writeBlob(&sb, b)
	return sb.String()
}
