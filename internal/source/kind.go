package source

import "fmt"

// Kind identifies the encoding of a source file.
type Kind int

const (
	// KindBlob is a bincode collector blob.
	KindBlob Kind = iota + 1

	// KindSQLStore is a local SQLite store with a pda_registry table.
	KindSQLStore
)

func (k Kind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindSQLStore:
		return "sqlstore"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// File is an eligible source file.
type File struct {
	Path string
	Kind Kind
}
