package source

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/pda-uploader/internal/pda"
)

// Read decodes every record in f.
// Errors identify the file and, where known, the failing field.
func Read(ctx context.Context, f File) ([]pda.Record, error) {
	switch f.Kind {
	case KindBlob:
		return readBlob(f.Path)
	case KindSQLStore:
		return readSQLStore(ctx, f.Path)
	default:
		return nil, fmt.Errorf("read %s: unknown source kind %v", f.Path, f.Kind)
	}
}

func readBlob(path string) ([]pda.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", path, err)
	}
	records, err := pda.DecodeBlob(data)
	if err != nil {
		return nil, &pda.DecodeError{Path: path, Field: "blob", Err: err}
	}
	return records, nil
}
