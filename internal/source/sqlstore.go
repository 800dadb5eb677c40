package source

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/pda-uploader/internal/pda"
)

// storeURI returns a read-only SQLite URI for path. The path is made absolute
// and escaped so '#', '?' and '%' in file names stay part of the name.
func storeURI(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	u := &url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: "mode=ro"}
	return u.String(), nil
}

// openStore opens a SQL store read-only.
// The file must already exist; a missing file is an error rather than an
// empty database.
func openStore(path string) (*sql.DB, error) {
	dsn, err := storeURI(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sql store: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA query_only = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute %q: %w", "PRAGMA query_only = ON", err)
	}
	return db, nil
}

func readSQLStore(ctx context.Context, path string) (records []pda.Record, retErr error) {
	db, err := openStore(path)
	if err != nil {
		return nil, fmt.Errorf("read sql store %s: %w", path, err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close sql store %s: %w", path, cerr)
		}
	}()

	rows, err := db.QueryContext(ctx, "SELECT pda, program_id, seed_bytes FROM "+pda.RegistryTable)
	if err != nil {
		return nil, fmt.Errorf("query sql store %s: %w", path, err)
	}
	defer rows.Close()

	for rows.Next() {
		var addr, program, seeds []byte
		if err := rows.Scan(&addr, &program, &seeds); err != nil {
			return nil, fmt.Errorf("scan sql store %s: %w", path, err)
		}

		var r pda.Record
		if r.Address, err = pda.AddressFromBytes(addr); err != nil {
			return nil, &pda.DecodeError{Path: path, Field: "pda", Err: err}
		}
		if r.ProgramID, err = pda.AddressFromBytes(program); err != nil {
			return nil, &pda.DecodeError{Path: path, Field: "program_id", Err: err}
		}
		r.Seeds = pda.DecodeSeedStorage(seeds)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sql store %s: %w", path, err)
	}
	return records, nil
}
