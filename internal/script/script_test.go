package script

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pda-uploader/internal/pda"
	"github.com/roach88/pda-uploader/internal/testutil"
)

func goldenRecords() []pda.Record {
	return append(testutil.Records(1, 2), pda.Record{
		Address:   testutil.Addr(3),
		ProgramID: testutil.Addr(4),
		Seeds:     [][]byte{},
	})
}

func TestBuild_Golden(t *testing.T) {
	s := Build(goldenRecords())
	require.NotNil(t, s)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "three_records", s.Body)

	assert.Equal(t, "9bc40b6253b553de056c83de94634b00", s.Checksum)
	assert.Equal(t, 3, s.Rows)
}

func TestBuild_EmptyReturnsNil(t *testing.T) {
	assert.Nil(t, Build(nil))
	assert.Nil(t, Build([]pda.Record{}))
}

func TestBuild_ChecksumDeterministic(t *testing.T) {
	records := testutil.Records(9, 8, 7)

	first := Build(records)
	second := Build(testutil.Records(9, 8, 7))

	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, first.Checksum, second.Checksum)
	assert.Equal(t, Checksum(first.Body), first.Checksum)
}

func TestBuild_ChecksumTracksContent(t *testing.T) {
	a := Build(testutil.Records(1))
	b := Build(testutil.Records(2))
	assert.NotEqual(t, a.Checksum, b.Checksum)
}

func TestBuild_ChunksStatements(t *testing.T) {
	records := make([]pda.Record, 0, 1001)
	for i := 0; i < 1001; i++ {
		r := pda.Record{Seeds: [][]byte{}}
		r.Address[0] = byte(i >> 8)
		r.Address[1] = byte(i)
		records = append(records, r)
	}

	s := Build(records)
	body := string(s.Body)

	assert.Equal(t, 3, strings.Count(body, "INSERT OR IGNORE INTO pda_registry"))
	assert.Equal(t, 3, strings.Count(body, ";\n"))
	assert.Equal(t, 1001, strings.Count(body, "\n(X'"))
	assert.True(t, strings.HasSuffix(body, ");\n"))

	statements := strings.Split(strings.TrimSuffix(body, ";\n"), ";\n")
	require.Len(t, statements, 3)
	assert.Equal(t, ChunkRows-1, strings.Count(statements[0], ",\n"))
	assert.Equal(t, ChunkRows-1, strings.Count(statements[1], ",\n"))
	assert.Equal(t, 0, strings.Count(statements[2], ",\n"))
}

func TestBlobLiteral(t *testing.T) {
	assert.Equal(t, "X''", BlobLiteral(nil))
	assert.Equal(t, "X''", BlobLiteral([]byte{}))
	assert.Equal(t, "X'00ABFF'", BlobLiteral([]byte{0x00, 0xab, 0xff}))
}

// TestBuild_ExecutesAgainstSQLite runs the script against a local copy of the
// registry schema and checks every row survives intact.
func TestBuild_ExecutesAgainstSQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "remote.sqlite"))
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(pda.RegistrySchema)
	require.NoError(t, err)

	records := testutil.Records(5, 6, 7)
	s := Build(records)

	// Running twice exercises INSERT OR IGNORE.
	for i := 0; i < 2; i++ {
		_, err = db.Exec(string(s.Body))
		require.NoError(t, err)
	}

	rows, err := db.Query("SELECT pda, program_id, seed_count, seed_bytes FROM pda_registry ORDER BY pda")
	require.NoError(t, err)
	defer rows.Close()

	var got []pda.Record
	for rows.Next() {
		var addr, program, seeds []byte
		var count int
		require.NoError(t, rows.Scan(&addr, &program, &count, &seeds))
		decoded, err := pda.DecodeSeeds(seeds)
		require.NoError(t, err)
		assert.Equal(t, len(decoded), count)
		a, err := pda.AddressFromBytes(addr)
		require.NoError(t, err)
		p, err := pda.AddressFromBytes(program)
		require.NoError(t, err)
		got = append(got, pda.Record{Address: a, ProgramID: p, Seeds: decoded})
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, records, got)
}
