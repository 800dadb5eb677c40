package pda

// RegistryTable is the table holding records in local SQL stores and in the
// remote databases.
const RegistryTable = "pda_registry"

// RegistrySchema creates RegistryTable if it does not exist.
const RegistrySchema = `
CREATE TABLE IF NOT EXISTS pda_registry (
    pda BLOB PRIMARY KEY,
    program_id BLOB NOT NULL,
    seed_count INTEGER NOT NULL,
    seed_bytes BLOB NOT NULL
) WITHOUT ROWID;
`
