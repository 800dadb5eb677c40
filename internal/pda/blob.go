package pda

import "fmt"

// minRecordLen is the smallest encoded record: two addresses and an empty
// seed list.
const minRecordLen = 2*AddressLen + 8

// DecodeBlob decodes a collector blob: a bincode sequence of records.
func DecodeBlob(data []byte) ([]Record, error) {
	d := &decoder{buf: data}
	n, err := d.length(minRecordLen)
	if err != nil {
		return nil, fmt.Errorf("record count: %w", err)
	}
	records := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		var r Record
		if r.Address, err = d.address(); err != nil {
			return nil, fmt.Errorf("record %d: pda: %w", i, err)
		}
		if r.Seeds, err = d.seeds(); err != nil {
			return nil, fmt.Errorf("record %d: seeds: %w", i, err)
		}
		if r.ProgramID, err = d.address(); err != nil {
			return nil, fmt.Errorf("record %d: program_id: %w", i, err)
		}
		records = append(records, r)
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return records, nil
}

// EncodeBlob encodes records in the collector blob layout.
func EncodeBlob(records []Record) []byte {
	e := &encoder{buf: make([]byte, 0, 8+len(records)*(minRecordLen+32))}
	e.u64(uint64(len(records)))
	for _, r := range records {
		e.address(r.Address)
		e.seeds(r.Seeds)
		e.address(r.ProgramID)
	}
	return e.buf
}

// EncodeSeeds encodes a seed list as a bincode Vec<Vec<u8>>.
// This is the layout embedded in rendered insert scripts.
func EncodeSeeds(seeds [][]byte) []byte {
	size := 8
	for _, s := range seeds {
		size += 8 + len(s)
	}
	e := &encoder{buf: make([]byte, 0, size)}
	e.seeds(seeds)
	return e.buf
}

// DecodeSeeds is the inverse of EncodeSeeds.
func DecodeSeeds(data []byte) ([][]byte, error) {
	d := &decoder{buf: data}
	seeds, err := d.seeds()
	if err != nil {
		return nil, err
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return seeds, nil
}
