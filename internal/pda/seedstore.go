package pda

import "encoding/binary"

// EncodeSeedStorage encodes seeds in the local SQL store layout:
// u32le count, then for each seed a u32le length and the raw bytes.
func EncodeSeedStorage(seeds [][]byte) []byte {
	size := 4
	for _, s := range seeds {
		size += 4 + len(s)
	}
	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(seeds)))
	for _, s := range seeds {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(s)))
		out = append(out, s...)
	}
	return out
}

// DecodeSeedStorage decodes the local SQL store seed layout.
//
// Decoding never fails: truncated input yields the seeds fully decoded before
// the truncation point, possibly none.
func DecodeSeedStorage(data []byte) [][]byte {
	if len(data) < 4 {
		return [][]byte{}
	}
	count := binary.LittleEndian.Uint32(data)
	off := 4
	// Each seed needs at least its 4-byte length, which bounds the capacity
	// a corrupt count can request.
	capHint := min(int(count), (len(data)-off)/4)
	seeds := make([][]byte, 0, capHint)
	for i := uint32(0); i < count; i++ {
		if len(data)-off < 4 {
			break
		}
		n := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if n < 0 || len(data)-off < n {
			break
		}
		seed := make([]byte, n)
		copy(seed, data[off:off+n])
		off += n
		seeds = append(seeds, seed)
	}
	return seeds
}
