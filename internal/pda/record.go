package pda

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"slices"
)

// AddressLen is the byte length of an Address.
const AddressLen = 32

// Address is a 32-byte derived or program identifier.
type Address [AddressLen]byte

// AddressFromBytes copies b into an Address.
// Returns an error unless b is exactly AddressLen bytes.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLen {
		return a, fmt.Errorf("address must be %d bytes, got %d", AddressLen, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// String returns the lowercase hex form of the address.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Compare orders addresses bytewise.
func (a Address) Compare(b Address) int {
	return bytes.Compare(a[:], b[:])
}

// Record is one address-derivation record.
type Record struct {
	Address   Address
	ProgramID Address
	Seeds     [][]byte
}

// SortByAddress sorts records in place by address.
// The sort is stable so records sharing an address keep their input order.
func SortByAddress(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		return a.Address.Compare(b.Address)
	})
}

// CompactByAddress removes adjacent records with equal addresses, keeping the
// first of each run. Records must already be sorted by address.
// Returns the compacted slice and the number of records removed.
func CompactByAddress(records []Record) ([]Record, int) {
	before := len(records)
	out := slices.CompactFunc(records, func(a, b Record) bool {
		return a.Address == b.Address
	})
	return out, before - len(out)
}
