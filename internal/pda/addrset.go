package pda

import (
	"fmt"
	"slices"
)

// EncodeAddressSet encodes addresses as a bincode HashSet<Address>.
// Addresses are written in ascending order so equal sets encode identically.
func EncodeAddressSet(addrs []Address) []byte {
	sorted := slices.Clone(addrs)
	slices.SortFunc(sorted, Address.Compare)
	e := &encoder{buf: make([]byte, 0, 8+len(sorted)*AddressLen)}
	e.u64(uint64(len(sorted)))
	for _, a := range sorted {
		e.address(a)
	}
	return e.buf
}

// DecodeAddressSet decodes a bincode HashSet<Address>.
func DecodeAddressSet(data []byte) ([]Address, error) {
	d := &decoder{buf: data}
	n, err := d.length(AddressLen)
	if err != nil {
		return nil, fmt.Errorf("address count: %w", err)
	}
	addrs := make([]Address, 0, n)
	for i := 0; i < n; i++ {
		a, err := d.address()
		if err != nil {
			return nil, fmt.Errorf("address %d: %w", i, err)
		}
		addrs = append(addrs, a)
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return addrs, nil
}
