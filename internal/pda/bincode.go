package pda

import (
	"encoding/binary"
	"fmt"
	"math"
)

// decoder reads bincode v1 values from a byte slice.
// Every length prefix is checked against the remaining input before any
// allocation, so corrupt prefixes fail fast instead of exhausting memory.
type decoder struct {
	buf []byte
	off int
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.off
}

func (d *decoder) u64() (uint64, error) {
	if d.remaining() < 8 {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return v, nil
}

// length reads a u64 sequence length and checks that at least min bytes per
// element remain.
func (d *decoder) length(min int) (int, error) {
	n, err := d.u64()
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt32 {
		return 0, fmt.Errorf("length %d out of range", n)
	}
	if min > 0 && int(n) > d.remaining()/min {
		return 0, ErrTruncated
	}
	return int(n), nil
}

func (d *decoder) bytes() ([]byte, error) {
	n, err := d.length(1)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, d.buf[d.off:d.off+n])
	d.off += n
	return b, nil
}

func (d *decoder) address() (Address, error) {
	var a Address
	if d.remaining() < AddressLen {
		return a, ErrTruncated
	}
	copy(a[:], d.buf[d.off:d.off+AddressLen])
	d.off += AddressLen
	return a, nil
}

func (d *decoder) seeds() ([][]byte, error) {
	n, err := d.length(8)
	if err != nil {
		return nil, err
	}
	seeds := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		s, err := d.bytes()
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, s)
	}
	return seeds, nil
}

func (d *decoder) finish() error {
	if d.remaining() != 0 {
		return fmt.Errorf("%w: %d", ErrTrailingBytes, d.remaining())
	}
	return nil
}

// encoder appends bincode v1 values to a buffer.
type encoder struct {
	buf []byte
}

func (e *encoder) u64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *encoder) bytes(b []byte) {
	e.u64(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *encoder) address(a Address) {
	e.buf = append(e.buf, a[:]...)
}

func (e *encoder) seeds(seeds [][]byte) {
	e.u64(uint64(len(seeds)))
	for _, s := range seeds {
		e.bytes(s)
	}
}
