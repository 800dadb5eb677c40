package pda

func addr(b byte) Address {
	var a Address
	for i := range a {
		a[i] = b
	}
	return a
}
