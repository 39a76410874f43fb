package ipembed

// Bit is the value of the bit number i of a, counting from the most
// significant one.  i must be less than [Bits].
func Bit(a *[16]byte, i int) (set bool) {
	return a[i>>3]&(0x80>>(i&7)) != 0
}

// ClearBit clears the bit number i of a, counting from the most significant
// one.  i must be less than [Bits].
func ClearBit(a *[16]byte, i int) {
	a[i>>3] &^= 0x80 >> (i & 7)
}

// Mask clears all bits of a beyond the first bits ones.  changed is true if
// any of them were set.  bits must be in the [0, Bits] range.
func Mask(a *[16]byte, bits int) (changed bool) {
	if bits >= Bits {
		return false
	}

	i := bits >> 3
	if rem := bits & 7; rem != 0 {
		keep := byte(uint(0xff00) >> rem)
		if a[i]&^keep != 0 {
			changed = true
			a[i] &= keep
		}

		i++
	}

	for ; i < len(a); i++ {
		if a[i] != 0 {
			changed = true
			a[i] = 0
		}
	}

	return changed
}

// EqualPrefix returns true if the first bits bits of a and b are equal.  bits
// must be in the [0, Bits] range.
func EqualPrefix(a, b *[16]byte, bits int) (ok bool) {
	if *a == *b {
		return true
	}

	full := bits >> 3
	for i := range full {
		if a[i] != b[i] {
			return false
		}
	}

	rem := bits & 7
	if rem == 0 {
		return true
	}

	keep := byte(uint(0xff00) >> rem)

	return a[full]&keep == b[full]&keep
}
