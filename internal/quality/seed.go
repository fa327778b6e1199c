package quality

import "unicode/utf16"

// SeedHash is a base-31 polynomial rolling hash over the UTF-16 code units
// of s, wrapping at 32 bits.
func SeedHash(s string) uint32 {
	var h uint32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h*31 + uint32(c)
	}
	return h
}

// PickBySeed deterministically selects one of items from the seed text.
func PickBySeed[T any](items []T, seed string) T {
	return items[SeedHash(seed)%uint32(len(items))]
}
