package format

import "hash/fnv"

// sum computes the FNV-1a 64 checksum carried by every frame and beacon.
func sum(_raw []byte) uint64 {
	h := fnv.New64a()
	// fnv never returns a write error
	_, _ = h.Write(_raw)
	return h.Sum64()
}

func check(_raw []byte, _sum uint64) bool {
	return sum(_raw) == _sum
}
