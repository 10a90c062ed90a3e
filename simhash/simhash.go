package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// Fingerprint computes a 64-bit SimHash of the given text.
// Uses FNV-64a hash on lowercased word-level tokens with bit vector
// accumulation, so answers that differ only in casing or word order
// fingerprint close together.
func Fingerprint(text string) uint64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}

	var vector [64]int

	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(word))
		hash := h.Sum64()

		for i := 0; i < 64; i++ {
			if hash&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fingerprint uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fingerprint |= 1 << uint(i)
		}
	}

	return fingerprint
}

// Distance returns the Hamming distance between two SimHash fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar returns true if the Hamming distance between two fingerprints
// is less than or equal to the threshold.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

// Similarity scores the lexical closeness of two texts in [0, 1].
// Two empty texts count as identical; one empty text scores zero.
func Similarity(a, b string) float64 {
	at := strings.TrimSpace(a)
	bt := strings.TrimSpace(b)
	if at == "" && bt == "" {
		return 1
	}
	if at == "" || bt == "" {
		return 0
	}
	return 1 - float64(Distance(Fingerprint(at), Fingerprint(bt)))/64
}
