package graph

// Aggregate concatenates per-chunk results in chunk order. It performs no
// deduplication or validation. The result is never nil.
func Aggregate(perChunk [][]Triplet) []Triplet {
	n := 0
	for _, ts := range perChunk {
		n += len(ts)
	}
	out := make([]Triplet, 0, n)
	for _, ts := range perChunk {
		out = append(out, ts...)
	}
	return out
}
