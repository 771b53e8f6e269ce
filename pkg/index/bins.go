package index

import "math"

// BinsPerDalton is the resolution of the fragment and precursor indexes.
const BinsPerDalton = 1000

// MassBin returns the index bucket of a neutral mass.
func MassBin(mass float64) int {
	return int(math.Round(mass * BinsPerDalton))
}

// MaxBinForMass returns the last bucket needed to hold masses up to maxMass Daltons.
func MaxBinForMass(maxMass float64) int {
	return int(math.Ceil(maxMass)) * BinsPerDalton
}

// Bins is a read-only bucket array mapping a mass bin to ascending peptide positions.
// Buckets are stored contiguously: bucket b is ids[offsets[b]:offsets[b+1]].
type Bins struct {
	offsets []uint32
	ids     []int32
}

// pair is one (bucket, peptide) entry produced while building.
type pair struct {
	bin int32
	id  int32
}

// newBins compacts pairs into n buckets. Pairs must be ordered by ascending id within each
// bucket; the relative order of pairs is preserved.
func newBins(n int, pairs []pair) *Bins {
	b := &Bins{offsets: make([]uint32, n+1), ids: make([]int32, len(pairs))}
	for _, p := range pairs {
		b.offsets[p.bin+1]++
	}
	for i := 1; i <= n; i++ {
		b.offsets[i] += b.offsets[i-1]
	}
	next := make([]uint32, n)
	copy(next, b.offsets[:n])
	for _, p := range pairs {
		b.ids[next[p.bin]] = p.id
		next[p.bin]++
	}
	return b
}

// Len returns the number of buckets.
func (b *Bins) Len() int { return len(b.offsets) - 1 }

// Bin returns the peptide positions stored in bucket i. The slice must not be modified.
func (b *Bins) Bin(i int) []int32 {
	return b.ids[b.offsets[i]:b.offsets[i+1]]
}

// Entries returns the total number of stored positions.
func (b *Bins) Entries() int { return len(b.ids) }

// NonEmpty returns the number of buckets holding at least one peptide.
func (b *Bins) NonEmpty() int {
	n := 0
	for i := 0; i < b.Len(); i++ {
		if b.offsets[i+1] > b.offsets[i] {
			n++
		}
	}
	return n
}
