package optimizer

import "math/rand/v2"

// Permutation is an ordering of activity indexes.
type Permutation []int

func identity(n int) Permutation {
	p := make(Permutation, n)
	for i := range p {
		p[i] = i
	}
	return p
}

// Clone returns a copy of p.
func (p Permutation) Clone() Permutation {
	return append(Permutation(nil), p...)
}

// InitialPopulation returns size orderings of n items. The first is the
// identity ordering and the rest are uniform shuffles.
func InitialPopulation(rng *rand.Rand, n, size int) []Permutation {
	population := make([]Permutation, 0, size)
	if size <= 0 {
		return population
	}
	population = append(population, identity(n))
	for len(population) < size {
		p := identity(n)
		rng.Shuffle(len(p), func(i, j int) { p[i], p[j] = p[j], p[i] })
		population = append(population, p)
	}
	return population
}

// Crossover performs order crossover: a random contiguous slice of parent1 is
// kept in place and the remaining positions are filled with parent2's items in
// parent2's order.
func Crossover(rng *rand.Rand, parent1, parent2 Permutation) Permutation {
	n := len(parent1)
	if n == 0 {
		return Permutation{}
	}

	start := rng.IntN(n)
	end := start + rng.IntN(n-start)

	child := make(Permutation, n)
	placed := make([]bool, n)
	for i := range child {
		child[i] = -1
	}
	for i := start; i <= end; i++ {
		child[i] = parent1[i]
		placed[parent1[i]] = true
	}

	j := 0
	for i := range child {
		if child[i] != -1 {
			continue
		}
		for placed[parent2[j]] {
			j++
		}
		child[i] = parent2[j]
		placed[parent2[j]] = true
		j++
	}
	return child
}

// Mutate returns a copy of p with either two positions swapped or a random
// segment reversed, each with probability one half.
func Mutate(rng *rand.Rand, p Permutation) Permutation {
	out := p.Clone()
	n := len(out)
	if n == 0 {
		return out
	}

	if rng.Float64() < 0.5 {
		i, j := rng.IntN(n), rng.IntN(n)
		out[i], out[j] = out[j], out[i]
		return out
	}

	start := rng.IntN(n)
	end := start + rng.IntN(n-start)
	for start < end {
		out[start], out[end] = out[end], out[start]
		start++
		end--
	}
	return out
}
