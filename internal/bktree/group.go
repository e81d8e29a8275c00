package bktree

import "github.com/ivoronin/simdog/internal/types"

// Cluster is a set of owners whose keys lie within the grouping radius of
// the seed key.
type Cluster[T any] struct {
	Seed   types.Key
	Keys   []types.Key
	Owners []T
}

// Group partitions the index into clusters.
//
// Distinct keys are visited in insertion order. Each key not yet assigned
// seeds a cluster made of the owners of every key within radius of it, and
// all of those keys are marked assigned so they never seed again. A key
// already assigned still joins later clusters it is close to, so an owner
// may appear in more than one cluster. Clusters with fewer than two owners
// are dropped.
func Group[T any](x *Index[T], radius int) ([]Cluster[T], error) {
	if radius < 0 {
		return nil, ErrInvalidRadius
	}

	assigned := make(map[types.Key]bool, x.Len())
	var clusters []Cluster[T]

	for _, seed := range x.Keys() {
		if assigned[seed] {
			continue
		}
		matches, err := x.Query(seed, radius)
		if err != nil {
			return nil, err
		}

		c := Cluster[T]{Seed: seed}
		for _, m := range matches {
			assigned[m.Key] = true
			c.Keys = append(c.Keys, m.Key)
			c.Owners = append(c.Owners, m.Owners...)
		}
		if len(c.Owners) >= 2 {
			clusters = append(clusters, c)
		}
	}
	return clusters, nil
}
