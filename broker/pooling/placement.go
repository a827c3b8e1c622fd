// Copyright (C) 2026 Courier Authors.
// See LICENSE for copying information.

package pooling

import (
	"math/rand"

	"github.com/courier-mq/courier/broker/store"
)

// ChoosePool picks a pool by weighted random selection. Zero-weight pools
// are only eligible when every pool has weight zero, in which case the
// choice is uniform.
func ChoosePool(pools []*store.Pool, rnd *rand.Rand) (*store.Pool, error) {
	if len(pools) == 0 {
		return nil, store.ErrPoolDoesNotExist.New("no pools registered")
	}

	total := 0
	for _, pool := range pools {
		total += pool.Weight
	}
	if total == 0 {
		return pools[rnd.Intn(len(pools))], nil
	}

	pick := rnd.Intn(total)
	for _, pool := range pools {
		pick -= pool.Weight
		if pick < 0 {
			return pool, nil
		}
	}
	// Unreachable while weights are non-negative.
	return pools[len(pools)-1], nil
}
