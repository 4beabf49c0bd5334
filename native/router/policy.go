package router

import (
	"fmt"
	"math/big"
)

const bpsDenominator = 10_000

// Split is a basis-point revenue split applied to a settled payment. The
// creator share is computed as the remainder after the other shares so a
// settlement always conserves the full amount.
type Split struct {
	CreatorBps   uint32
	HolderBps    uint32
	PlatformBps  uint32
	EcosystemBps uint32
}

// DefaultMintSplit returns the platform's mint revenue split.
func DefaultMintSplit() Split {
	return Split{CreatorBps: 8_000, HolderBps: 1_200, PlatformBps: 500, EcosystemBps: 300}
}

// DefaultRentalSplit returns the rental fee split. Rentals never pay the
// holder pools.
func DefaultRentalSplit() Split {
	return Split{CreatorBps: 9_200, HolderBps: 0, PlatformBps: 500, EcosystemBps: 300}
}

// Validate checks that the split covers the full amount exactly once.
func (s Split) Validate() error {
	sum := uint64(s.CreatorBps) + uint64(s.HolderBps) + uint64(s.PlatformBps) + uint64(s.EcosystemBps)
	if sum != bpsDenominator {
		return fmt.Errorf("split must sum to %d bps, got %d", bpsDenominator, sum)
	}
	return nil
}

type shares struct {
	creator   *big.Int
	holder    *big.Int
	platform  *big.Int
	ecosystem *big.Int
}

// apply divides amount by the split. Integer truncation on the holder,
// platform and ecosystem shares leaves the rounding remainder with the
// creator, keeping the shares summing to amount exactly.
func (s Split) apply(amount *big.Int) shares {
	out := shares{
		holder:    shareOf(amount, s.HolderBps),
		platform:  shareOf(amount, s.PlatformBps),
		ecosystem: shareOf(amount, s.EcosystemBps),
	}
	rest := new(big.Int).Set(amount)
	rest.Sub(rest, out.holder)
	rest.Sub(rest, out.platform)
	rest.Sub(rest, out.ecosystem)
	out.creator = rest
	return out
}

func shareOf(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return share.Quo(share, big.NewInt(bpsDenominator))
}
