package rewards

import (
	"math/big"

	"github.com/holiman/uint256"
)

// precision scales RewardPerShare so integer division keeps sub-lamport
// resolution. Every pending computation divides it back out.
var precision = new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil)

// Precision returns the RewardPerShare fixed-point scale (10^12).
func Precision() *big.Int {
	return new(big.Int).Set(precision)
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return uint256.NewInt(0), nil
	}
	if v.Sign() < 0 {
		return nil, ErrArithmeticOverflow
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return out, nil
}

// mulDiv computes a*b/den with 256-bit overflow detection on the product.
func mulDiv(a, b, den *big.Int) (*big.Int, error) {
	if den == nil || den.Sign() <= 0 {
		return nil, ErrArithmeticOverflow
	}
	ua, err := toUint256(a)
	if err != nil {
		return nil, err
	}
	ub, err := toUint256(b)
	if err != nil {
		return nil, err
	}
	uden, err := toUint256(den)
	if err != nil {
		return nil, err
	}
	product, overflow := new(uint256.Int).MulOverflow(ua, ub)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return new(uint256.Int).Div(product, uden).ToBig(), nil
}

// checkedAdd returns a+b, rejecting results beyond 256 bits.
func checkedAdd(a, b *big.Int) (*big.Int, error) {
	ua, err := toUint256(a)
	if err != nil {
		return nil, err
	}
	ub, err := toUint256(b)
	if err != nil {
		return nil, err
	}
	sum, carry := new(uint256.Int).AddOverflow(ua, ub)
	if carry {
		return nil, ErrArithmeticOverflow
	}
	return sum.ToBig(), nil
}

// accrualPerShare converts a deposit into the RewardPerShare increment for the
// given total weight: amount*precision/totalWeight, truncated.
func accrualPerShare(amount, totalWeight *big.Int) (*big.Int, error) {
	if totalWeight == nil || totalWeight.Sign() <= 0 {
		return nil, ErrArithmeticOverflow
	}
	return mulDiv(amount, precision, totalWeight)
}

// pendingAmount computes weight*(current-last)/precision. A stale checkpoint
// that somehow exceeds the accumulator yields zero rather than a negative
// payout.
func pendingAmount(weight, current, last *big.Int) (*big.Int, error) {
	cur := newBigInt(current)
	prev := newBigInt(last)
	if cur.Cmp(prev) <= 0 {
		return big.NewInt(0), nil
	}
	delta := new(big.Int).Sub(cur, prev)
	return mulDiv(weight, delta, precision)
}

// distributedOf returns how many lamports a RewardPerShare increment actually
// pays out across the current weight; the difference against the deposited
// amount is rounding dust retained by the pool.
func distributedOf(perShareDelta, totalWeight *big.Int) (*big.Int, error) {
	return mulDiv(perShareDelta, totalWeight, precision)
}
