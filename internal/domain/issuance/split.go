package issuance

import "math/big"

// UserSharePercent is the recipient's share of the minted supply; the reserve takes the rest.
const UserSharePercent = 70

var (
	bigHundred   = big.NewInt(100)
	bigUserShare = big.NewInt(UserSharePercent)
)

// SplitSupply returns floor(total*70/100) and the remainder.
// userShare + reserveShare == total for every non-negative total.
func SplitSupply(total *big.Int) (userShare, reserveShare *big.Int) {
	if total == nil || total.Sign() <= 0 {
		return new(big.Int), new(big.Int)
	}
	userShare = new(big.Int).Mul(total, bigUserShare)
	userShare.Quo(userShare, bigHundred)
	reserveShare = new(big.Int).Sub(total, userShare)
	return userShare, reserveShare
}
