package domain

import "fmt"

// Strategy is one of the predefined wagering approaches. The session's chosen
// image index selects it, so the catalog has exactly one entry per image.
type Strategy string

const (
	StrategyBackFavourite Strategy = "BackFav"
	StrategyLayFavourite  Strategy = "LayFav"
)

// Strategies is the catalog indexed by chosen image.
var Strategies = [...]Strategy{StrategyBackFavourite, StrategyLayFavourite}

// StrategyAt returns the catalog entry for idx.
func StrategyAt(idx int) (Strategy, error) {
	if idx < 0 || idx >= len(Strategies) {
		return "", fmt.Errorf("%w: %d", ErrInvalidStrategy, idx)
	}
	return Strategies[idx], nil
}

// Side translates the strategy into the order side placed on the favourite.
func (s Strategy) Side() Side {
	if s == StrategyLayFavourite {
		return SideLay
	}
	return SideBack
}

// Side of an exchange order.
type Side string

const (
	SideBack Side = "BACK"
	SideLay  Side = "LAY"
)
