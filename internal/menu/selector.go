// Package menu maps a stored menu version onto the capabilities a user sees.
package menu

import (
	"errors"
	"fmt"
	"sort"
)

type Capability string

const (
	Profile     Capability = "profile"
	Balance     Capability = "balance"
	Refer       Capability = "refer"
	Withdraw    Capability = "withdraw"
	CheckJoin   Capability = "check_join"
	Leaderboard Capability = "leaderboard"
	Stats       Capability = "stats"
	CreateBot   Capability = "create_bot"
)

const DefaultVersion = 1

var ErrUnknownVersion = errors.New("unknown menu version")

type Tier struct {
	Version      int
	Name         string
	Capabilities []Capability
}

func (t Tier) Has(c Capability) bool {
	for _, have := range t.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

var base = []Capability{Profile, Balance, Refer, Withdraw}

// New tiers go here; nothing else branches on the version number.
var tiers = map[int]Tier{
	1: {Version: 1, Name: "basic", Capabilities: extend()},
	2: {Version: 2, Name: "verified", Capabilities: extend(CheckJoin)},
	3: {Version: 3, Name: "gamified", Capabilities: extend(Leaderboard, Stats)},
	4: {Version: 4, Name: "reseller", Capabilities: extend(CreateBot)},
}

func extend(extra ...Capability) []Capability {
	out := make([]Capability, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

// Resolve returns the tier for version.
func Resolve(version int) (Tier, error) {
	t, ok := tiers[version]
	if !ok {
		return Tier{}, fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
	t.Capabilities = append([]Capability(nil), t.Capabilities...)
	return t, nil
}

// ResolveOrDefault falls back to the lowest tier for unknown versions.
func ResolveOrDefault(version int) Tier {
	t, err := Resolve(version)
	if err != nil {
		t, _ = Resolve(DefaultVersion)
	}
	return t
}

// Versions lists the known versions in ascending order.
func Versions() []int {
	out := make([]int, 0, len(tiers))
	for v := range tiers {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
