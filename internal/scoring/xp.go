package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidInput is returned for inputs that must never reach the store.
var ErrInvalidInput = errors.New("invalid input")

// Config is an immutable snapshot of the admin-tunable scoring settings.
type Config struct {
	BaseXP         int     `json:"base_xp" toml:"base_xp"`
	XPPerKm        float64 `json:"xp_per_km" toml:"xp_per_km"`
	Bonus5Km       int     `json:"bonus_5km" toml:"bonus_5km"`
	Bonus10Km      int     `json:"bonus_10km" toml:"bonus_10km"`
	Bonus15Km      int     `json:"bonus_15km" toml:"bonus_15km"`
	Bonus20Km      int     `json:"bonus_20km" toml:"bonus_20km"`
	MinRunDistance float64 `json:"min_run_distance" toml:"min_run_distance"`
}

// DefaultConfig is used when no settings row exists yet.
func DefaultConfig() Config {
	return Config{
		BaseXP:         15,
		XPPerKm:        2,
		Bonus5Km:       5,
		Bonus10Km:      15,
		Bonus15Km:      25,
		Bonus20Km:      40,
		MinRunDistance: 1,
	}
}

// Validate rejects settings an admin should not be able to save.
func (c Config) Validate() error {
	switch {
	case c.BaseXP < 0:
		return fmt.Errorf("%w: base_xp must be >= 0", ErrInvalidInput)
	case c.XPPerKm < 0 || math.IsNaN(c.XPPerKm):
		return fmt.Errorf("%w: xp_per_km must be >= 0", ErrInvalidInput)
	case c.Bonus5Km < 0 || c.Bonus10Km < 0 || c.Bonus15Km < 0 || c.Bonus20Km < 0:
		return fmt.Errorf("%w: distance bonuses must be >= 0", ErrInvalidInput)
	case c.MinRunDistance < 0 || math.IsNaN(c.MinRunDistance):
		return fmt.Errorf("%w: min_run_distance must be >= 0", ErrInvalidInput)
	}
	return nil
}

// DistanceBonus picks the single highest distance tier reached.
func (c Config) DistanceBonus(distance float64) int {
	switch {
	case distance >= 20:
		return c.Bonus20Km
	case distance >= 15:
		return c.Bonus15Km
	case distance >= 10:
		return c.Bonus10Km
	case distance >= 5:
		return c.Bonus5Km
	default:
		return 0
	}
}

// StreakMultiplier is one row of the multiplier table.
type StreakMultiplier struct {
	Days       int     `json:"days" toml:"days"`
	Multiplier float64 `json:"multiplier" toml:"multiplier"`
}

// MultiplierTable maps streak day thresholds to XP multipliers.
type MultiplierTable []StreakMultiplier

// Validate checks every row has a positive threshold, a multiplier of at
// least 1.0 and a unique day count.
func (t MultiplierTable) Validate() error {
	seen := make(map[int]bool, len(t))
	for _, m := range t {
		if m.Days < 1 {
			return fmt.Errorf("%w: multiplier days must be >= 1", ErrInvalidInput)
		}
		if m.Multiplier < 1 || math.IsNaN(m.Multiplier) || math.IsInf(m.Multiplier, 0) {
			return fmt.Errorf("%w: multiplier for %d days must be >= 1.0", ErrInvalidInput, m.Days)
		}
		if seen[m.Days] {
			return fmt.Errorf("%w: duplicate multiplier for %d days", ErrInvalidInput, m.Days)
		}
		seen[m.Days] = true
	}
	return nil
}

// Sorted returns a copy ordered by ascending threshold.
func (t MultiplierTable) Sorted() MultiplierTable {
	out := make(MultiplierTable, len(t))
	copy(out, t)
	sort.Slice(out, func(i, j int) bool { return out[i].Days < out[j].Days })
	return out
}

// MultiplierFor returns the multiplier of the highest threshold <= streakDay.
func (t MultiplierTable) MultiplierFor(streakDay int) float64 {
	best, bestDays := 1.0, 0
	for _, m := range t {
		if m.Days <= streakDay && m.Days > bestDays {
			best, bestDays = m.Multiplier, m.Days
		}
	}
	return best
}

// XPResult is the full award for one run.
type XPResult struct {
	BaseXP           int      `json:"base_xp"`
	KmXP             int      `json:"km_xp"`
	DistanceBonus    int      `json:"distance_bonus"`
	Subtotal         int      `json:"subtotal"`
	StreakMultiplier float64  `json:"streak_multiplier"`
	StreakBonus      int      `json:"streak_bonus"`
	FinalXP          int      `json:"final_xp"`
	Breakdown        []string `json:"breakdown"`
}

// CalculateCompleteRunXP scores a run of distance km on the given streak day.
func CalculateCompleteRunXP(distance float64, streakDay int, cfg Config, table MultiplierTable) (XPResult, error) {
	if math.IsNaN(distance) || math.IsInf(distance, 0) || distance < 0 {
		return XPResult{}, fmt.Errorf("%w: distance must be a non-negative number", ErrInvalidInput)
	}
	if streakDay < 1 {
		return XPResult{}, fmt.Errorf("%w: streak day must be >= 1, got %d", ErrInvalidInput, streakDay)
	}

	res := XPResult{}
	if distance >= cfg.MinRunDistance {
		res.BaseXP = cfg.BaseXP
	}
	res.KmXP = int(math.Floor(distance * cfg.XPPerKm))
	res.DistanceBonus = cfg.DistanceBonus(distance)
	res.Subtotal = res.BaseXP + res.KmXP + res.DistanceBonus

	res.StreakMultiplier = table.MultiplierFor(streakDay)
	res.FinalXP = roundHalfUp(float64(res.Subtotal) * res.StreakMultiplier)
	res.StreakBonus = res.FinalXP - res.Subtotal

	if res.BaseXP > 0 {
		res.Breakdown = append(res.Breakdown, fmt.Sprintf("Base: %d XP", res.BaseXP))
	} else {
		res.Breakdown = append(res.Breakdown, fmt.Sprintf("Base: 0 XP (under %.2f km minimum)", cfg.MinRunDistance))
	}
	res.Breakdown = append(res.Breakdown, fmt.Sprintf("Distance: %.2f km x %g = %d XP", distance, cfg.XPPerKm, res.KmXP))
	if res.DistanceBonus > 0 {
		res.Breakdown = append(res.Breakdown, fmt.Sprintf("Milestone bonus: +%d XP", res.DistanceBonus))
	}
	res.Breakdown = append(res.Breakdown, fmt.Sprintf("Subtotal: %d XP", res.Subtotal))
	if res.StreakMultiplier > 1 {
		res.Breakdown = append(res.Breakdown, fmt.Sprintf("Streak day %d: x%g = +%d XP", streakDay, res.StreakMultiplier, res.StreakBonus))
	}
	res.Breakdown = append(res.Breakdown, fmt.Sprintf("Total: %d XP", res.FinalXP))

	return res, nil
}

// roundHalfUp rounds .5 towards positive infinity.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
