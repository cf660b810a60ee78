package scoring

// LevelTable holds cumulative XP thresholds; index i is the XP needed for
// level i+1, so the first entry is always 0.
type LevelTable []int

// DefaultLevelTable is the built-in 20 level curve.
var DefaultLevelTable = LevelTable{
	0, 100, 250, 450, 700, 1000, 1400, 1900, 2500, 3200,
	4000, 5000, 6200, 7600, 9200, 11000, 13000, 15500, 18500, 22000,
}

// MaxLevel is the highest reachable level.
func (t LevelTable) MaxLevel() int {
	if len(t) == 0 {
		return 1
	}
	return len(t)
}

// LevelFromXP returns the highest level whose threshold is <= totalXP.
// Negative totals count as 0 XP.
func (t LevelTable) LevelFromXP(totalXP int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	level := 1
	for i, threshold := range t {
		if threshold > totalXP {
			break
		}
		level = i + 1
	}
	return level
}

// LevelProgress describes how far a user is into their current level.
type LevelProgress struct {
	Level         int  `json:"level"`
	LevelXP       int  `json:"level_xp"`
	NextLevelXP   *int `json:"next_level_xp,omitempty"`
	XPToNextLevel int  `json:"xp_to_next_level"`
	IsMaxLevel    bool `json:"is_max_level"`
}

// Progress reports the level for totalXP and the gap to the next one.
func (t LevelTable) Progress(totalXP int) LevelProgress {
	if totalXP < 0 {
		totalXP = 0
	}
	level := t.LevelFromXP(totalXP)
	p := LevelProgress{Level: level}
	if level-1 < len(t) {
		p.LevelXP = t[level-1]
	}
	if level >= t.MaxLevel() {
		p.IsMaxLevel = true
		return p
	}
	next := t[level]
	p.NextLevelXP = &next
	p.XPToNextLevel = next - totalXP
	return p
}
