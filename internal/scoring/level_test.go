package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFromXP(t *testing.T) {
	table := LevelTable{0, 100, 250, 500}

	tests := []struct {
		xp   int
		want int
	}{
		{-50, 1},
		{0, 1},
		{99, 1},
		{100, 2},
		{249, 2},
		{250, 3},
		{500, 4},
		{100000, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, table.LevelFromXP(tt.xp), "xp %d", tt.xp)
	}
}

func TestDefaultLevelTableIsAscending(t *testing.T) {
	require.NotEmpty(t, DefaultLevelTable)
	assert.Equal(t, 0, DefaultLevelTable[0])
	for i := 1; i < len(DefaultLevelTable); i++ {
		assert.Greater(t, DefaultLevelTable[i], DefaultLevelTable[i-1])
	}
}

func TestLevelProgress(t *testing.T) {
	table := LevelTable{0, 100, 250}

	p := table.Progress(130)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, 100, p.LevelXP)
	require.NotNil(t, p.NextLevelXP)
	assert.Equal(t, 250, *p.NextLevelXP)
	assert.Equal(t, 120, p.XPToNextLevel)
	assert.False(t, p.IsMaxLevel)

	top := table.Progress(900)
	assert.Equal(t, 3, top.Level)
	assert.True(t, top.IsMaxLevel)
	assert.Nil(t, top.NextLevelXP)
}
