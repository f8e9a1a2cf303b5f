package quests

// MaxLevel is the highest level an account can reach.
const MaxLevel = 20

// levelTable holds the cumulative XP required for each level, index 0 being
// level 1.
var levelTable = [MaxLevel]int{
	0, 300, 900, 2700, 6500,
	14000, 23000, 34000, 48000, 64000,
	85000, 100000, 120000, 140000, 165000,
	195000, 225000, 265000, 305000, 355000,
}

// Level returns the level reached with totalXP.
func Level(totalXP int) int {
	level := 1
	for i, need := range levelTable {
		if totalXP >= need {
			level = i + 1
		}
	}
	return level
}

// XPForLevel returns the cumulative XP required to reach level.
func XPForLevel(level int) int {
	switch {
	case level < 1:
		return 0
	case level > MaxLevel:
		return levelTable[MaxLevel-1]
	default:
		return levelTable[level-1]
	}
}

// XPToNextLevel returns how much more XP is needed for the next level, or 0
// at the cap.
func XPToNextLevel(totalXP int) int {
	level := Level(totalXP)
	if level >= MaxLevel {
		return 0
	}
	return XPForLevel(level+1) - totalXP
}
