package scoring

import "job-match-go/internal/domain"

// experienceEnumSize is the number of ordered experience tiers
// (Entry, Mid, Senior, Leadership).
const experienceEnumSize = 4

// ExperienceAlignment scores how close two experience tiers are on the
// ordered scale, normalized to [0,1]. Equal tiers score 1.0 and the two
// extremes score 0. The distance is symmetric. Unknown tiers rank as Entry
// via ExperienceLevel.Ordinal, a defined fallback rather than an error.
func ExperienceAlignment(jobLevel, resumeLevel domain.ExperienceLevel) float64 {
	diff := jobLevel.Ordinal() - resumeLevel.Ordinal()
	if diff < 0 {
		diff = -diff
	}
	return 1.0 - float64(diff)/float64(experienceEnumSize-1)
}
