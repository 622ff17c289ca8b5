package scoring

import "strings"

// SkillOverlap computes fuzzy containment overlap between résumé skills and
// job skills. A résumé skill matches a job skill when either string contains
// the other after lowercasing and trimming. This deliberately over-matches
// ("java" matches "javascript") to favor recall; tightening it would change
// scores across the corpus.
//
// The returned matched list preserves the résumé's skill order and the
// original (untrimmed) spelling. Overlap = |matches| / max(|jobSkills|, 1).
func SkillOverlap(resumeSkills, jobSkills []string) (overlap float64, matched []string) {
	if len(resumeSkills) == 0 || len(jobSkills) == 0 {
		return 0, nil
	}

	normalizedJob := make([]string, 0, len(jobSkills))
	for _, s := range jobSkills {
		if n := normalizeSkill(s); n != "" {
			normalizedJob = append(normalizedJob, n)
		}
	}

	seen := make(map[string]bool, len(resumeSkills))
	for _, raw := range resumeSkills {
		rs := normalizeSkill(raw)
		if rs == "" || seen[rs] {
			continue
		}
		for _, js := range normalizedJob {
			if strings.Contains(rs, js) || strings.Contains(js, rs) {
				matched = append(matched, raw)
				seen[rs] = true
				break
			}
		}
	}

	denom := len(jobSkills)
	if denom < 1 {
		denom = 1
	}
	return float64(len(matched)) / float64(denom), matched
}

func normalizeSkill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
