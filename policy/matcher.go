package policy

import (
	"sort"
	"strings"

	"github.com/Hung6066/IVF-sub008/models"
)

// MatchPattern reports whether a resource path matches a pattern. Patterns
// are segment-based: "*" matches exactly one segment, "**" matches any
// number of segments (including none).
func MatchPattern(pattern, path string) bool {
	return matchSegments(splitPath(pattern), splitPath(path))
}

func splitPath(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}
	switch pattern[0] {
	case "**":
		// "**" absorbs zero or more leading segments
		for i := 0; i <= len(path); i++ {
			if matchSegments(pattern[1:], path[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(path) > 0 && matchSegments(pattern[1:], path[1:])
	default:
		return len(path) > 0 && pattern[0] == path[0] && matchSegments(pattern[1:], path[1:])
	}
}

// specificity orders patterns most-specific-first: exact segments beat "*"
// segments beat "**" segments. Lexical pattern order breaks remaining ties
// so repeated evaluations always produce the same winner.
type specificity struct {
	literals    int
	singleStars int
}

func patternSpecificity(pattern string) specificity {
	var s specificity
	for _, seg := range splitPath(pattern) {
		switch seg {
		case "**":
		case "*":
			s.singleStars++
		default:
			s.literals++
		}
	}
	return s
}

// lessSpecific reports whether policy a is less specific than policy b for
// ordering purposes. Capability specificity (exact beats "*") breaks pattern
// ties, then lexical order.
func lessSpecific(a, b *models.CapabilityPolicy) bool {
	sa, sb := patternSpecificity(a.ResourcePathPattern), patternSpecificity(b.ResourcePathPattern)
	if sa.literals != sb.literals {
		return sa.literals < sb.literals
	}
	if sa.singleStars != sb.singleStars {
		return sa.singleStars < sb.singleStars
	}
	if (a.Capability == "*") != (b.Capability == "*") {
		return a.Capability == "*"
	}
	if a.ResourcePathPattern != b.ResourcePathPattern {
		return a.ResourcePathPattern > b.ResourcePathPattern
	}
	return a.ID > b.ID
}

// BestMatch selects the most specific policy applicable to the resource path
// and capability. Returns nil when nothing matches (default-deny).
func BestMatch(policies []models.CapabilityPolicy, resourcePath, capability string) *models.CapabilityPolicy {
	var candidates []*models.CapabilityPolicy
	for i := range policies {
		p := &policies[i]
		if p.Capability != capability && p.Capability != "*" {
			continue
		}
		if MatchPattern(p.ResourcePathPattern, resourcePath) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return lessSpecific(candidates[j], candidates[i])
	})
	return candidates[0]
}
