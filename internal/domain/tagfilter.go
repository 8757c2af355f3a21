package domain

import (
	"regexp"
	"strings"
)

// TagFilter selects versions by tag: either an exact membership test against
// a set of tags, or a glob-style wildcard pattern where * matches any run of
// characters.
type TagFilter struct {
	tags    map[string]struct{}
	pattern string
}

// Tags builds a filter that matches any tag in the given set exactly
func Tags(tags ...string) TagFilter {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return TagFilter{tags: set}
}

// Pattern builds a filter from a single glob-style pattern
func Pattern(pattern string) TagFilter {
	return TagFilter{pattern: pattern}
}

// Matches checks whether a version tag satisfies the filter
func (f TagFilter) Matches(tag string) bool {
	if f.tags != nil {
		_, ok := f.tags[tag]
		return ok
	}

	if f.pattern == tag {
		return true
	}

	// Convert the glob pattern to an anchored regex
	regexPattern := regexp.QuoteMeta(f.pattern)
	regexPattern = strings.ReplaceAll(regexPattern, `\*`, `.*`)

	regex, err := regexp.Compile("^" + regexPattern + "$")
	if err != nil {
		return false
	}
	return regex.MatchString(tag)
}
