package logs

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charliek/sidecarhost/internal/domain"
)

// MaxPatternLength is the maximum allowed length for filter patterns
const MaxPatternLength = 256

// Filter applies a LineFilter to output lines
type Filter struct {
	filter domain.LineFilter
	regex  *regexp.Regexp
}

// NewFilter creates a new filter from a LineFilter
func NewFilter(filter domain.LineFilter) (*Filter, error) {
	f := &Filter{filter: filter}

	if len(filter.Pattern) > MaxPatternLength {
		return nil, fmt.Errorf("%w: pattern exceeds maximum length of %d characters", domain.ErrInvalidPattern, MaxPatternLength)
	}

	if filter.Pattern != "" && filter.IsRegex {
		re, err := regexp.Compile(filter.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPattern, err)
		}
		f.regex = re
	}

	return f, nil
}

// Matches returns true if the line matches the filter criteria
func (f *Filter) Matches(line domain.OutputLine) bool {
	if !f.filter.MatchesStream(line.Stream) {
		return false
	}

	if f.filter.Pattern == "" {
		return true
	}
	if f.regex != nil {
		return f.regex.MatchString(line.Line)
	}
	return strings.Contains(line.Line, f.filter.Pattern)
}

// FilterLines filters a slice of output lines
func FilterLines(lines []domain.OutputLine, filter domain.LineFilter) ([]domain.OutputLine, error) {
	f, err := NewFilter(filter)
	if err != nil {
		return nil, err
	}
	if filter.IsEmpty() {
		return lines, nil
	}

	result := make([]domain.OutputLine, 0, len(lines))
	for _, line := range lines {
		if f.Matches(line) {
			result = append(result, line)
		}
	}

	return result, nil
}

// FilterLinesLimit filters lines and returns at most the last limit of them,
// along with the count before limiting
func FilterLinesLimit(lines []domain.OutputLine, filter domain.LineFilter, limit int) ([]domain.OutputLine, int, error) {
	filtered, err := FilterLines(lines, filter)
	if err != nil {
		return nil, 0, err
	}

	total := len(filtered)
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}

	return filtered, total, nil
}
