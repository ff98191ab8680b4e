package bus

import (
	"fmt"
	"strings"
)

const (
	topicSeparator   = "."
	wildcardSegment  = "*"
	wildcardTrailing = "**"
)

// topicPattern is a parsed topic subscription pattern.
//
// segments holds the literal and single-segment wildcard parts; trailing is
// set when the pattern ends with a multi-segment wildcard.
type topicPattern struct {
	segments []string
	trailing bool
}

func parseTopicPattern(pattern string) (*topicPattern, error) {
	segments := strings.Split(pattern, topicSeparator)

	parsed := &topicPattern{}

	for i, segment := range segments {
		switch {
		case segment == "":
			return nil, fmt.Errorf("topic pattern %q contains an empty segment", pattern)

		case segment == wildcardTrailing:
			if i != len(segments)-1 {
				return nil, fmt.Errorf("topic pattern %q uses '**' outside the trailing position", pattern)
			}

			parsed.trailing = true

		case strings.Contains(segment, wildcardSegment) && segment != wildcardSegment:
			return nil, fmt.Errorf("topic pattern %q mixes a wildcard with literal characters", pattern)

		default:
			parsed.segments = append(parsed.segments, segment)
		}
	}

	return parsed, nil
}

// match reports whether the provided topic is accepted by the pattern.
//
// An empty topic never matches: subscriptions filtering by topic are not
// interested in events published without one.
func (p *topicPattern) match(topic string) bool {
	if topic == "" {
		return false
	}

	segments := strings.Split(topic, topicSeparator)

	if p.trailing {
		// The trailing wildcard covers one or more remaining segments.
		if len(segments) <= len(p.segments) {
			return false
		}
	} else if len(segments) != len(p.segments) {
		return false
	}

	for i, expected := range p.segments {
		if expected != wildcardSegment && expected != segments[i] {
			return false
		}
	}

	return true
}
