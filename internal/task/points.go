package task

import "strings"

// ResolveActualPoints picks the points awarded on completion: the caller's
// value if present, else the task's proposed points, else the template
// default, else zero. Completion never ends up with blank points.
func ResolveActualPoints(override, proposed, templateDefault *int) int {
	switch {
	case override != nil:
		return *override
	case proposed != nil:
		return *proposed
	case templateDefault != nil:
		return *templateDefault
	default:
		return 0
	}
}

// ValidateNew checks the invariants on task creation input.
func ValidateNew(title string, pointsProposed *int) error {
	if strings.TrimSpace(title) == "" {
		return ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if pointsProposed != nil && *pointsProposed < 0 {
		return ValidationError{Field: "points_proposed", Reason: "must not be negative"}
	}
	return nil
}
