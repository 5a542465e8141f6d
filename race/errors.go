package race

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// AllFailedError reports that every backend in the race returned a failure
// before any could win. Reasons maps backend name to its failure message.
type AllFailedError struct {
	VideoID string
	Reasons map[string]string
}

func (e *AllFailedError) Error() string {
	names := make([]string, 0, len(e.Reasons))
	for name := range e.Reasons {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "all extractors failed for %s:", e.VideoID)
	for _, name := range names {
		fmt.Fprintf(&b, " %s: %s;", name, e.Reasons[name])
	}
	return strings.TrimSuffix(b.String(), ";")
}

// TimeoutError reports that no backend succeeded within the race deadline,
// regardless of how many were still pending.
type TimeoutError struct {
	VideoID string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("extraction race for %s timed out after %s", e.VideoID, e.Timeout)
}
