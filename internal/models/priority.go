package models

import "fmt"

type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityNormal   Priority = "NORMAL"
	PriorityLow      Priority = "LOW"
)

// priorityOffsets maps each priority band to the millisecond offset added to
// the enqueue timestamp when scoring the ready index. A lower band can only
// starve a higher one if its backlog exceeds the inter-band gap.
var priorityOffsets = map[Priority]int64{
	PriorityCritical: 0,
	PriorityHigh:     3_600_000,
	PriorityNormal:   7_200_000,
	PriorityLow:      10_800_000,
}

// OffsetMillis returns the score offset for the priority. Unknown priorities
// score as NORMAL.
func (p Priority) OffsetMillis() int64 {
	if off, ok := priorityOffsets[p]; ok {
		return off
	}
	return priorityOffsets[PriorityNormal]
}

func (p Priority) String() string {
	return string(p)
}

func (p Priority) Valid() bool {
	_, ok := priorityOffsets[p]
	return ok
}

func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority: %q", s)
	}
	return p, nil
}
