package attendance

import (
	"time"

	"github.com/rosterly/attendance-engine/engine"
)

// =============================================================================
// LATENESS POLICY - When does a check-in flip from ON_TIME to LATE?
// =============================================================================

// LatenessPolicy classifies a check-in instant against the event's
// scheduled start. Grace extends the ON_TIME window past the start.
//
// The engine ships two named policies. StrictLateness is the default:
// checking in at or before the scheduled start is ON_TIME, strictly after
// is LATE. GraceLateness allows DefaultGraceWindow past the start before
// flipping to LATE. Pick one per Service; they are never merged.
type LatenessPolicy struct {
	Name  string
	Grace time.Duration
}

// DefaultGraceWindow is the grace used by GraceLateness.
const DefaultGraceWindow = 15 * time.Minute

var (
	StrictLateness = LatenessPolicy{Name: "strict"}
	GraceLateness  = LatenessPolicy{Name: "grace", Grace: DefaultGraceWindow}
)

// Classify returns ON_TIME when now is at or before eventStart plus the
// policy's grace, LATE otherwise.
func (p LatenessPolicy) Classify(now, eventStart time.Time) engine.AttendanceStatus {
	if !now.After(eventStart.Add(p.Grace)) {
		return engine.StatusOnTime
	}
	return engine.StatusLate
}
