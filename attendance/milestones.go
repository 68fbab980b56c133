package attendance

import (
	"context"
	"fmt"
	"log"

	"github.com/rosterly/attendance-engine/engine"
)

// =============================================================================
// MILESTONES - Best-effort check-in achievements
// =============================================================================

// CheckInMilestones are the lifetime ON_TIME/LATE check-in counts that
// trigger a milestone notification.
var CheckInMilestones = []int{10, 25, 50, 100, 250, 500, 1000}

// Perfect attendance fires once the user has at least
// PerfectAttendanceMin records, all of them ON_TIME/LATE, and re-fires
// on every PerfectAttendanceStep-th such record.
const (
	PerfectAttendanceMin  = 10
	PerfectAttendanceStep = 10
)

// fireMilestones runs after a successful check-in. It is read-only plus
// fire-and-forget dispatch: any failure is logged and swallowed so the
// check-in itself is never affected.
func (s *Service) fireMilestones(ctx context.Context, user engine.UserID) {
	if s.Dispatch == nil {
		return
	}

	counts, err := s.Store.CountAttendanceByStatus(ctx, user)
	if err != nil {
		log.Printf("[Milestones] counting records for user=%s: %v", user, err)
		return
	}

	present := counts[engine.StatusOnTime] + counts[engine.StatusLate]
	total := 0
	for _, n := range counts {
		total += n
	}

	for _, m := range CheckInMilestones {
		if present == m {
			s.Dispatch.Dispatch(engine.Notification{
				UserID: user,
				Title:  "Check-in milestone!",
				Body:   fmt.Sprintf("You have checked in %d times. Keep it up!", m),
				Metadata: map[string]string{
					"kind":  "checkin_milestone",
					"count": fmt.Sprintf("%d", m),
				},
			})
			break
		}
	}

	if total >= PerfectAttendanceMin && present == total && total%PerfectAttendanceStep == 0 {
		s.Dispatch.Dispatch(engine.Notification{
			UserID: user,
			Title:  "Perfect attendance!",
			Body:   fmt.Sprintf("%d events attended without a single absence.", total),
			Metadata: map[string]string{
				"kind":  "perfect_attendance",
				"count": fmt.Sprintf("%d", total),
			},
		})
	}
}
