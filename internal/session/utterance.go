package session

import (
	"fmt"

	"wellnav/internal/coach"
)

const readySuffix = "All required fields captured. You can now sync this milestone!"

// Utterance is the coach line shown for a response. A safety flag always
// wins; otherwise the focus area is announced followed by the next question
// or the ready-to-sync notice.
func Utterance(resp coach.CoachResponse) string {
	switch {
	case resp.SafetyFlag != "":
		return resp.SafetyFlag
	case resp.NextQuestion != "":
		return fmt.Sprintf("Focus area identified: %s. %s", resp.FocusArea, resp.NextQuestion)
	case resp.ReadyToSync:
		return fmt.Sprintf("Focus area identified: %s. %s", resp.FocusArea, readySuffix)
	default:
		return fmt.Sprintf("Focus area identified: %s.", resp.FocusArea)
	}
}
