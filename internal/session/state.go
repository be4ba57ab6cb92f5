package session

import (
	"strings"
	"time"
)

// Role identifies the author of a transcript entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleCoach Role = "coach"
)

// Reachability is the last known state of the coach service.
type Reachability int

const (
	ReachUnknown Reachability = iota
	ReachOnline
	ReachOffline
)

func (r Reachability) String() string {
	switch r {
	case ReachOnline:
		return "online"
	case ReachOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Profile holds the user's form fields. Empty strings mean unset.
type Profile struct {
	Name          string
	Goal          string
	ActivityLevel string
	PrimaryMetric string
}

func (p Profile) trimmed() Profile {
	return Profile{
		Name:          strings.TrimSpace(p.Name),
		Goal:          strings.TrimSpace(p.Goal),
		ActivityLevel: strings.TrimSpace(p.ActivityLevel),
		PrimaryMetric: strings.TrimSpace(p.PrimaryMetric),
	}
}

// ChatEntry is one line of the conversation.
type ChatEntry struct {
	Role Role
	Text string
	At   time.Time
}

// State is everything the UI renders for one session.
type State struct {
	Profile    Profile
	Transcript []ChatEntry

	FocusArea          string
	ReadyToSync        bool
	PendingQuestion    string
	MissingField       string
	RecommendedActions []string
	SafetyFlag         string

	Status        string
	StatusIsError bool
	Loading       bool
	Reachability  Reachability
	LastSyncedAt  time.Time
}

func (s State) clone() State {
	out := s
	out.Transcript = append([]ChatEntry(nil), s.Transcript...)
	if s.RecommendedActions != nil {
		out.RecommendedActions = append([]string{}, s.RecommendedActions...)
	}
	return out
}
