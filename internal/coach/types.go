package coach

// CoachRequest is the body of POST /coach. Optional profile fields are
// serialized as JSON null when unset.
type CoachRequest struct {
	UserName      string  `json:"user_name"`
	Message       string  `json:"message"`
	Goal          *string `json:"goal"`
	ActivityLevel *string `json:"activity_level"`
	PrimaryMetric *string `json:"primary_metric"`
	FocusArea     *string `json:"focus_area"`
}

// CoachResponse is a validated /coach result. RecommendedActions is nil when
// the service omitted the field and non-nil (possibly empty) when it sent one.
type CoachResponse struct {
	FocusArea          string
	ReadyToSync        bool
	MissingField       string
	NextQuestion       string
	RecommendedActions []string
	SafetyFlag         string
}

// SyncRequest is the body of POST /sync.
type SyncRequest struct {
	UserName     string `json:"user_name"`
	FocusArea    string `json:"focus_area"`
	HealthMetric string `json:"health_metric"`
	PrimaryGoal  string `json:"primary_goal"`
	Timestamp    string `json:"timestamp,omitempty"`
}

type coachResponseWire struct {
	FocusArea          *string  `json:"focus_area"`
	ReadyToSync        *bool    `json:"ready_to_sync"`
	MissingField       *string  `json:"missing_field"`
	NextQuestion       *string  `json:"next_question"`
	RecommendedActions []string `json:"recommended_actions"`
	SafetyFlag         *string  `json:"safety_flag"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// Optional returns nil for blank values so they reach the wire as null.
func Optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
