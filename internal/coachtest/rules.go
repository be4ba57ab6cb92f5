package coachtest

import (
	"net/http"
	"strings"

	"wellnav/internal/coach"
)

// SafetyMessage is the flag text Rules returns for distress keywords.
const SafetyMessage = "Possible distress detected. Please contact emergency services immediately."

var (
	safetyKeywords     = []string{"chest pain", "shortness of breath", "suicidal", "faint", "fainted"}
	fitnessKeywords    = []string{"workout", "steps", "muscle", "run", "cardio", "strength"}
	nutritionKeywords  = []string{"calories", "meal", "water", "protein", "fiber", "hydration"}
	resilienceKeywords = []string{"anxiety", "sleep", "meditation", "stress", "burnout"}

	clarifications = map[string]string{
		"goal":           "What's your primary wellness goal right now?",
		"activity_level": "How active have you been this week?",
		"primary_metric": "What metric should we track? (e.g., steps, sleep hours)",
	}

	recommendations = map[string][]string{
		"fitness":    {"Plan 3-4 sessions this week.", "Log steps daily."},
		"nutrition":  {"Aim for protein in each meal.", "Hydrate steadily."},
		"resilience": {"Schedule a sleep window.", "Add a 5-min breathing break."},
	}
)

// Rules answers /coach with a small keyword classifier: it flags distress,
// keeps a focus area the client already has, asks for the first missing
// profile field, and marks the profile ready once nothing is missing.
func Rules(req coach.CoachRequest) (int, any) {
	lowered := strings.ToLower(req.Message)

	focus := strings.TrimSpace(value(req.FocusArea))
	if focus == "" {
		focus = classify(lowered)
	}

	body := map[string]any{
		"focus_area":          focus,
		"ready_to_sync":       false,
		"missing_field":       nil,
		"next_question":       nil,
		"recommended_actions": recommendationsFor(focus),
		"safety_flag":         nil,
	}
	if containsAny(lowered, safetyKeywords) {
		body["safety_flag"] = SafetyMessage
	}

	if missing := missingField(req); missing != "" {
		body["missing_field"] = missing
		body["next_question"] = clarifications[missing]
	} else {
		body["ready_to_sync"] = true
	}
	return http.StatusOK, body
}

func classify(lowered string) string {
	switch {
	case containsAny(lowered, fitnessKeywords):
		return "fitness"
	case containsAny(lowered, nutritionKeywords):
		return "nutrition"
	case containsAny(lowered, resilienceKeywords):
		return "resilience"
	default:
		return "fitness"
	}
}

func missingField(req coach.CoachRequest) string {
	switch {
	case value(req.Goal) == "":
		return "goal"
	case value(req.ActivityLevel) == "":
		return "activity_level"
	case value(req.PrimaryMetric) == "":
		return "primary_metric"
	default:
		return ""
	}
}

func recommendationsFor(focus string) []string {
	if recs, ok := recommendations[focus]; ok {
		return recs
	}
	return recommendations["fitness"]
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func value(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
