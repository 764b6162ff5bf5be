// Package scorer assigns each lead a 0-10 fit score from its persisted
// attributes. The score is a pure function of the lead and the rule
// configuration, so re-scoring a lead always yields the same result.
package scorer

import "strings"

// Rule weights.
const (
	pointsVerifiedEmail = 2
	pointsEmployeeBand  = 2
	pointsIndustry      = 2
	pointsWebsite       = 1
	pointsPhone         = 1
	pointsLinkedIn      = 1
	pointsNoCompetitor  = 1

	// Employee band for the ideal customer profile.
	minEmployees = 10
	maxEmployees = 100

	maxScore = 10
)

// Config holds the scoring rule inputs.
type Config struct {
	TargetIndustries   []string
	CompetitorKeywords []string
}

// Input is the subset of lead attributes the rules read.
type Input struct {
	EmailVerified bool
	EmployeeCount int
	Industry      string
	Website       string
	Phone         string
	LinkedIn      string
	Notes         string
}

// Score applies the rule table to in and returns the clamped total.
func Score(in Input, cfg Config) int {
	score := 0

	if in.EmailVerified {
		score += pointsVerifiedEmail
	}
	if in.EmployeeCount >= minEmployees && in.EmployeeCount <= maxEmployees {
		score += pointsEmployeeBand
	}
	if matchesIndustry(in.Industry, cfg.TargetIndustries) {
		score += pointsIndustry
	}
	if in.Website != "" {
		score += pointsWebsite
	}
	if in.Phone != "" {
		score += pointsPhone
	}
	if in.LinkedIn != "" {
		score += pointsLinkedIn
	}
	if !mentionsCompetitor(in.Notes, cfg.CompetitorKeywords) {
		score += pointsNoCompetitor
	}

	if score > maxScore {
		score = maxScore
	}
	return score
}

func matchesIndustry(industry string, targets []string) bool {
	if industry == "" {
		return false
	}
	industry = strings.ToLower(industry)
	for _, t := range targets {
		if t != "" && strings.Contains(industry, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

func mentionsCompetitor(notes string, keywords []string) bool {
	if notes == "" {
		return false
	}
	notes = strings.ToLower(notes)
	for _, k := range keywords {
		if k != "" && strings.Contains(notes, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
