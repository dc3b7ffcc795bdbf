package app

import (
	"regexp"

	"car_feedback/internal/domain"
)

// issuePatterns is the keyword table. Matching is unanchored and case-insensitive,
// so "clean" also hits inside "unclean".
var issuePatterns = map[domain.IssueCategory]*regexp.Regexp{
	domain.IssueServiceProblem: regexp.MustCompile(`(?i)(issue|problem|breakdown|engine|mechanic|maintenance)`),
	domain.IssueCleanliness:    regexp.MustCompile(`(?i)(dirty|unclean|smell|stain|clean)`),
	domain.IssueDelay:          regexp.MustCompile(`(?i)(slow|wait|delay|late|queue|pickup)`),
	domain.IssueStaffBehavior:  regexp.MustCompile(`(?i)(rude|unhelpful|impolite|staff|service)`),
	domain.IssuePricing:        regexp.MustCompile(`(?i)(expensive|overpriced|hidden fee|charge)`),
	domain.IssueTech:           regexp.MustCompile(`(?i)(gps|navigation|bluetooth|usb)`),
	domain.IssueDamage:         regexp.MustCompile(`(?i)(scratch|dent|damage)`),
}

// TagIssues returns every category whose pattern matches text, sorted by name.
func TagIssues(text string) []domain.IssueCategory {
	out := make([]domain.IssueCategory, 0, 2)
	// domain.IssueCategories is already name-ordered
	for _, c := range domain.IssueCategories {
		if issuePatterns[c].MatchString(text) {
			out = append(out, c)
		}
	}
	return out
}
