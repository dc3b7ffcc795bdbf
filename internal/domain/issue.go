package domain

import "sort"

type IssueCategory string

const (
	IssueServiceProblem IssueCategory = "Service Problem"
	IssueCleanliness    IssueCategory = "Cleanliness"
	IssueDelay          IssueCategory = "Delay"
	IssueStaffBehavior  IssueCategory = "Staff Behavior"
	IssuePricing        IssueCategory = "Pricing Issue"
	IssueTech           IssueCategory = "Tech Issues"
	IssueDamage         IssueCategory = "Damage"
)

// IssueCategories is the fixed category set, sorted by name.
var IssueCategories = []IssueCategory{
	IssueCleanliness,
	IssueDamage,
	IssueDelay,
	IssuePricing,
	IssueServiceProblem,
	IssueStaffBehavior,
	IssueTech,
}

func sortIssueCounts(xs []IssueCount) {
	sort.Slice(xs, func(i, j int) bool {
		if xs[i].Count != xs[j].Count {
			return xs[i].Count > xs[j].Count
		}
		return xs[i].Issue < xs[j].Issue
	})
}
