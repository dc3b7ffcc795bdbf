package app_test

import (
	"reflect"
	"testing"

	"car_feedback/internal/app"
	"car_feedback/internal/domain"
)

func TestTagIssues(t *testing.T) {
	cases := []struct {
		text string
		want []domain.IssueCategory
	}{
		{"The interior was dirty.", []domain.IssueCategory{domain.IssueCleanliness}},
		{"THE INTERIOR WAS DIRTY", []domain.IssueCategory{domain.IssueCleanliness}},
		{"Hidden charges and rude staff.", []domain.IssueCategory{domain.IssuePricing, domain.IssueStaffBehavior}},
		// literal table: "clean" is a Cleanliness keyword on its own
		{"The car was clean but late.", []domain.IssueCategory{domain.IssueCleanliness, domain.IssueDelay}},
		{"Vehicle had a GPS issue.", []domain.IssueCategory{domain.IssueServiceProblem, domain.IssueTech}},
		{"Scratched door, Bluetooth dead, long queue", []domain.IssueCategory{domain.IssueDamage, domain.IssueDelay, domain.IssueTech}},
		{"Smooth ride, no complaints.", []domain.IssueCategory{}},
		{"", []domain.IssueCategory{}},
	}
	for _, tc := range cases {
		got := app.TagIssues(tc.text)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("TagIssues(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestTagIssues_SortedAndUnique(t *testing.T) {
	got := app.TagIssues("dirty dirty stain smell, late late delay")
	want := []domain.IssueCategory{domain.IssueCleanliness, domain.IssueDelay}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
