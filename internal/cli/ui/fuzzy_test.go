package ui

import (
	"reflect"
	"testing"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		s1       string
		s2       string
		expected int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"kitten", "sitting", 3},
		{"Vocab", "Vocb", 1},
		{"Front", "Fornt", 2},
		{"Rückseite", "Ruckseite", 1},
	}

	for _, tt := range tests {
		t.Run(tt.s1+"_"+tt.s2, func(t *testing.T) {
			result := LevenshteinDistance(tt.s1, tt.s2)
			if result != tt.expected {
				t.Errorf("LevenshteinDistance(%q, %q) = %d; want %d", tt.s1, tt.s2, result, tt.expected)
			}
		})
	}
}

func TestFindSimilar(t *testing.T) {
	candidates := []string{"Vocab", "Vocab Reverse", "Cloze", "Basic"}

	tests := []struct {
		name     string
		target   string
		opts     *FuzzyMatchOptions
		expected []string
	}{
		{
			name:     "exact match",
			target:   "Cloze",
			expected: []string{"Cloze"},
		},
		{
			name:     "typo",
			target:   "Vocb",
			expected: []string{"Vocab"},
		},
		{
			name:     "case insensitive",
			target:   "cloze",
			expected: []string{"Cloze"},
		},
		{
			name:     "case sensitive",
			target:   "cloze",
			opts:     &FuzzyMatchOptions{CaseSensitive: true, MaxDistance: 1},
			expected: []string{"Cloze"},
		},
		{
			name:     "nothing close",
			target:   "Geography",
			expected: []string{},
		},
		{
			name:     "limited suggestions",
			target:   "Bas",
			opts:     &FuzzyMatchOptions{MaxDistance: 5, MaxSuggestions: 2},
			expected: []string{"Basic", "Vocab"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FindSimilar(tt.target, candidates, tt.opts)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("FindSimilar(%q) = %v; want %v", tt.target, result, tt.expected)
			}
		})
	}
}

func TestFindBestMatch(t *testing.T) {
	candidates := []string{"Front", "Back", "Source"}

	if got := FindBestMatch("Frnt", candidates, nil); got != "Front" {
		t.Errorf("FindBestMatch(Frnt) = %q; want Front", got)
	}
	if got := FindBestMatch("Extra Information", candidates, nil); got != "" {
		t.Errorf("FindBestMatch(Extra Information) = %q; want empty", got)
	}
}

func TestFindSimilarEmptyCandidates(t *testing.T) {
	if result := FindSimilar("Vocab", nil, nil); len(result) != 0 {
		t.Errorf("expected no suggestions, got %v", result)
	}
}
