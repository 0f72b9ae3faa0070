package utils

import (
	"bufio"
	"os"
	"strings"
)

// ExclusionList holds title terms whose media must never be enriched
type ExclusionList struct {
	terms []string
}

// NewExclusionList builds a list from in-memory terms
func NewExclusionList(terms ...string) *ExclusionList {
	l := &ExclusionList{terms: []string{}}
	for _, term := range terms {
		if term = strings.TrimSpace(term); term != "" {
			l.terms = append(l.terms, strings.ToLower(term))
		}
	}
	return l
}

// LoadExclusionList loads exclusion terms from a file, one per line.
// Blank lines and lines starting with # are ignored.
func LoadExclusionList(path string) (*ExclusionList, error) {
	// If file doesn't exist, return empty list
	if path == "" {
		return NewExclusionList(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewExclusionList(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var terms []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		term := strings.TrimSpace(scanner.Text())
		if term != "" && !strings.HasPrefix(term, "#") {
			terms = append(terms, term)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return NewExclusionList(terms...), nil
}

// Len returns the number of terms
func (l *ExclusionList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.terms)
}

// Match checks if a title contains any exclusion term
// Returns (excluded, matchedTerm)
func (l *ExclusionList) Match(title string) (bool, string) {
	if l == nil {
		return false, ""
	}
	titleLower := strings.ToLower(title)

	for _, term := range l.terms {
		if strings.Contains(titleLower, term) {
			return true, term
		}
	}

	return false, ""
}
