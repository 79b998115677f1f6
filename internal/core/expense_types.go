package core

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DefaultExpenseTypes is the built-in expense category set.
var DefaultExpenseTypes = []ExpenseType{"Fuel", "Maintenance", "Insurance", "Other"}

// ExpenseTypes is an ordered, case-insensitively unique set of expense types.
type ExpenseTypes struct {
	ordered []ExpenseType
	index   map[string]ExpenseType
}

// NewExpenseTypes returns the default set extended with extra, in order,
// skipping blanks and duplicates.
func NewExpenseTypes(extra ...string) *ExpenseTypes {
	set := &ExpenseTypes{index: make(map[string]ExpenseType)}
	for _, t := range DefaultExpenseTypes {
		set.add(string(t))
	}
	for _, t := range extra {
		set.add(t)
	}
	return set
}

func (s *ExpenseTypes) add(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	key := strings.ToLower(name)
	if _, ok := s.index[key]; ok {
		return
	}
	s.index[key] = ExpenseType(name)
	s.ordered = append(s.ordered, ExpenseType(name))
}

// Canonical returns the configured spelling of name.
func (s *ExpenseTypes) Canonical(name string) (ExpenseType, bool) {
	t, ok := s.index[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// List returns a copy of the set in configuration order.
func (s *ExpenseTypes) List() []ExpenseType {
	out := make([]ExpenseType, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// ReadExpenseTypeLines reads one type per line. Blank lines and lines
// starting with '#' are ignored.
func ReadExpenseTypeLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read expense types: %w", err)
	}
	return out, nil
}
