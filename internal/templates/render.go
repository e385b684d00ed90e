package templates

import (
	"regexp"
	"sort"
	"strconv"
)

var placeholderRe = regexp.MustCompile(`\{\{(\d+)\}\}`)

// Render replaces each {{n}} with values[n-1]. Placeholders without a value,
// including {{0}}, are left as they are.
func Render(content string, values []string) string {
	return placeholderRe.ReplaceAllStringFunc(content, func(m string) string {
		n, err := strconv.Atoi(m[2 : len(m)-2])
		if err != nil || n < 1 || n > len(values) {
			return m
		}
		return values[n-1]
	})
}

// Placeholders returns the distinct placeholder positions used in content,
// ascending.
func Placeholders(content string) []int {
	seen := map[int]bool{}
	out := make([]int, 0)
	for _, sub := range placeholderRe.FindAllStringSubmatch(content, -1) {
		n, err := strconv.Atoi(sub[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Unbound returns the placeholder positions in content that have no non-empty
// variable name.
func Unbound(content string, variables []string) []int {
	out := make([]int, 0)
	for _, n := range Placeholders(content) {
		if n < 1 || n > len(variables) || variables[n-1] == "" {
			out = append(out, n)
		}
	}
	return out
}
