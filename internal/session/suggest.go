package session

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"feedpilot/internal/api"
)

// Autofill returns the prefill values for the decision form: the first
// suggestion when one exists (the pipeline orders them by descending
// confidence). With no suggestions the form stays empty and the
// operator must enter ids manually.
func Autofill(d *api.DecisionDetails) (typeID, descCatID int, ok bool) {
	if d == nil || len(d.Suggestions) == 0 {
		return 0, 0, false
	}
	first := d.Suggestions[0]
	return first.TypeID, first.DescriptionCategoryID, true
}

// RankSuggestions re-orders suggestions by similarity of their type name
// to the operator's filter fragment. An empty query preserves the
// pipeline's confidence order. The sort is stable, so equally scored
// entries keep their relative confidence ranking.
func RankSuggestions(query string, suggestions []api.Suggestion) []api.Suggestion {
	out := make([]api.Suggestion, len(suggestions))
	copy(out, suggestions)

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return out
	}

	scores := make([]float64, len(out))
	for i, s := range out {
		scores[i] = nameSimilarity(query, strings.ToLower(s.TypeName))
	}
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return scores[idx[i]] > scores[idx[j]]
	})
	ranked := make([]api.Suggestion, len(out))
	for i, j := range idx {
		ranked[i] = out[j]
	}
	return ranked
}

// nameSimilarity scores how well a type name matches the query: exact
// substring beats everything, otherwise normalized edit distance.
func nameSimilarity(query, name string) float64 {
	if name == "" {
		return 0
	}
	if strings.Contains(name, query) {
		return 1
	}
	dist := levenshtein.ComputeDistance(query, name)
	longest := len([]rune(name))
	if l := len([]rune(query)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(dist)/float64(longest)
}
