package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"feedpilot/internal/api"
)

func TestAutofillFirstSuggestion(t *testing.T) {
	t.Parallel()

	d := &api.DecisionDetails{
		OfferID: "offer-1",
		Suggestions: []api.Suggestion{
			{TypeID: 10, DescriptionCategoryID: 20, TypeName: "Кружка"},
			{TypeID: 11, DescriptionCategoryID: 21, TypeName: "Чашка"},
		},
	}
	typeID, descCatID, ok := Autofill(d)
	require.True(t, ok)
	require.Equal(t, 10, typeID)
	require.Equal(t, 20, descCatID)
}

func TestAutofillEmpty(t *testing.T) {
	t.Parallel()

	_, _, ok := Autofill(nil)
	require.False(t, ok)

	_, _, ok = Autofill(&api.DecisionDetails{OfferID: "offer-1"})
	require.False(t, ok)
}

func TestRankSuggestionsEmptyQueryKeepsOrder(t *testing.T) {
	t.Parallel()

	in := []api.Suggestion{
		{TypeID: 1, TypeName: "Чайник"},
		{TypeID: 2, TypeName: "Кружка"},
		{TypeID: 3, TypeName: "Блюдце"},
	}
	out := RankSuggestions("  ", in)
	require.Equal(t, in, out)

	// the input slice is never reordered in place
	out[0], out[1] = out[1], out[0]
	require.Equal(t, 1, in[0].TypeID)
}

func TestRankSuggestionsSubstringFirst(t *testing.T) {
	t.Parallel()

	in := []api.Suggestion{
		{TypeID: 1, TypeName: "Чайник электрический"},
		{TypeID: 2, TypeName: "Кружка керамическая"},
		{TypeID: 3, TypeName: "Кружка-термос"},
	}
	out := RankSuggestions("кружка", in)
	require.Equal(t, 2, out[0].TypeID)
	require.Equal(t, 3, out[1].TypeID)
	require.Equal(t, 1, out[2].TypeID)
}

func TestRankSuggestionsStableForTies(t *testing.T) {
	t.Parallel()

	// both contain the query; confidence order must hold between them
	in := []api.Suggestion{
		{TypeID: 1, TypeName: "Термокружка"},
		{TypeID: 2, TypeName: "Кружка"},
		{TypeID: 3, TypeName: "Ваза"},
	}
	out := RankSuggestions("кружка", in)
	require.Equal(t, 1, out[0].TypeID)
	require.Equal(t, 2, out[1].TypeID)
	require.Equal(t, 3, out[2].TypeID)
}

func TestRankSuggestionsTolerantOfTypos(t *testing.T) {
	t.Parallel()

	in := []api.Suggestion{
		{TypeID: 1, TypeName: "Ваза"},
		{TypeID: 2, TypeName: "Кружка"},
	}
	out := RankSuggestions("кружкa", in) // latin 'a' at the end
	require.Equal(t, 2, out[0].TypeID)
}
