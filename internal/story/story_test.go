package story

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_Empty(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "   ", "\n\t"} {
		p := Parse(in)
		assert.Zero(t, p.Entities.Len(), "input %q", in)
		assert.Zero(t, p.Actions.Len(), "input %q", in)
		assert.Equal(t, in, p.RawText)
	}
}

func TestParse_CartStory(t *testing.T) {
	t.Parallel()
	p := Parse("As a user, I can add items to my shopping cart")

	assert.True(t, p.Entities.Has("cart"))
	assert.True(t, p.Entities.Has("items"))
	assert.True(t, p.Entities.Has("shopping"))
	assert.False(t, p.Entities.Has("user"), "stopword")
	assert.False(t, p.Entities.Has("can"), "too short")
	assert.Equal(t, []string{"add"}, p.Actions.Sorted())
}

func TestParse_QuotedEntities(t *testing.T) {
	t.Parallel()
	p := Parse(`I want the "Shopping Cart" and the "Checkout Button" to update`)

	assert.True(t, p.Entities.Has("shopping cart"))
	assert.True(t, p.Entities.Has("checkout button"))
	assert.True(t, p.Actions.Has("update"))
}

func TestParse_PunctuationAndCase(t *testing.T) {
	t.Parallel()
	p := Parse("Users can SEARCH, filter, and (delete) Orders!")

	assert.Equal(t, []string{"delete", "filter", "search"}, p.Actions.Sorted())
	assert.True(t, p.Entities.Has("orders"))
	assert.True(t, p.Entities.Has("search"))
	assert.False(t, p.Entities.Has("orders!"))
}

func TestParse_Deterministic(t *testing.T) {
	t.Parallel()
	text := `As an admin I can "edit" products, view product reviews and remove spam`
	first := Parse(text)
	second := Parse(text)
	assert.Equal(t, first.Entities.Sorted(), second.Entities.Sorted())
	assert.Equal(t, first.Actions.Sorted(), second.Actions.Sorted())
}

func TestParse_NoEmptyOrUpperEntries(t *testing.T) {
	t.Parallel()
	p := Parse(`"" " " --- ... Mixed CASE Résumé`)
	for _, e := range p.Entities.Sorted() {
		assert.NotEmpty(t, e)
		assert.Equal(t, strings.ToLower(e), e)
	}
	assert.True(t, p.Entities.Has("mixed"))
	assert.True(t, p.Entities.Has("case"))
	assert.True(t, p.Entities.Has("résumé"))
}
