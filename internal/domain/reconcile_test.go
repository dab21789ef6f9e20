package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shirt() ProductInput {
	return ProductInput{ID: "1", Title: "Shirt", ImageURL: "u", Price: 10}
}

func TestAdd_NewItemAppended(t *testing.T) {
	got := Add(nil, shirt())

	assert.Equal(t, Collection{
		{ID: "1", Title: "Shirt", ImageURL: "u", Price: 10, Quantity: 1},
	}, got)
}

func TestAdd_DistinctTitlesKeepInsertionOrder(t *testing.T) {
	var c Collection
	for _, p := range []ProductInput{
		{ID: "a", Title: "Shirt"},
		{ID: "b", Title: "Cap"},
		{ID: "c", Title: "Shoes"},
	} {
		c = Add(c, p)
	}

	require.Len(t, c, 3)
	for i, title := range []string{"Shirt", "Cap", "Shoes"} {
		assert.Equal(t, title, c[i].Title)
		assert.Equal(t, 1, c[i].Quantity)
	}
}

func TestAdd_SameTitleMergesIntoFirstEntry(t *testing.T) {
	c := Add(nil, shirt())
	c = Add(c, ProductInput{ID: "2", Title: "Shirt", ImageURL: "u2", Price: 15})

	assert.Equal(t, Collection{
		{ID: "1", Title: "Shirt", ImageURL: "u", Price: 10, Quantity: 2},
	}, c)
}

// Add matches on title while Increment/Decrement match on id, so two
// different products sharing a title collapse into one entry.
func TestAdd_MatchesByTitleNotID(t *testing.T) {
	c := Add(nil, ProductInput{ID: "1", Title: "Mug"})
	c = Add(c, ProductInput{ID: "1", Title: "Cup"})
	c = Add(c, ProductInput{ID: "99", Title: "Mug"})

	require.Len(t, c, 2)
	assert.Equal(t, "1", c[0].ID)
	assert.Equal(t, 2, c[0].Quantity)
	assert.Equal(t, "Cup", c[1].Title)
	assert.Equal(t, -1, c.Find("99"))
}

func TestAdd_DoesNotMutateInput(t *testing.T) {
	orig := Collection{{ID: "1", Title: "Shirt", Quantity: 1}}
	_ = Add(orig, shirt())

	assert.Equal(t, 1, orig[0].Quantity)
}

func TestIncrement(t *testing.T) {
	c := Collection{
		{ID: "1", Title: "Shirt", Price: 10, Quantity: 1},
		{ID: "2", Title: "Cap", Price: 5, Quantity: 3},
	}

	got := Increment(c, "2")

	assert.Equal(t, Collection{
		{ID: "1", Title: "Shirt", Price: 10, Quantity: 1},
		{ID: "2", Title: "Cap", Price: 5, Quantity: 4},
	}, got)
	assert.Equal(t, 3, c[1].Quantity, "input must be left untouched")
}

func TestIncrement_UnknownID(t *testing.T) {
	c := Collection{{ID: "1", Title: "Shirt", Quantity: 1}}

	got := Increment(c, "nope")

	assert.Equal(t, c, got)
}

func TestDecrement_KeepsPositionWhileAboveZero(t *testing.T) {
	c := Collection{
		{ID: "1", Title: "Shirt", Quantity: 1},
		{ID: "2", Title: "Cap", Quantity: 2},
		{ID: "3", Title: "Shoes", Quantity: 1},
	}

	got := Decrement(c, "2")

	require.Len(t, got, 3)
	assert.Equal(t, "2", got[1].ID)
	assert.Equal(t, 1, got[1].Quantity)
}

func TestDecrement_RemovesAfterExactlyNCalls(t *testing.T) {
	c := Collection{
		{ID: "1", Title: "Shirt", Quantity: 1},
		{ID: "2", Title: "Cap", Quantity: 3},
	}

	for i := 0; i < 2; i++ {
		c = Decrement(c, "2")
		require.NotEqual(t, -1, c.Find("2"), "removed too early at call %d", i+1)
	}
	c = Decrement(c, "2")

	assert.Equal(t, Collection{{ID: "1", Title: "Shirt", Quantity: 1}}, c)

	c = Decrement(c, "2")
	assert.Equal(t, Collection{{ID: "1", Title: "Shirt", Quantity: 1}}, c)
}

func TestIncrementThenDecrementToEmpty(t *testing.T) {
	c := Add(nil, shirt())
	c = Increment(c, "1")
	require.Equal(t, 2, c[0].Quantity)

	c = Decrement(c, "1")
	c = Decrement(c, "1")

	assert.Empty(t, c)
	assert.NotNil(t, c)
}

func TestSanitize(t *testing.T) {
	c := Collection{
		{ID: "1", Quantity: 0},
		{ID: "2", Quantity: 2},
		{ID: "3", Quantity: -1},
	}

	assert.Equal(t, Collection{{ID: "2", Quantity: 2}}, Sanitize(c))
}

func TestCollection_Count(t *testing.T) {
	c := Collection{{ID: "1", Quantity: 2}, {ID: "2", Quantity: 3}}
	assert.Equal(t, 5, c.Count())
}

func TestLineItem_JSONFieldNames(t *testing.T) {
	raw := `[{"id":"1","title":"Shirt","image_url":"u","price":10,"quantity":2}]`

	var c Collection
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	assert.Equal(t, Collection{{ID: "1", Title: "Shirt", ImageURL: "u", Price: 10, Quantity: 2}}, c)

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestProductInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		input   ProductInput
		wantErr bool
	}{
		{"valid", shirt(), false},
		{"free item", ProductInput{ID: "1", Title: "Sticker"}, false},
		{"missing id", ProductInput{Title: "Shirt"}, true},
		{"missing title", ProductInput{ID: "1"}, true},
		{"negative price", ProductInput{ID: "1", Title: "Shirt", Price: -1}, true},
		{"nan price", ProductInput{ID: "1", Title: "Shirt", Price: math.NaN()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidProduct)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
