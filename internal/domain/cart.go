package domain

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidProduct = errors.New("invalid product")

// LineItem is one product in the cart. The json tags are the persisted
// field names and must not change.
type LineItem struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// ProductInput is a LineItem without a quantity, as passed to AddToCart.
type ProductInput struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
}

func (p ProductInput) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidProduct)
	}
	if p.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidProduct)
	}
	if p.Price < 0 || math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
		return fmt.Errorf("%w: price must be a non-negative number", ErrInvalidProduct)
	}
	return nil
}

// Collection is the ordered list of line items held by the cart.
type Collection []LineItem

func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	copy(out, c)
	return out
}

// Find returns the index of the item with the given id, or -1.
func (c Collection) Find(id string) int {
	for i, item := range c {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// FindByTitle returns the index of the first item with the given title, or -1.
func (c Collection) FindByTitle(title string) int {
	for i, item := range c {
		if item.Title == title {
			return i
		}
	}
	return -1
}

// Count is the sum of all quantities.
func (c Collection) Count() int {
	n := 0
	for _, item := range c {
		n += item.Quantity
	}
	return n
}
