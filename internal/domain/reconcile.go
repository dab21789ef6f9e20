package domain

// Add merges p into c. Items are matched by title, not id: a product whose
// title is already in the cart bumps that entry's quantity and keeps the
// entry's existing id, image and price.
func Add(c Collection, p ProductInput) Collection {
	idx := c.FindByTitle(p.Title)
	if idx == -1 {
		out := make(Collection, len(c), len(c)+1)
		copy(out, c)
		return append(out, LineItem{
			ID:       p.ID,
			Title:    p.Title,
			ImageURL: p.ImageURL,
			Price:    p.Price,
			Quantity: 1,
		})
	}

	out := c.Clone()
	out[idx].Quantity++
	return out
}

// Increment bumps the quantity of the item with the given id. An unknown id
// returns an unchanged copy.
func Increment(c Collection, id string) Collection {
	out := c.Clone()
	if idx := out.Find(id); idx != -1 {
		out[idx].Quantity++
	}
	return out
}

// Decrement lowers the quantity of the item with the given id and removes it
// once the quantity reaches zero. An unknown id returns an unchanged copy.
func Decrement(c Collection, id string) Collection {
	idx := c.Find(id)
	if idx == -1 {
		return c.Clone()
	}

	if c[idx].Quantity-1 > 0 {
		out := c.Clone()
		out[idx].Quantity--
		return out
	}

	out := make(Collection, 0, len(c)-1)
	out = append(out, c[:idx]...)
	return append(out, c[idx+1:]...)
}

// Sanitize drops entries that violate the quantity >= 1 invariant.
func Sanitize(c Collection) Collection {
	out := make(Collection, 0, len(c))
	for _, item := range c {
		if item.Quantity >= 1 {
			out = append(out, item)
		}
	}
	return out
}
