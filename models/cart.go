package models

import (
	"sort"
	"strings"
)

// Cart maps product id to requested quantity for one visitor session.
// A present key always carries a quantity of at least 1.
type Cart map[uint]int

// NewCart returns an empty cart.
func NewCart() Cart {
	return Cart{}
}

// Add increments the quantity of productID, creating the entry at 1.
func (c Cart) Add(productID uint) {
	if productID == 0 {
		return
	}
	c[productID]++
}

// SetQuantity overwrites the quantity of an existing entry. Quantities below
// one are stored as one; absent products are ignored.
func (c Cart) SetQuantity(productID uint, quantity int) {
	if _, ok := c[productID]; !ok {
		return
	}
	if quantity < 1 {
		quantity = 1
	}
	c[productID] = quantity
}

// Remove deletes productID if present.
func (c Cart) Remove(productID uint) {
	delete(c, productID)
}

// Count sums all quantities; used for the cart badge.
func (c Cart) Count() int {
	total := 0
	for _, q := range c {
		total += q
	}
	return total
}

// IDs returns the product ids in ascending order.
func (c Cart) IDs() []uint {
	ids := make([]uint, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone returns an independent copy.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	for id, q := range c {
		out[id] = q
	}
	return out
}

// ParseID coerces a request value to a product id the way a lenient form
// decoder would: leading whitespace is skipped, leading digits are read, and
// anything else (including negative numbers) yields 0, which matches no
// product.
func ParseID(raw string) uint {
	n := ParseInt(raw)
	if n <= 0 {
		return 0
	}
	return uint(n)
}

// ParseInt reads an optional sign followed by leading digits. Input without
// leading digits yields 0.
func ParseInt(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		if n > 1<<31 {
			n = 1 << 31
			break
		}
	}
	if neg {
		return -n
	}
	return n
}
