package model

import "time"

// StoreSnapshot is the commerce data attached to a submission. It mirrors
// the shape the storefront admin sends: products, collections and recent
// orders, enough for the insight engine to ground its recommendations.
type StoreSnapshot struct {
	ShopDomain  string       `json:"shop_domain"`
	Products    []Product    `json:"products"`
	Collections []Collection `json:"collections,omitempty"`
	Orders      []Order      `json:"orders,omitempty"`
}

type Product struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	ProductType string   `json:"product_type,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Price       float64  `json:"price,omitempty"`
}

type Collection struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Order struct {
	ID        string    `json:"id"`
	Total     float64   `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

// Valid performs the submission-time well-formedness check: a snapshot must
// identify the shop and carry at least one product to analyze.
func (s *StoreSnapshot) Valid() bool {
	if s.ShopDomain == "" || len(s.Products) == 0 {
		return false
	}
	for _, p := range s.Products {
		if p.Title == "" {
			return false
		}
	}
	return true
}
