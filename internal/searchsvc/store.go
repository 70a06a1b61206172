// Package searchsvc is the product search service that searchload targets.
package searchsvc

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultProductCount is the catalog size searchd generates by default.
	DefaultProductCount = 100000
	// ScanLimit is how many products each search examines.
	ScanLimit = 100
	// MaxResults caps the products returned per search.
	MaxResults = 20
)

var (
	categories = []string{"Electronics", "Books", "Home", "Clothing", "Sports", "Toys", "Beauty", "Garden", "Automotive", "Health"}
	brands     = []string{"Alpha", "Beta", "Gamma", "Delta", "Epsilon", "Zeta", "Sigma", "Omega"}
)

type Product struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Brand       string `json:"brand"`
}

type SearchResponse struct {
	Products   []Product `json:"products"`
	TotalFound int       `json:"total_found"`
	SearchTime string    `json:"search_time"`
}

// Store is an immutable in-memory product list.
type Store struct {
	products []Product
}

// NewStore generates count products, cycling brands and categories.
func NewStore(count int) *Store {
	if count < 0 {
		count = 0
	}
	products := make([]Product, count)
	for i := range products {
		brand := brands[i%len(brands)]
		name := fmt.Sprintf("Product %s %d", brand, i+1)
		products[i] = Product{
			ID:          i + 1,
			Name:        name,
			Category:    categories[i%len(categories)],
			Description: "Description for " + name,
			Brand:       brand,
		}
	}
	return &Store{products: products}
}

func (s *Store) Len() int { return len(s.products) }

// Search matches query case-insensitively against name and category of the
// first ScanLimit products. TotalFound counts every match in that window;
// at most MaxResults are returned.
func (s *Store) Search(query string) SearchResponse {
	start := time.Now()
	query = strings.ToLower(query)

	window := s.products
	if len(window) > ScanLimit {
		window = window[:ScanLimit]
	}

	matches := []Product{}
	found := 0
	for _, p := range window {
		if !strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.Category), query) {
			continue
		}
		found++
		if len(matches) < MaxResults {
			matches = append(matches, p)
		}
	}

	return SearchResponse{
		Products:   matches,
		TotalFound: found,
		SearchTime: fmt.Sprintf("%.3fs", time.Since(start).Seconds()),
	}
}
