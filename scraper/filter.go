package scraper

import (
	"sort"
	"strings"

	"pricecompare/catalog"
	"pricecompare/models"
)

// BuildProducts keeps the candidates whose price normalizes to at least
// MinPriceAmount and classifies each survivor. Input order is preserved.
func BuildProducts(candidates []models.RawCandidate) []models.Product {
	products := make([]models.Product, 0, len(candidates))
	for _, c := range candidates {
		amount, ok := NormalizePrice(c.PriceText)
		if !ok || amount < MinPriceAmount {
			continue
		}
		products = append(products, models.Product{
			Title:       c.Title,
			PriceText:   strings.TrimSpace(c.PriceText),
			PriceAmount: amount,
			Rating:      orNotAvailable(c.RatingText),
			Category:    catalog.Classify(c.Title),
			Source:      c.Source,
			URL:         c.URL,
			ImageURL:    orNotAvailable(c.ImageURL),
		})
	}
	return products
}

// RankByPrice sorts products by ascending amount in place. Equal amounts
// keep their relative order.
func RankByPrice(products []models.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].PriceAmount < products[j].PriceAmount
	})
}

func orNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return models.NotAvailable
	}
	return s
}
