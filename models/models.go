package models

import (
	"time"
)

// NotAvailable is the placeholder for a field that could not be extracted
const NotAvailable = "N/A"

// SourceID identifies one integrated marketplace
type SourceID string

const (
	SourceFlipkart   SourceID = "Flipkart"
	SourceAmazon     SourceID = "Amazon"
	SourceVijaySales SourceID = "Vijay Sales"
	SourceJioMart    SourceID = "JioMart"
)

// CategoryID is one bucket of the product taxonomy
type CategoryID string

const (
	CategoryMobilePhones      CategoryID = "Mobile Phones"
	CategoryLaptops           CategoryID = "Laptops"
	CategoryTelevision        CategoryID = "Television"
	CategoryAudioAccessories  CategoryID = "Audio Accessories"
	CategoryMobileAccessories CategoryID = "Mobile Accessories"
	CategoryWearables         CategoryID = "Wearables"
	CategoryCameras           CategoryID = "Cameras"
	CategoryApparel           CategoryID = "Apparel"
	CategoryBottoms           CategoryID = "Bottoms"
	CategoryFootwear          CategoryID = "Footwear"
	CategoryKitchenAppliances CategoryID = "Kitchen Appliances"
	CategoryFurniture         CategoryID = "Furniture"
	CategoryPersonalCare      CategoryID = "Personal Care"
	CategoryBeautyCosmetics   CategoryID = "Beauty & Cosmetics"
	CategoryGeneral           CategoryID = "General Products"
)

// RawCandidate is a listing located on a results page before validation
type RawCandidate struct {
	Title      string
	PriceText  string
	RatingText string
	URL        string
	ImageURL   string
	Source     SourceID
}

// Product is a validated, normalized listing.
// PriceAmount is always derived from PriceText and is at least 1.
type Product struct {
	Title       string     `json:"title"`
	PriceText   string     `json:"price"`
	PriceAmount int64      `json:"price_num"`
	Rating      string     `json:"rating"`
	Category    CategoryID `json:"category"`
	Source      SourceID   `json:"source"`
	URL         string     `json:"url"`
	ImageURL    string     `json:"image"`
}

// SourceReport summarizes one extractor invocation within a search
type SourceReport struct {
	Source     SourceID `json:"source"`
	Candidates int      `json:"candidates"`
	Error      string   `json:"error,omitempty"`
	Skipped    bool     `json:"skipped,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// SearchResult is the ranked outcome of one query
type SearchResult struct {
	Query     string         `json:"query"`
	Products  []Product      `json:"products"`
	Sources   []SourceReport `json:"sources"`
	Cached    bool           `json:"cached"`
	CreatedAt time.Time      `json:"created_at"`
}

// SearchRequest is the body of a search call
type SearchRequest struct {
	Query string `json:"query" validate:"required,max=200"`
}

// SearchResponse is the body returned for a successful search
type SearchResponse struct {
	Success       bool           `json:"success"`
	Query         string         `json:"query"`
	TotalProducts int            `json:"total_products"`
	Products      []Product      `json:"products"`
	Sources       []SourceReport `json:"sources"`
	Cached        bool           `json:"cached"`
}

// ErrorResponse is the body returned when a search fails
type ErrorResponse struct {
	Success  bool      `json:"success"`
	Error    string    `json:"error"`
	Products []Product `json:"products"`
}

// SearchHistory is one persisted search
type SearchHistory struct {
	ID            int64     `json:"id" db:"id"`
	Query         string    `json:"query" db:"query"`
	TotalProducts int       `json:"total_products" db:"total_products"`
	LowestPrice   *int64    `json:"lowest_price,omitempty" db:"lowest_price"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
