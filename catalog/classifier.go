// Package catalog assigns products to the category taxonomy.
package catalog

import (
	"strings"

	"pricecompare/models"
)

type rule struct {
	category models.CategoryID
	keywords []string
}

// rules is scanned in order; earlier entries win on ambiguous titles.
var rules = []rule{
	{models.CategoryMobilePhones, []string{"phone", "mobile", "iphone", "samsung", "oneplus", "pixel"}},
	{models.CategoryLaptops, []string{"laptop", "notebook", "macbook", "chromebook"}},
	{models.CategoryTelevision, []string{"tv", "television", "smart tv", "led tv"}},
	{models.CategoryAudioAccessories, []string{"headphone", "earphone", "earbud", "airpods"}},
	{models.CategoryMobileAccessories, []string{"charger", "cable", "adapter", "power bank"}},
	{models.CategoryWearables, []string{"watch", "smartwatch", "fitness band"}},
	{models.CategoryCameras, []string{"camera", "dslr", "gopro"}},
	{models.CategoryApparel, []string{"shirt", "t-shirt", "tshirt", "polo", "top", "blouse", "hoodie", "sweatshirt"}},
	{models.CategoryBottoms, []string{"jeans", "trouser", "pant", "cargo", "chino"}},
	{models.CategoryFootwear, []string{"shoe", "sneaker", "boot", "sandal", "slipper", "footwear"}},
	{models.CategoryKitchenAppliances, []string{"mixer", "grinder", "blender", "juicer", "cooker"}},
	{models.CategoryFurniture, []string{"sofa", "chair", "table", "bed", "mattress"}},
	{models.CategoryPersonalCare, []string{"shampoo", "conditioner", "hair oil", "soap", "facewash"}},
	{models.CategoryBeautyCosmetics, []string{"makeup", "lipstick", "kajal", "mascara", "foundation"}},
}

// Classify returns the first category with a keyword contained in title,
// or CategoryGeneral when nothing matches.
func Classify(title string) models.CategoryID {
	titleLower := strings.ToLower(title)

	for _, r := range rules {
		for _, keyword := range r.keywords {
			if strings.Contains(titleLower, keyword) {
				return r.category
			}
		}
	}

	return models.CategoryGeneral
}

// Categories lists every category in scan order followed by the fallback
func Categories() []models.CategoryID {
	out := make([]models.CategoryID, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.category)
	}
	return append(out, models.CategoryGeneral)
}
