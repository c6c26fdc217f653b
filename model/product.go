package models

import (
	"fmt"
	"strings"
)

// Category is the closed set of catalog categories.
type Category string

const (
	CategoryElectronics        Category = "ELECTRONICS"
	CategoryFashion            Category = "FASHION"
	CategoryHomeKitchen        Category = "HOME_KITCHEN"
	CategoryBeautyPersonalCare Category = "BEAUTY_PERSONAL_CARE"
	CategoryBooksStationery    Category = "BOOKS_STATIONERY"
	CategoryHealthWellness     Category = "HEALTH_WELLNESS"
	CategoryToysGames          Category = "TOYS_GAMES"
	CategorySportsOutdoors     Category = "SPORTS_OUTDOORS"
	CategoryAutomotive         Category = "AUTOMOTIVE"
	CategoryGroceries          Category = "GROCERIES_GOURMET_FOOD"
)

var categories = []Category{
	CategoryElectronics,
	CategoryFashion,
	CategoryHomeKitchen,
	CategoryBeautyPersonalCare,
	CategoryBooksStationery,
	CategoryHealthWellness,
	CategoryToysGames,
	CategorySportsOutdoors,
	CategoryAutomotive,
	CategoryGroceries,
}

// Categories returns every valid category in declaration order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory accepts a category name in any case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if c.Valid() {
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }
