package models

type Tag struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"-"`
	Name   string `json:"name"`
}

type Ingredient struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"-"`
	Name   string `json:"name"`
}

// Recipe carries both the id sets and the expanded entities for its
// tag and ingredient relations. List queries fill only the id sets,
// single-recipe reads fill both.
type Recipe struct {
	ID            int64
	UserID        int64
	Title         string
	Time          int
	Price         string
	Link          string
	Image         string
	TagIDs        []int64
	IngredientIDs []int64
	Tags          []Tag
	Ingredients   []Ingredient
}
