package server

// Recipe write payloads use pointers so PATCH can tell an absent
// field from a zero value.
type recipeBody struct {
	Title      *string  `json:"title"`
	Time       *int     `json:"time"`
	Price      *string  `json:"price"`
	Link       *string  `json:"link"`
	Tag        *[]int64 `json:"tag"`
	Ingredient *[]int64 `json:"ingredient"`
}

type nameBody struct {
	Name string `json:"name"`
}

type createTokenBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
