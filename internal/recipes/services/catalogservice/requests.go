package catalogservice

type CreateRecipeRequest struct {
	Title         string
	Time          int
	Price         string
	Link          string
	TagIDs        []int64
	IngredientIDs []int64
}

// UpdateRecipeRequest is a pointer-per-field update so a handler can
// distinguish "absent" from "zero". Partial selects PATCH semantics:
// absent fields keep their value. A full update requires the scalar
// fields and treats absent relation sets as "clear to empty".
type UpdateRecipeRequest struct {
	ID            int64
	Title         *string
	Time          *int
	Price         *string
	Link          *string
	TagIDs        *[]int64
	IngredientIDs *[]int64
	Partial       bool
}

type ListRecipesRequest struct {
	TagIDs        []int64
	IngredientIDs []int64
}

type ListTagsRequest struct {
	AssignedOnly bool
}
