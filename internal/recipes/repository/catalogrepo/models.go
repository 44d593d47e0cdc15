package catalogrepo

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrTagNotFound        = errors.New("tag reference not found")
	ErrIngredientNotFound = errors.New("ingredient reference not found")
)

// TagFilter scopes a tag listing. AssignedOnly keeps only tags
// referenced by at least one recipe.
type TagFilter struct {
	UserID       int64
	AssignedOnly bool
}

// RecipeFilter scopes a recipe listing. At most one of TagIDs and
// IngredientIDs is set; the service layer enforces the precedence.
type RecipeFilter struct {
	UserID        int64
	TagIDs        []int64
	IngredientIDs []int64
}

// UpdateRecipeRequest describes a scoped recipe update. Nil field
// pointers are left untouched; a non-nil id set replaces the stored
// relation set wholesale.
type UpdateRecipeRequest struct {
	ID            int64
	UserID        int64
	Title         *string
	Time          *int
	Price         *string
	Link          *string
	TagIDs        *[]int64
	IngredientIDs *[]int64
}
