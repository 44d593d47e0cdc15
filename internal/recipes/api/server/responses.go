package server

import "github.com/Leopold1975/recipe_catalog/internal/recipes/domain/models"

type AuthTokenResponse struct {
	Token string `json:"token"`
}

type UserResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// RecipeSummaryResponse renders relations as id references. Used for
// listing, creation and updates.
type RecipeSummaryResponse struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	Time       int     `json:"time"`
	Price      string  `json:"price"`
	Link       string  `json:"link"`
	Tag        []int64 `json:"tag"`
	Ingredient []int64 `json:"ingredient"`
}

// RecipeDetailResponse expands relations to full objects. Used for
// single-recipe retrieval.
type RecipeDetailResponse struct {
	ID         int64               `json:"id"`
	Title      string              `json:"title"`
	Time       int                 `json:"time"`
	Price      string              `json:"price"`
	Link       string              `json:"link"`
	Tag        []models.Tag        `json:"tag"`
	Ingredient []models.Ingredient `json:"ingredient"`
}

// RecipeImageResponse is the image-only shape of the upload endpoint.
type RecipeImageResponse struct {
	ID    int64  `json:"id"`
	Image string `json:"image"`
}

func userResponse(u models.User) UserResponse {
	return UserResponse{
		Email: u.Email,
		Name:  u.Name,
	}
}

func recipeSummary(r models.Recipe) RecipeSummaryResponse {
	resp := RecipeSummaryResponse{
		ID:         r.ID,
		Title:      r.Title,
		Time:       r.Time,
		Price:      r.Price,
		Link:       r.Link,
		Tag:        r.TagIDs,
		Ingredient: r.IngredientIDs,
	}

	if resp.Tag == nil {
		resp.Tag = []int64{}
	}

	if resp.Ingredient == nil {
		resp.Ingredient = []int64{}
	}

	return resp
}

func recipeDetail(r models.Recipe) RecipeDetailResponse {
	resp := RecipeDetailResponse{
		ID:         r.ID,
		Title:      r.Title,
		Time:       r.Time,
		Price:      r.Price,
		Link:       r.Link,
		Tag:        r.Tags,
		Ingredient: r.Ingredients,
	}

	if resp.Tag == nil {
		resp.Tag = []models.Tag{}
	}

	if resp.Ingredient == nil {
		resp.Ingredient = []models.Ingredient{}
	}

	return resp
}

func recipeImage(r models.Recipe) RecipeImageResponse {
	return RecipeImageResponse{
		ID:    r.ID,
		Image: r.Image,
	}
}
