package catalogservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // registered for upload format checks
	_ "image/jpeg" // registered for upload format checks
	_ "image/png"  // registered for upload format checks
	"path/filepath"
	"strings"

	"github.com/Leopold1975/recipe_catalog/internal/recipes/domain/models"
	repo "github.com/Leopold1975/recipe_catalog/internal/recipes/repository/catalogrepo"
	"github.com/Leopold1975/recipe_catalog/pkg/logger"
)

const (
	maxTagNameLen        = 50
	maxIngredientNameLen = 255
	maxTitleLen          = 255
	maxLinkLen           = 255
	maxPriceIntDigits    = 3
	maxPriceFracDigits   = 2
)

var ErrNotFound = errors.New("not found")

type CatalogService struct {
	catalogRepo Repository
	images      ImageStore
	lg          logger.Logger
}

type Repository interface {
	CreateTag(context.Context, models.Tag) (int64, error)
	GetTags(context.Context, repo.TagFilter) ([]models.Tag, error)
	CreateIngredient(context.Context, models.Ingredient) (int64, error)
	GetIngredients(ctx context.Context, userID int64) ([]models.Ingredient, error)
	CreateRecipe(context.Context, models.Recipe) (int64, error)
	GetRecipes(context.Context, repo.RecipeFilter) ([]models.Recipe, error)
	GetRecipeByID(ctx context.Context, id, userID int64) (models.Recipe, error)
	UpdateRecipe(context.Context, repo.UpdateRecipeRequest) error
	SetRecipeImage(ctx context.Context, id, userID int64, image string) error
	Shutdown(context.Context) error
}

type ImageStore interface {
	Save(ctx context.Context, ext string, data []byte) (string, error)
}

func New(catalogRepo Repository, images ImageStore, lg logger.Logger) *CatalogService {
	return &CatalogService{
		catalogRepo: catalogRepo,
		images:      images,
		lg:          lg,
	}
}

func (cs *CatalogService) CreateTag(ctx context.Context, user models.User, name string) (models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Tag{}, models.Invalid("name", "must not be empty")
	}

	if len(name) > maxTagNameLen {
		return models.Tag{}, models.Invalid("name", "must be at most %d characters", maxTagNameLen)
	}

	t := models.Tag{ //nolint:exhaustruct
		UserID: user.ID,
		Name:   name,
	}

	id, err := cs.catalogRepo.CreateTag(ctx, t)
	if err != nil {
		return models.Tag{}, fmt.Errorf("create tag error: %w", err)
	}

	t.ID = id

	return t, nil
}

func (cs *CatalogService) ListTags(ctx context.Context, user models.User, req ListTagsRequest) ([]models.Tag, error) {
	tags, err := cs.catalogRepo.GetTags(ctx, repo.TagFilter{
		UserID:       user.ID,
		AssignedOnly: req.AssignedOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("get tags error: %w", err)
	}

	return tags, nil
}

func (cs *CatalogService) CreateIngredient(ctx context.Context, user models.User, name string) (models.Ingredient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Ingredient{}, models.Invalid("name", "must not be empty")
	}

	if len(name) > maxIngredientNameLen {
		return models.Ingredient{}, models.Invalid("name", "must be at most %d characters", maxIngredientNameLen)
	}

	ing := models.Ingredient{ //nolint:exhaustruct
		UserID: user.ID,
		Name:   name,
	}

	id, err := cs.catalogRepo.CreateIngredient(ctx, ing)
	if err != nil {
		return models.Ingredient{}, fmt.Errorf("create ingredient error: %w", err)
	}

	ing.ID = id

	return ing, nil
}

func (cs *CatalogService) ListIngredients(ctx context.Context, user models.User) ([]models.Ingredient, error) {
	ingredients, err := cs.catalogRepo.GetIngredients(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get ingredients error: %w", err)
	}

	return ingredients, nil
}

func (cs *CatalogService) CreateRecipe(ctx context.Context, user models.User, req CreateRecipeRequest) (models.Recipe, error) {
	if err := validateRecipeFields(req.Title, req.Time, req.Price, req.Link); err != nil {
		return models.Recipe{}, err
	}

	r := models.Recipe{ //nolint:exhaustruct
		UserID:        user.ID,
		Title:         strings.TrimSpace(req.Title),
		Time:          req.Time,
		Price:         req.Price,
		Link:          req.Link,
		TagIDs:        req.TagIDs,
		IngredientIDs: req.IngredientIDs,
	}

	id, err := cs.catalogRepo.CreateRecipe(ctx, r)
	if err != nil {
		return models.Recipe{}, relationOrInternal(err, "create recipe")
	}

	created, err := cs.catalogRepo.GetRecipeByID(ctx, id, user.ID)
	if err != nil {
		return models.Recipe{}, fmt.Errorf("get recipe error: %w", err)
	}

	return created, nil
}

// ListRecipes applies the request filters with tag precedence: when a
// tag filter is present the ingredient filter is ignored entirely.
// Both paths stay scoped to the requesting user.
func (cs *CatalogService) ListRecipes(ctx context.Context, user models.User, req ListRecipesRequest) ([]models.Recipe, error) {
	filter := repo.RecipeFilter{UserID: user.ID} //nolint:exhaustruct

	switch {
	case len(req.TagIDs) != 0:
		filter.TagIDs = req.TagIDs
	case len(req.IngredientIDs) != 0:
		filter.IngredientIDs = req.IngredientIDs
	}

	recipes, err := cs.catalogRepo.GetRecipes(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get recipes error: %w", err)
	}

	return recipes, nil
}

func (cs *CatalogService) GetRecipe(ctx context.Context, user models.User, id int64) (models.Recipe, error) {
	r, err := cs.catalogRepo.GetRecipeByID(ctx, id, user.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return models.Recipe{}, ErrNotFound
		}

		return models.Recipe{}, fmt.Errorf("get recipe error: %w", err)
	}

	return r, nil
}

func (cs *CatalogService) UpdateRecipe(ctx context.Context, user models.User, req UpdateRecipeRequest) (models.Recipe, error) {
	if !req.Partial {
		if req.Title == nil {
			return models.Recipe{}, models.Invalid("title", "field is required")
		}

		if req.Time == nil {
			return models.Recipe{}, models.Invalid("time", "field is required")
		}

		if req.Price == nil {
			return models.Recipe{}, models.Invalid("price", "field is required")
		}

		// Full update replaces the relation sets even when absent
		// from the payload.
		if req.TagIDs == nil {
			req.TagIDs = &[]int64{}
		}

		if req.IngredientIDs == nil {
			req.IngredientIDs = &[]int64{}
		}

		if req.Link == nil {
			empty := ""
			req.Link = &empty
		}
	}

	if err := validateRecipeUpdate(req); err != nil {
		return models.Recipe{}, err
	}

	repoReq := repo.UpdateRecipeRequest{
		ID:            req.ID,
		UserID:        user.ID,
		Title:         req.Title,
		Time:          req.Time,
		Price:         req.Price,
		Link:          req.Link,
		TagIDs:        req.TagIDs,
		IngredientIDs: req.IngredientIDs,
	}

	if err := cs.catalogRepo.UpdateRecipe(ctx, repoReq); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return models.Recipe{}, ErrNotFound
		}

		return models.Recipe{}, relationOrInternal(err, "update recipe")
	}

	updated, err := cs.catalogRepo.GetRecipeByID(ctx, req.ID, user.ID)
	if err != nil {
		return models.Recipe{}, fmt.Errorf("get recipe error: %w", err)
	}

	return updated, nil
}

// UploadRecipeImage validates that data is a decodable image, stores
// the bytes and replaces the recipe's image reference.
func (cs *CatalogService) UploadRecipeImage(ctx context.Context, user models.User, id int64, filename string, data []byte) (models.Recipe, error) {
	r, err := cs.catalogRepo.GetRecipeByID(ctx, id, user.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return models.Recipe{}, ErrNotFound
		}

		return models.Recipe{}, fmt.Errorf("get recipe error: %w", err)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return models.Recipe{}, models.Invalid("image", "upload a valid image")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = "." + format
	}

	ref, err := cs.images.Save(ctx, ext, data)
	if err != nil {
		return models.Recipe{}, fmt.Errorf("save image error: %w", err)
	}

	if err := cs.catalogRepo.SetRecipeImage(ctx, id, user.ID, ref); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return models.Recipe{}, ErrNotFound
		}

		return models.Recipe{}, fmt.Errorf("set recipe image error: %w", err)
	}

	if r.Image != "" {
		cs.lg.Debugf("recipe %d image replaced: %s -> %s", id, r.Image, ref)
	}

	r.Image = ref

	return r, nil
}

func (cs *CatalogService) Shutdown(ctx context.Context) error {
	if err := cs.catalogRepo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown catalog repo error: %w", err)
	}

	return nil
}

func validateRecipeFields(title string, timeMinutes int, price, link string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Invalid("title", "must not be empty")
	}

	if len(title) > maxTitleLen {
		return models.Invalid("title", "must be at most %d characters", maxTitleLen)
	}

	if timeMinutes <= 0 {
		return models.Invalid("time", "must be a positive number of minutes")
	}

	if err := validatePrice(price); err != nil {
		return err
	}

	if len(link) > maxLinkLen {
		return models.Invalid("link", "must be at most %d characters", maxLinkLen)
	}

	return nil
}

func validateRecipeUpdate(req UpdateRecipeRequest) error {
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return models.Invalid("title", "must not be empty")
		}

		if len(title) > maxTitleLen {
			return models.Invalid("title", "must be at most %d characters", maxTitleLen)
		}
	}

	if req.Time != nil && *req.Time <= 0 {
		return models.Invalid("time", "must be a positive number of minutes")
	}

	if req.Price != nil {
		if err := validatePrice(*req.Price); err != nil {
			return err
		}
	}

	if req.Link != nil && len(*req.Link) > maxLinkLen {
		return models.Invalid("link", "must be at most %d characters", maxLinkLen)
	}

	return nil
}

// validatePrice accepts a decimal with at most three integer digits
// and at most two fraction digits, matching the numeric(5,2) column.
func validatePrice(price string) error {
	intPart, fracPart, _ := strings.Cut(price, ".")

	if intPart == "" || len(intPart) > maxPriceIntDigits || len(fracPart) > maxPriceFracDigits {
		return models.Invalid("price", "must be a decimal with at most %d digits before and %d after the point",
			maxPriceIntDigits, maxPriceFracDigits)
	}

	for _, r := range intPart + fracPart {
		if r < '0' || r > '9' {
			return models.Invalid("price", "must be a decimal number")
		}
	}

	return nil
}

func relationOrInternal(err error, where string) error {
	if errors.Is(err, repo.ErrTagNotFound) {
		return models.Invalid("tag", "unknown tag id")
	}

	if errors.Is(err, repo.ErrIngredientNotFound) {
		return models.Invalid("ingredient", "unknown ingredient id")
	}

	return fmt.Errorf("%s error: %w", where, err)
}
