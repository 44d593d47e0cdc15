package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Leopold1975/recipe_catalog/internal/pkg/config"
	"github.com/Leopold1975/recipe_catalog/internal/pkg/pgtools"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/domain/models"
	repo "github.com/Leopold1975/recipe_catalog/internal/recipes/repository/catalogrepo"
	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // driver for migrations
)

type CatalogPostgresRepo struct {
	db *pgxpool.Pool
}

func New(ctx context.Context, cfg config.PostgresDB) (CatalogPostgresRepo, error) {
	connString := "postgres://" + cfg.Username + ":" + cfg.Password + "@" +
		cfg.Addr + "/" + cfg.DB + "?" + "sslmode=" + cfg.SSLmode + "&pool_max_conns=" + cfg.MaxConns

	db, err := pgtools.Connect(ctx, connString)
	if err != nil {
		return CatalogPostgresRepo{}, fmt.Errorf("connect to db error: %w", err)
	}

	if err := pgtools.ApplyMigration(cfg); err != nil {
		return CatalogPostgresRepo{}, fmt.Errorf("apply migration error: %w", err)
	}

	return CatalogPostgresRepo{
		db: db,
	}, nil
}

func (cr CatalogPostgresRepo) CreateTag(ctx context.Context, t models.Tag) (id int64, err error) { //nolint:nonamedreturns
	return cr.createNamed(ctx, "tags", t.UserID, t.Name)
}

func (cr CatalogPostgresRepo) CreateIngredient(ctx context.Context, ing models.Ingredient) (id int64, err error) { //nolint:nonamedreturns
	return cr.createNamed(ctx, "ingredients", ing.UserID, ing.Name)
}

func (cr CatalogPostgresRepo) createNamed(ctx context.Context, table string, userID int64, name string) (id int64, err error) { //nolint:nonamedreturns
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Insert(table).
		Columns("user_id", "name").
		Values(userID, name).
		Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, fmt.Errorf("to sql error: %w", err)
	}

	if err := cr.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("scan error: %w", err)
	}

	return id, nil
}

func (cr CatalogPostgresRepo) GetTags(ctx context.Context, f repo.TagFilter) ([]models.Tag, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	sb := psql.Select("id", "user_id", "name").
		From("tags").
		Where(squirrel.Eq{"user_id": f.UserID})

	if f.AssignedOnly {
		sb = sb.Where("EXISTS (SELECT 1 FROM recipe_tags rt WHERE rt.tag_id = tags.id)")
	}

	query, args, err := sb.OrderBy("name DESC", "id DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("to sql error: %w", err)
	}

	rows, err := cr.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	tags := make([]models.Tag, 0, 10) //nolint:gomnd

	for rows.Next() {
		var t models.Tag

		if err := rows.Scan(&t.ID, &t.UserID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}

		tags = append(tags, t)
	}

	return tags, rows.Err()
}

func (cr CatalogPostgresRepo) GetIngredients(ctx context.Context, userID int64) ([]models.Ingredient, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Select("id", "user_id", "name").
		From("ingredients").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("name DESC", "id DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("to sql error: %w", err)
	}

	rows, err := cr.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	ingredients := make([]models.Ingredient, 0, 10) //nolint:gomnd

	for rows.Next() {
		var ing models.Ingredient

		if err := rows.Scan(&ing.ID, &ing.UserID, &ing.Name); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}

		ingredients = append(ingredients, ing)
	}

	return ingredients, rows.Err()
}

func (cr CatalogPostgresRepo) CreateRecipe(ctx context.Context, r models.Recipe) (id int64, err error) { //nolint:nonamedreturns
	tx, err := cr.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "create recipe")
	}()

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Insert("recipes").
		Columns("user_id", "title", "time_minutes", "price", "link").
		Values(r.UserID, r.Title, r.Time, r.Price, r.Link).
		Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, fmt.Errorf("to sql error: %w", err)
	}

	if err = tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("scan error: %w", err)
	}

	if err = replaceTagLinks(ctx, tx, id, r.UserID, r.TagIDs); err != nil {
		return 0, err
	}

	if err = replaceIngredientLinks(ctx, tx, id, r.UserID, r.IngredientIDs); err != nil {
		return 0, err
	}

	return id, nil
}

func (cr CatalogPostgresRepo) GetRecipes(ctx context.Context, f repo.RecipeFilter) (recipes []models.Recipe, err error) { //nolint:nonamedreturns
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	sb := psql.Select("recipes.id", "recipes.user_id", "recipes.title", "recipes.time_minutes",
		"recipes.price::text", "recipes.link", "recipes.image").
		From("recipes").
		Where(squirrel.Eq{"recipes.user_id": f.UserID})

	// A recipe matching several ids of the filter set would be
	// returned once per match without Distinct.
	switch {
	case len(f.TagIDs) != 0:
		sb = sb.Distinct().
			Join("recipe_tags rt ON rt.recipe_id = recipes.id").
			Where(squirrel.Eq{"rt.tag_id": f.TagIDs})
	case len(f.IngredientIDs) != 0:
		sb = sb.Distinct().
			Join("recipe_ingredients ri ON ri.recipe_id = recipes.id").
			Where(squirrel.Eq{"ri.ingredient_id": f.IngredientIDs})
	}

	query, args, err := sb.OrderBy("recipes.id DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("to sql error: %w", err)
	}

	rows, err := cr.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	recipes = make([]models.Recipe, 0, 10) //nolint:gomnd

	for rows.Next() {
		var r models.Recipe

		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.Time, &r.Price, &r.Link, &r.Image); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}

		recipes = append(recipes, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := cr.fillRelationIDs(ctx, recipes); err != nil {
		return nil, err
	}

	return recipes, nil
}

func (cr CatalogPostgresRepo) GetRecipeByID(ctx context.Context, id, userID int64) (models.Recipe, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Select("id", "user_id", "title", "time_minutes", "price::text", "link", "image").
		From("recipes").
		Where(squirrel.Eq{"id": id, "user_id": userID}).ToSql()
	if err != nil {
		return models.Recipe{}, fmt.Errorf("to sql error: %w", err)
	}

	var r models.Recipe

	if err := cr.db.QueryRow(ctx, query, args...).Scan(
		&r.ID, &r.UserID, &r.Title, &r.Time, &r.Price, &r.Link, &r.Image); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Recipe{}, repo.ErrNotFound
		}

		return models.Recipe{}, fmt.Errorf("scan error: %w", err)
	}

	r.Tags, err = cr.recipeTags(ctx, id)
	if err != nil {
		return models.Recipe{}, err
	}

	r.Ingredients, err = cr.recipeIngredients(ctx, id)
	if err != nil {
		return models.Recipe{}, err
	}

	r.TagIDs = make([]int64, 0, len(r.Tags))
	for _, t := range r.Tags {
		r.TagIDs = append(r.TagIDs, t.ID)
	}

	r.IngredientIDs = make([]int64, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		r.IngredientIDs = append(r.IngredientIDs, ing.ID)
	}

	return r, nil
}

func (cr CatalogPostgresRepo) UpdateRecipe(ctx context.Context, req repo.UpdateRecipeRequest) (err error) { //nolint:nonamedreturns,cyclop
	tx, err := cr.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "update recipe")
	}()

	// Lock the row for the whole update so a concurrent relation
	// replacement is never observable half-applied.
	var owned int64
	if err = tx.QueryRow(ctx,
		"SELECT id FROM recipes WHERE id = $1 AND user_id = $2 FOR UPDATE",
		req.ID, req.UserID).Scan(&owned); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.ErrNotFound
		}

		return fmt.Errorf("lock error: %w", err)
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	ub := psql.Update("recipes").Where(squirrel.Eq{"id": req.ID})
	fields := 0

	if req.Title != nil {
		ub = ub.Set("title", *req.Title)
		fields++
	}

	if req.Time != nil {
		ub = ub.Set("time_minutes", *req.Time)
		fields++
	}

	if req.Price != nil {
		ub = ub.Set("price", *req.Price)
		fields++
	}

	if req.Link != nil {
		ub = ub.Set("link", *req.Link)
		fields++
	}

	if fields != 0 {
		query, args, errS := ub.ToSql()
		if errS != nil {
			return fmt.Errorf("to sql error: %w", errS)
		}

		if _, err = tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("exec error: %w", err)
		}
	}

	if req.TagIDs != nil {
		if err = replaceTagLinks(ctx, tx, req.ID, req.UserID, *req.TagIDs); err != nil {
			return err
		}
	}

	if req.IngredientIDs != nil {
		if err = replaceIngredientLinks(ctx, tx, req.ID, req.UserID, *req.IngredientIDs); err != nil {
			return err
		}
	}

	return nil
}

func (cr CatalogPostgresRepo) SetRecipeImage(ctx context.Context, id, userID int64, image string) (err error) { //nolint:nonamedreturns
	tx, err := cr.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cannot begin transaction error: %w", err)
	}

	defer func() {
		err = pgtools.CommitOrRollback(ctx, tx, err, "set image")
	}()

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Update("recipes").
		Set("image", image).
		Where(squirrel.Eq{"id": id, "user_id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("to sql error: %w", err)
	}

	ct, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec error: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repo.ErrNotFound
	}

	return nil
}

func (cr CatalogPostgresRepo) Shutdown(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		cr.db.Close()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("context error: %w", ctx.Err())
	case <-done:
		return nil
	}
}

// replaceTagLinks swaps the recipe's tag set for exactly the given
// ids. Ids are resolved within the owner's tags; an unknown id makes
// the whole transaction fail with ErrTagNotFound.
func replaceTagLinks(ctx context.Context, tx pgx.Tx, recipeID, userID int64, tagIDs []int64) error {
	if err := resolveOwned(ctx, tx, "tags", tagIDs, userID, repo.ErrTagNotFound); err != nil {
		return err
	}

	return replaceLinks(ctx, tx, "recipe_tags", "tag_id", recipeID, tagIDs)
}

func replaceIngredientLinks(ctx context.Context, tx pgx.Tx, recipeID, userID int64, ingredientIDs []int64) error {
	if err := resolveOwned(ctx, tx, "ingredients", ingredientIDs, userID, repo.ErrIngredientNotFound); err != nil {
		return err
	}

	return replaceLinks(ctx, tx, "recipe_ingredients", "ingredient_id", recipeID, ingredientIDs)
}

func resolveOwned(ctx context.Context, tx pgx.Tx, table string, ids []int64, userID int64, notFound error) error {
	if len(ids) == 0 {
		return nil
	}

	distinct := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		distinct[id] = struct{}{}
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Select("COUNT(id)").
		From(table).
		Where(squirrel.Eq{"id": ids, "user_id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("to sql error: %w", err)
	}

	var found int

	if err := tx.QueryRow(ctx, query, args...).Scan(&found); err != nil {
		return fmt.Errorf("scan error: %w", err)
	}

	if found != len(distinct) {
		return notFound
	}

	return nil
}

func replaceLinks(ctx context.Context, tx pgx.Tx, table, refColumn string, recipeID int64, ids []int64) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Delete(table).
		Where(squirrel.Eq{"recipe_id": recipeID}).ToSql()
	if err != nil {
		return fmt.Errorf("to sql error: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("exec error: %w", err)
	}

	if len(ids) == 0 {
		return nil
	}

	ib := psql.Insert(table).Columns("recipe_id", refColumn)

	seen := make(map[int64]struct{}, len(ids))

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		ib = ib.Values(recipeID, id)
	}

	query, args, err = ib.ToSql()
	if err != nil {
		return fmt.Errorf("to sql error: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("exec error: %w", err)
	}

	return nil
}

func (cr CatalogPostgresRepo) fillRelationIDs(ctx context.Context, recipes []models.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(recipes))
	index := make(map[int64]int, len(recipes))

	for i := range recipes {
		recipes[i].TagIDs = make([]int64, 0)
		recipes[i].IngredientIDs = make([]int64, 0)
		ids = append(ids, recipes[i].ID)
		index[recipes[i].ID] = i
	}

	tagLinks, err := cr.links(ctx, "recipe_tags", "tag_id", ids)
	if err != nil {
		return err
	}

	for recipeID, tagIDs := range tagLinks {
		recipes[index[recipeID]].TagIDs = tagIDs
	}

	ingredientLinks, err := cr.links(ctx, "recipe_ingredients", "ingredient_id", ids)
	if err != nil {
		return err
	}

	for recipeID, ingredientIDs := range ingredientLinks {
		recipes[index[recipeID]].IngredientIDs = ingredientIDs
	}

	return nil
}

func (cr CatalogPostgresRepo) links(ctx context.Context, table, refColumn string, recipeIDs []int64) (map[int64][]int64, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Select("recipe_id", refColumn).
		From(table).
		Where(squirrel.Eq{"recipe_id": recipeIDs}).
		OrderBy(refColumn + " ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("to sql error: %w", err)
	}

	rows, err := cr.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	links := make(map[int64][]int64, len(recipeIDs))

	for rows.Next() {
		var recipeID, refID int64

		if err := rows.Scan(&recipeID, &refID); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}

		links[recipeID] = append(links[recipeID], refID)
	}

	return links, rows.Err()
}

func (cr CatalogPostgresRepo) recipeTags(ctx context.Context, recipeID int64) ([]models.Tag, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Select("tags.id", "tags.user_id", "tags.name").
		From("tags").
		Join("recipe_tags rt ON rt.tag_id = tags.id").
		Where(squirrel.Eq{"rt.recipe_id": recipeID}).
		OrderBy("tags.id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("to sql error: %w", err)
	}

	rows, err := cr.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	tags := make([]models.Tag, 0, 5) //nolint:gomnd

	for rows.Next() {
		var t models.Tag

		if err := rows.Scan(&t.ID, &t.UserID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}

		tags = append(tags, t)
	}

	return tags, rows.Err()
}

func (cr CatalogPostgresRepo) recipeIngredients(ctx context.Context, recipeID int64) ([]models.Ingredient, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := psql.Select("ingredients.id", "ingredients.user_id", "ingredients.name").
		From("ingredients").
		Join("recipe_ingredients ri ON ri.ingredient_id = ingredients.id").
		Where(squirrel.Eq{"ri.recipe_id": recipeID}).
		OrderBy("ingredients.id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("to sql error: %w", err)
	}

	rows, err := cr.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	ingredients := make([]models.Ingredient, 0, 5) //nolint:gomnd

	for rows.Next() {
		var ing models.Ingredient

		if err := rows.Scan(&ing.ID, &ing.UserID, &ing.Name); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}

		ingredients = append(ingredients, ing)
	}

	return ingredients, rows.Err()
}
