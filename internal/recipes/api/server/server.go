package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Leopold1975/recipe_catalog/internal/pkg/config"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/domain/models"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/services/authservice"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/services/catalogservice"
	"github.com/Leopold1975/recipe_catalog/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const maxImageUploadBytes = 10 << 20

type Server struct {
	serv           *http.Server
	catalogService CatalogService
	authService    AuthService
}

type CatalogService interface {
	CreateTag(ctx context.Context, user models.User, name string) (models.Tag, error)
	ListTags(ctx context.Context, user models.User, req catalogservice.ListTagsRequest) ([]models.Tag, error)
	CreateIngredient(ctx context.Context, user models.User, name string) (models.Ingredient, error)
	ListIngredients(ctx context.Context, user models.User) ([]models.Ingredient, error)
	CreateRecipe(ctx context.Context, user models.User, req catalogservice.CreateRecipeRequest) (models.Recipe, error)
	ListRecipes(ctx context.Context, user models.User, req catalogservice.ListRecipesRequest) ([]models.Recipe, error)
	GetRecipe(ctx context.Context, user models.User, id int64) (models.Recipe, error)
	UpdateRecipe(ctx context.Context, user models.User, req catalogservice.UpdateRecipeRequest) (models.Recipe, error)
	UploadRecipeImage(ctx context.Context, user models.User, id int64, filename string, data []byte) (models.Recipe, error)
	Shutdown(context.Context) error
}

type AuthService interface {
	Register(ctx context.Context, req authservice.RegisterUserRequest) (models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Authenticate(ctx context.Context, token string) (models.User, error)
	UpdateProfile(ctx context.Context, user models.User, req authservice.UpdateProfileRequest) (models.User, error)
}

func New(cfg config.Server, cs CatalogService, authService AuthService, lg logger.Logger) *Server {
	var s Server

	r := chi.NewRouter()
	r.Use(loggingMiddleware(lg))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/users", s.registerUser)
		r.Post("/users/token", s.createToken)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/users/me", s.getProfile)
			r.Patch("/users/me", s.updateProfile)

			r.Get("/tags", s.listTags)
			r.Post("/tags", s.createTag)

			r.Get("/ingredients", s.listIngredients)
			r.Post("/ingredients", s.createIngredient)

			r.Route("/recipes", func(r chi.Router) {
				r.Get("/", s.listRecipes)
				r.Post("/", s.createRecipe)

				r.Route("/{recipeID}", func(r chi.Router) {
					r.Get("/", s.getRecipe)
					r.Patch("/", s.patchRecipe)
					r.Put("/", s.putRecipe)
					r.Post("/upload-image", s.uploadRecipeImage)
				})
			})
		})
	})

	serv := &http.Server{ //nolint:exhaustruct
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	s.serv = serv
	s.catalogService = cs
	s.authService = authService

	return &s
}

func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error)

	go func() {
		if err := s.serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			close(errCh)
		}
	}()

	select {
	case <-ctx.Done():
		ctxS, cancel := context.WithTimeout(context.Background(), time.Second*5) //nolint:gomnd
		defer cancel()

		if err := s.Shutdown(ctxS); err != nil { //nolint:contextcheck
			return fmt.Errorf("context error: %w server error %w", ctxS.Err(), err)
		}

		if !errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("context cancelled error: %w", ctx.Err())
		}

		return nil
	case err := <-errCh:
		return fmt.Errorf("listen and serve error: %w", err)
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctxS, cancel := context.WithTimeout(ctx, s.serv.IdleTimeout)
	defer cancel()

	if err := s.serv.Shutdown(ctxS); err != nil {
		return fmt.Errorf("shutdown server error: %w", err)
	}

	return nil
}

// Регистрация пользователя
// (POST /users).
func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	var req authservice.RegisterUserRequest

	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(&req); err != nil {
		handleError(w, fmt.Errorf("decode error: %w", err), http.StatusBadRequest)

		return
	}

	u, err := s.authService.Register(r.Context(), req)
	if err != nil {
		handleError(w, err, statusFor(err))

		return
	}

	writeJSON(w, http.StatusCreated, userResponse(u))
}

// Получение токена по учетным данным
// (POST /users/token).
func (s *Server) createToken(w http.ResponseWriter, r *http.Request) {
	var b createTokenBody

	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(&b); err != nil {
		handleError(w, fmt.Errorf("decode error: %w", err), http.StatusBadRequest)

		return
	}

	token, err := s.authService.Login(r.Context(), b.Email, b.Password)
	if err != nil {
		handleError(w, err, statusFor(err))

		return
	}

	writeJSON(w, http.StatusOK, AuthTokenResponse{Token: token})
}

// Профиль текущего пользователя
// (GET /users/me).
func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userResponse(userFromContext(r.Context())))
}

// Частичное обновление профиля
// (PATCH /users/me).
func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req authservice.UpdateProfileRequest

	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(&req); err != nil {
		handleError(w, fmt.Errorf("decode error: %w", err), http.StatusBadRequest)

		return
	}

	u, err := s.authService.UpdateProfile(r.Context(), userFromContext(r.Context()), req)
	if err != nil {
		handleError(w, err, statusFor(err))

		return
	}

	writeJSON(w, http.StatusOK, userResponse(u))
}

// Список тегов пользователя c фильтром assigned_only
// (GET /tags).
func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	var req catalogservice.ListTagsRequest

	if raw := r.URL.Query().Get("assigned_only"); raw != "" {
		flag, err := strconv.Atoi(raw)
		if err != nil {
			handleError(w, models.Invalid("assigned_only", "must be 0 or 1"), http.StatusBadRequest)

			return
		}

		req.AssignedOnly = flag != 0
	}

	tags, err := s.catalogService.ListTags(r.Context(), userFromContext(r.Context()), req)
	if err != nil {
		handleError(w, err, statusFor(err))

		return
	}

	writeJSON(w, http.StatusOK, tags)
}

// Создание тега
// (POST /tags).
func (s *Server) createTag(w http.ResponseWriter, r *http.Request) {
	var b nameBody

	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(&b); err != nil {
		handleError(w, fmt.Errorf("decode error: %w", err), http.StatusBadRequest)

		return
	}

	t, err := s.catalogService.CreateTag(r.Context(), userFromContext(r.Context()), b.Name)
	if err != nil {
		handleError(w, err, statusFor(err))

		return
	}

	writeJSON(w, http.StatusCreated, t)
}

// Список ингредиентов пользователя
// (GET /ingredients).
func (s *Server) listIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := s.catalogService.ListIngredients(r.Context(), userFromContext(r.Context()))
	if err != nil {
		handleError(w, err, statusFor(err))

		return
	}

	writeJSON(w, http.StatusOK, ingredients)
}

// Создание ингредиента
// (POST /ingredients).
func (s *Server) createIngredient(w http.ResponseWriter, r *http.Request) {
	var b nameBody

	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(&b); err != nil {
		handleError(w, fmt.Errorf("decode error: %w", err), http.StatusBadRequest)

		return
	}

	ing, err := s.catalogService.CreateIngredient(r.Context(), userFromContext(r.Context()), b.Name)
	if err != nil {
		handleError(w, err, statusFor(err))

		return
	}

	writeJSON(w, http.StatusCreated, ing)
}

// Список рецептов c фильтрацией по тегам и/или ингредиентам
// (GET /recipes).
func (s *Server) listRecipes(w http.ResponseWriter, r *http.Request) {
	var req catalogservice.ListRecipesRequest

	if raw := r.URL.Query().Get("tag"); raw != "" {
		ids, err := parseIDList(raw)
		if err != nil {
			handleError(w, models.Invalid("tag", "must be a comma separated list of ids"), http.StatusBadRequest)

			return
		}

		req.TagIDs = ids
	}

	if raw := r.URL.Query().Get("ingredient"); raw != "" {
		ids, err := parseIDList(raw)
		if err != nil {
			handleError(w, models.Invalid("ingredient", "must be a comma separated list of ids"), http.StatusBadRequest)

			return
		}

		req.IngredientIDs = ids
	}

	recipes, err := s.catalogService.ListRecipes(r.Context(), userFromContext(r.Context()), req)
	if err != nil {
		handleError(w, err, statusFor(err))

		return
	}

	resp := make([]RecipeSummaryResponse, 0, len(recipes))
	for _, rec := range recipes {
		resp = append(resp, recipeSummary(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Создание рецепта
// (POST /recipes).
func (s *Server) createRecipe(w http.ResponseWriter, r *http.Request) {
	var b recipeBody

	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(&b); err != nil {
		handleError(w, fmt.Errorf("decode error: %w", err), http.StatusBadRequest)

		return
	}

	var req catalogservice.CreateRecipeRequest

	if b.Title != nil {
		req.Title = *b.Title
	}

	if b.Time != nil {
		req.Time = *b.Time
	}

	if b.Price != nil {
		req.Price = *b.Price
	}

	if b.Link != nil {
		req.Link = *b.Link
	}

	if b.Tag != nil {
		req.TagIDs = *b.Tag
	}

	if b.Ingredient != nil {
		req.IngredientIDs = *b.Ingredient
	}

	rec, err := s.catalogService.CreateRecipe(r.Context(), userFromContext(r.Context()), req)
	if err != nil {
		handleError(w, err, statusFor(err))

		return
	}

	writeJSON(w, http.StatusCreated, recipeSummary(rec))
}

// Получение рецепта c развернутыми связями
// (GET /recipes/{id}).
func (s *Server) getRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := recipeID(r)
	if err != nil {
		handleError(w, catalogservice.ErrNotFound, http.StatusNotFound)

		return
	}

	rec, err := s.catalogService.GetRecipe(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		handleError(w, err, statusFor(err))

		return
	}

	writeJSON(w, http.StatusOK, recipeDetail(rec))
}

// Частичное обновление рецепта
// (PATCH /recipes/{id}).
func (s *Server) patchRecipe(w http.ResponseWriter, r *http.Request) {
	s.updateRecipe(w, r, true)
}

// Полное обновление рецепта
// (PUT /recipes/{id}).
func (s *Server) putRecipe(w http.ResponseWriter, r *http.Request) {
	s.updateRecipe(w, r, false)
}

func (s *Server) updateRecipe(w http.ResponseWriter, r *http.Request, partial bool) {
	id, err := recipeID(r)
	if err != nil {
		handleError(w, catalogservice.ErrNotFound, http.StatusNotFound)

		return
	}

	var b recipeBody

	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(&b); err != nil {
		handleError(w, fmt.Errorf("decode error: %w", err), http.StatusBadRequest)

		return
	}

	req := catalogservice.UpdateRecipeRequest{
		ID:            id,
		Title:         b.Title,
		Time:          b.Time,
		Price:         b.Price,
		Link:          b.Link,
		TagIDs:        b.Tag,
		IngredientIDs: b.Ingredient,
		Partial:       partial,
	}

	rec, err := s.catalogService.UpdateRecipe(r.Context(), userFromContext(r.Context()), req)
	if err != nil {
		handleError(w, err, statusFor(err))

		return
	}

	writeJSON(w, http.StatusOK, recipeSummary(rec))
}

// Загрузка изображения рецепта
// (POST /recipes/{id}/upload-image).
func (s *Server) uploadRecipeImage(w http.ResponseWriter, r *http.Request) {
	id, err := recipeID(r)
	if err != nil {
		handleError(w, catalogservice.ErrNotFound, http.StatusNotFound)

		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageUploadBytes)

	file, header, err := r.FormFile("image")
	if err != nil {
		handleError(w, models.Invalid("image", "multipart image field is required"), http.StatusBadRequest)

		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		handleError(w, fmt.Errorf("read image error: %w", err), http.StatusBadRequest)

		return
	}

	rec, err := s.catalogService.UploadRecipeImage(r.Context(), userFromContext(r.Context()), id, header.Filename, data)
	if err != nil {
		handleError(w, err, statusFor(err))

		return
	}

	writeJSON(w, http.StatusOK, recipeImage(rec))
}

func recipeID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "recipeID"), 10, 64)
}

func parseIDList(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))

	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse id error: %w", err)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	enc := json.NewEncoder(w)

	enc.Encode(payload) //nolint:errcheck
}
