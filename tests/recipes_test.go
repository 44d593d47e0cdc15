package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"testing"
	"time"

	"github.com/Leopold1975/recipe_catalog/internal/pkg/config"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/api/server"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/app"

	"github.com/stretchr/testify/suite"
)

type RecipeSuite struct {
	suite.Suite
	app     app.RecipesApp
	cancel  context.CancelFunc
	client  *http.Client
	baseURL string
}

func (rs *RecipeSuite) SetupSuite() {
	// goose resolves ./migrations from the working directory,
	// so the whole suite runs from the repo root.
	if err := os.Chdir(".."); err != nil {
		rs.T().Fatalf("cannot chdir to repo root error: %v", err)
	}

	cmd := exec.Command("docker", "compose", "-f", "./tests/test-compose.yaml", "up", "-d")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		rs.T().Fatalf("cannot start docker compose error: %v", err)
	}

	cfg, err := config.New("tests/config_test.yaml")
	if err != nil {
		rs.T().Fatalf("cannot get config error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())

	a, err := app.New(ctx, cfg)
	if err != nil {
		cancel()
		rs.T().Fatalf("cannot get app error: %v", err)
	}

	rs.app = a
	rs.cancel = cancel
	rs.client = &http.Client{Timeout: time.Second * 5}
	rs.baseURL = "http://" + cfg.Server.Addr + "/v1"

	go a.Run(ctx)
	time.Sleep(time.Second * 2) // Время для запуска сервера и баз данных.
}

func (rs *RecipeSuite) TearDownSuite() {
	rs.cancel()

	cmd := exec.Command("docker", "compose", "-f", "./tests/test-compose.yaml", "down", "-v")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		rs.T().Fatalf("cannot down docker containers error: %v", err)
	}

	os.RemoveAll("./tests/data")
}

func (rs *RecipeSuite) doJSON(method, path, token string, body interface{}) *http.Response {
	rs.T().Helper()

	var rd io.Reader

	if body != nil {
		b, err := json.Marshal(body)
		rs.Require().NoError(err)

		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, rs.baseURL+path, rd)
	rs.Require().NoError(err)

	req.Header.Set("Content-Type", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := rs.client.Do(req)
	rs.Require().NoError(err)

	return resp
}

func (rs *RecipeSuite) decode(resp *http.Response, dst interface{}) {
	rs.T().Helper()

	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	rs.Require().NoError(dec.Decode(dst))
}

func (rs *RecipeSuite) register(email, name, password string) server.UserResponse {
	rs.T().Helper()

	resp := rs.doJSON(http.MethodPost, "/users", "", map[string]string{
		"email":    email,
		"name":     name,
		"password": password,
	})
	rs.Require().Equal(http.StatusCreated, resp.StatusCode)

	var u server.UserResponse
	rs.decode(resp, &u)

	return u
}

func (rs *RecipeSuite) login(email, password string) string {
	rs.T().Helper()

	resp := rs.doJSON(http.MethodPost, "/users/token", "", map[string]string{
		"email":    email,
		"password": password,
	})
	rs.Require().Equal(http.StatusOK, resp.StatusCode)

	var tok server.AuthTokenResponse
	rs.decode(resp, &tok)
	rs.Require().NotEmpty(tok.Token)

	return tok.Token
}

func (rs *RecipeSuite) createTag(token, name string) int64 {
	rs.T().Helper()

	resp := rs.doJSON(http.MethodPost, "/tags", token, map[string]string{"name": name})
	rs.Require().Equal(http.StatusCreated, resp.StatusCode)

	var t struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	rs.decode(resp, &t)

	return t.ID
}

func (rs *RecipeSuite) createIngredient(token, name string) int64 {
	rs.T().Helper()

	resp := rs.doJSON(http.MethodPost, "/ingredients", token, map[string]string{"name": name})
	rs.Require().Equal(http.StatusCreated, resp.StatusCode)

	var ing struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	rs.decode(resp, &ing)

	return ing.ID
}

func (rs *RecipeSuite) createRecipe(token string, body map[string]interface{}) server.RecipeSummaryResponse {
	rs.T().Helper()

	resp := rs.doJSON(http.MethodPost, "/recipes", token, body)
	rs.Require().Equal(http.StatusCreated, resp.StatusCode)

	var r server.RecipeSummaryResponse
	rs.decode(resp, &r)

	return r
}

func (rs *RecipeSuite) listRecipes(token, query string) []server.RecipeSummaryResponse {
	rs.T().Helper()

	resp := rs.doJSON(http.MethodGet, "/recipes"+query, token, nil)
	rs.Require().Equal(http.StatusOK, resp.StatusCode)

	var list []server.RecipeSummaryResponse
	rs.decode(resp, &list)

	return list
}

func (rs *RecipeSuite) TestAuthFlow() {
	u := rs.register("Reader@Example.COM", "Reader", "readerpass")
	rs.Require().Equal("reader@example.com", u.Email)
	rs.Require().Equal("Reader", u.Name)

	// повторная регистрация с тем же email
	resp := rs.doJSON(http.MethodPost, "/users", "", map[string]string{
		"email":    "reader@example.com",
		"password": "readerpass",
	})
	rs.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// неверный пароль
	resp = rs.doJSON(http.MethodPost, "/users/token", "", map[string]string{
		"email":    "reader@example.com",
		"password": "wrongpass",
	})
	rs.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	token := rs.login("reader@example.com", "readerpass")

	// пока токен жив, повторный логин возвращает его же
	again := rs.login("reader@example.com", "readerpass")
	rs.Require().Equal(token, again)

	resp = rs.doJSON(http.MethodGet, "/users/me", token, nil)
	rs.Require().Equal(http.StatusOK, resp.StatusCode)

	var me server.UserResponse
	rs.decode(resp, &me)
	rs.Require().Equal("reader@example.com", me.Email)

	resp = rs.doJSON(http.MethodPatch, "/users/me", token, map[string]string{"name": "Renamed Reader"})
	rs.Require().Equal(http.StatusOK, resp.StatusCode)

	rs.decode(resp, &me)
	rs.Require().Equal("Renamed Reader", me.Name)

	// без токена доступа нет
	resp = rs.doJSON(http.MethodGet, "/tags", "", nil)
	rs.Require().Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = rs.doJSON(http.MethodGet, "/recipes", "bad-token", nil)
	rs.Require().Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func (rs *RecipeSuite) TestCatalogFlow() {
	rs.register("cook@example.com", "Cook", "cookpass")
	token := rs.login("cook@example.com", "cookpass")

	veganID := rs.createTag(token, "Vegan")
	dessertID := rs.createTag(token, "Dessert")
	saltID := rs.createIngredient(token, "Salt")
	beetID := rs.createIngredient(token, "Beet")

	// теги сортируются по имени в обратном порядке
	resp := rs.doJSON(http.MethodGet, "/tags", token, nil)
	rs.Require().Equal(http.StatusOK, resp.StatusCode)

	var tags []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	rs.decode(resp, &tags)
	rs.Require().Len(tags, 2)
	rs.Require().Equal("Vegan", tags[0].Name)
	rs.Require().Equal("Dessert", tags[1].Name)

	borscht := rs.createRecipe(token, map[string]interface{}{
		"title":      "Borscht",
		"time":       45,
		"price":      "12.50",
		"link":       "https://example.com/borscht",
		"tag":        []int64{veganID},
		"ingredient": []int64{saltID, beetID},
	})
	rs.Require().Equal("12.50", borscht.Price)
	rs.Require().Equal([]int64{veganID}, borscht.Tag)

	cake := rs.createRecipe(token, map[string]interface{}{
		"title": "Cake",
		"time":  90,
		"price": "20.00",
		"tag":   []int64{dessertID},
	})

	// чужие id связей отклоняются
	resp = rs.doJSON(http.MethodPost, "/recipes", token, map[string]interface{}{
		"title": "Bad",
		"time":  5,
		"price": "1.00",
		"tag":   []int64{veganID + 1000},
	})
	rs.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	list := rs.listRecipes(token, "")
	rs.Require().Len(list, 2)

	filtered := rs.listRecipes(token, "?tag="+itoa(veganID))
	rs.Require().Len(filtered, 1)
	rs.Require().Equal(borscht.ID, filtered[0].ID)

	filtered = rs.listRecipes(token, "?ingredient="+itoa(beetID))
	rs.Require().Len(filtered, 1)
	rs.Require().Equal(borscht.ID, filtered[0].ID)

	// детальное представление разворачивает связи
	resp = rs.doJSON(http.MethodGet, "/recipes/"+itoa(borscht.ID), token, nil)
	rs.Require().Equal(http.StatusOK, resp.StatusCode)

	var detail server.RecipeDetailResponse
	rs.decode(resp, &detail)
	rs.Require().Len(detail.Tag, 1)
	rs.Require().Equal("Vegan", detail.Tag[0].Name)
	rs.Require().Len(detail.Ingredient, 2)

	// PATCH не трогает отсутствующие поля
	resp = rs.doJSON(http.MethodPatch, "/recipes/"+itoa(borscht.ID), token,
		map[string]interface{}{"title": "Green borscht"})
	rs.Require().Equal(http.StatusOK, resp.StatusCode)

	var updated server.RecipeSummaryResponse
	rs.decode(resp, &updated)
	rs.Require().Equal("Green borscht", updated.Title)
	rs.Require().Equal(45, updated.Time)
	rs.Require().Equal([]int64{veganID}, updated.Tag)

	// PUT очищает связи, которых нет в теле
	resp = rs.doJSON(http.MethodPut, "/recipes/"+itoa(borscht.ID), token, map[string]interface{}{
		"title": "Plain borscht",
		"time":  40,
		"price": "11.00",
	})
	rs.Require().Equal(http.StatusOK, resp.StatusCode)

	rs.decode(resp, &updated)
	rs.Require().Equal("Plain borscht", updated.Title)
	rs.Require().Empty(updated.Tag)
	rs.Require().Empty(updated.Ingredient)
	rs.Require().Empty(updated.Link)

	// после очистки связей фильтр assigned_only оставляет только Dessert
	resp = rs.doJSON(http.MethodGet, "/tags?assigned_only=1", token, nil)
	rs.Require().Equal(http.StatusOK, resp.StatusCode)

	rs.decode(resp, &tags)
	rs.Require().Len(tags, 1)
	rs.Require().Equal("Dessert", tags[0].Name)

	rs.uploadImageScenario(token, cake.ID)
	rs.isolationScenario(borscht.ID)
}

func (rs *RecipeSuite) TestTagSetReplacement() {
	rs.register("baker@example.com", "Baker", "bakerpass")
	token := rs.login("baker@example.com", "bakerpass")

	breakfastID := rs.createTag(token, "Breakfast")
	quickID := rs.createTag(token, "Quick")

	pancakes := rs.createRecipe(token, map[string]interface{}{
		"title": "Pancakes",
		"time":  20,
		"price": "4.00",
		"tag":   []int64{breakfastID, quickID},
	})

	resp := rs.doJSON(http.MethodGet, "/recipes/"+itoa(pancakes.ID), token, nil)
	rs.Require().Equal(http.StatusOK, resp.StatusCode)

	var detail server.RecipeDetailResponse
	rs.decode(resp, &detail)
	rs.Require().Len(detail.Tag, 2)

	// PATCH с одним тегом заменяет весь набор
	resp = rs.doJSON(http.MethodPatch, "/recipes/"+itoa(pancakes.ID), token,
		map[string]interface{}{"tag": []int64{breakfastID}})
	rs.Require().Equal(http.StatusOK, resp.StatusCode)

	var updated server.RecipeSummaryResponse
	rs.decode(resp, &updated)
	rs.Require().Equal([]int64{breakfastID}, updated.Tag)

	resp = rs.doJSON(http.MethodGet, "/recipes/"+itoa(pancakes.ID), token, nil)
	rs.Require().Equal(http.StatusOK, resp.StatusCode)

	rs.decode(resp, &detail)
	rs.Require().Len(detail.Tag, 1)
	rs.Require().Equal("Breakfast", detail.Tag[0].Name)
	rs.Require().Equal(breakfastID, detail.Tag[0].ID)

	// тег на двух рецептах попадает в assigned_only один раз
	rs.createRecipe(token, map[string]interface{}{
		"title": "Omelette",
		"time":  10,
		"price": "3.00",
		"tag":   []int64{breakfastID},
	})

	resp = rs.doJSON(http.MethodGet, "/tags?assigned_only=1", token, nil)
	rs.Require().Equal(http.StatusOK, resp.StatusCode)

	var tags []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	rs.decode(resp, &tags)
	rs.Require().Len(tags, 1)
	rs.Require().Equal(breakfastID, tags[0].ID)
}

func (rs *RecipeSuite) uploadImageScenario(token string, recipeID int64) {
	rs.T().Helper()

	// не изображение
	resp := rs.uploadImage(token, recipeID, "notes.txt", []byte("not an image"))
	rs.Require().Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	var buf bytes.Buffer

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	rs.Require().NoError(png.Encode(&buf, img))

	resp = rs.uploadImage(token, recipeID, "photo.png", buf.Bytes())
	rs.Require().Equal(http.StatusOK, resp.StatusCode)

	var imgResp server.RecipeImageResponse
	rs.decode(resp, &imgResp)
	rs.Require().Equal(recipeID, imgResp.ID)
	rs.Require().NotEmpty(imgResp.Image)

	_, err := os.Stat("./tests/data/" + imgResp.Image)
	rs.Require().NoError(err)
}

func (rs *RecipeSuite) uploadImage(token string, recipeID int64, filename string, data []byte) *http.Response {
	rs.T().Helper()

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filename)
	rs.Require().NoError(err)

	_, err = fw.Write(data)
	rs.Require().NoError(err)
	rs.Require().NoError(mw.Close())

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		rs.baseURL+"/recipes/"+itoa(recipeID)+"/upload-image", &buf)
	rs.Require().NoError(err)

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := rs.client.Do(req)
	rs.Require().NoError(err)

	return resp
}

// isolationScenario checks that a second user sees none of the cook's
// catalog, and the cook's recipes are 404 for them.
func (rs *RecipeSuite) isolationScenario(recipeID int64) {
	rs.T().Helper()

	rs.register("guest@example.com", "Guest", "guestpass")
	token := rs.login("guest@example.com", "guestpass")

	rs.Require().Empty(rs.listRecipes(token, ""))

	resp := rs.doJSON(http.MethodGet, "/tags", token, nil)
	rs.Require().Equal(http.StatusOK, resp.StatusCode)

	var tags []struct {
		ID int64 `json:"id"`
	}
	rs.decode(resp, &tags)
	rs.Require().Empty(tags)

	resp = rs.doJSON(http.MethodGet, "/recipes/"+itoa(recipeID), token, nil)
	rs.Require().Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = rs.doJSON(http.MethodPatch, "/recipes/"+itoa(recipeID), token,
		map[string]interface{}{"title": "Hijacked"})
	rs.Require().Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestRecipeSuite(t *testing.T) {
	suite.Run(t, new(RecipeSuite))
}
