package authservice_test

import (
	"context"
	"testing"
	"time"

	"github.com/Leopold1975/recipe_catalog/internal/pkg/config"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/domain/models"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/repository/tokenrepo"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/repository/userrepo"
	"github.com/Leopold1975/recipe_catalog/internal/recipes/services/authservice"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	users  map[int64]models.User
	nextID int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]models.User), nextID: 1}
}

func (r *fakeUserRepo) CreateUser(_ context.Context, u models.User) (int64, error) {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return 0, userrepo.ErrAlreadyExists
		}
	}

	u.ID = r.nextID
	r.nextID++
	r.users[u.ID] = u

	return u.ID, nil
}

func (r *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}

	return models.User{}, userrepo.ErrNotFound
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, id int64) (models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return models.User{}, userrepo.ErrNotFound
	}

	return u, nil
}

func (r *fakeUserRepo) UpdateUser(_ context.Context, u models.User) error {
	if _, ok := r.users[u.ID]; !ok {
		return userrepo.ErrNotFound
	}

	for id, existing := range r.users {
		if id != u.ID && existing.Email == u.Email {
			return userrepo.ErrAlreadyExists
		}
	}

	r.users[u.ID] = u

	return nil
}

type fakeTokenStore struct {
	byToken map[string]int64
	byUser  map[int64]string
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{byToken: make(map[string]int64), byUser: make(map[int64]string)}
}

func (s *fakeTokenStore) Save(_ context.Context, token string, userID int64) error {
	s.byToken[token] = userID
	s.byUser[userID] = token

	return nil
}

func (s *fakeTokenStore) UserID(_ context.Context, token string) (int64, error) {
	id, ok := s.byToken[token]
	if !ok {
		return 0, tokenrepo.ErrNotFound
	}

	return id, nil
}

func (s *fakeTokenStore) TokenForUser(_ context.Context, userID int64) (string, error) {
	token, ok := s.byUser[userID]
	if !ok {
		return "", tokenrepo.ErrNotFound
	}

	return token, nil
}

func newService() (*authservice.AuthService, *fakeUserRepo, *fakeTokenStore) {
	repo := newFakeUserRepo()
	tokens := newFakeTokenStore()
	cfg := config.Auth{TTL: time.Hour, Secret: "test secret"}

	return authservice.New(repo, tokens, cfg), repo, tokens
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	as, repo, _ := newService()

	u, err := as.Register(ctx, authservice.RegisterUserRequest{
		Email:    "  User@Example.COM ",
		Name:     "Test User",
		Password: "testpass",
	})
	require.NoError(t, err)

	require.Equal(t, "user@example.com", u.Email)
	require.Equal(t, "Test User", u.Name)
	require.True(t, u.Active)
	require.False(t, u.Staff)
	require.False(t, u.Superuser)
	require.NotZero(t, u.ID)

	stored := repo.users[u.ID]
	require.NotEqual(t, "testpass", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("testpass")))
}

func TestRegisterShortPassword(t *testing.T) {
	as, _, _ := newService()

	_, err := as.Register(context.Background(), authservice.RegisterUserRequest{
		Email:    "user@example.com",
		Password: "pw",
	})

	var vErr models.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "password", vErr.Field)
}

func TestRegisterEmptyEmail(t *testing.T) {
	as, _, _ := newService()

	_, err := as.Register(context.Background(), authservice.RegisterUserRequest{
		Email:    "   ",
		Password: "testpass",
	})

	var vErr models.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "email", vErr.Field)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	as, _, _ := newService()

	req := authservice.RegisterUserRequest{Email: "user@example.com", Password: "testpass"}

	_, err := as.Register(ctx, req)
	require.NoError(t, err)

	req.Email = "USER@example.com"

	_, err = as.Register(ctx, req)

	var vErr models.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "email", vErr.Field)
}

func TestRegisterSuperuser(t *testing.T) {
	as, _, _ := newService()

	u, err := as.RegisterSuperuser(context.Background(), authservice.RegisterUserRequest{
		Email:    "admin@example.com",
		Password: "adminpass",
	})
	require.NoError(t, err)
	require.True(t, u.Staff)
	require.True(t, u.Superuser)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	as, _, tokens := newService()

	u, err := as.Register(ctx, authservice.RegisterUserRequest{
		Email:    "user@example.com",
		Password: "testpass",
	})
	require.NoError(t, err)

	token, err := as.Login(ctx, "User@Example.com", "testpass")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, u.ID, tokens.byToken[token])

	// the binding is still alive, so the same token comes back
	again, err := as.Login(ctx, "user@example.com", "testpass")
	require.NoError(t, err)
	require.Equal(t, token, again)
}

func TestLoginWrongPassword(t *testing.T) {
	ctx := context.Background()
	as, _, _ := newService()

	_, err := as.Register(ctx, authservice.RegisterUserRequest{
		Email:    "user@example.com",
		Password: "testpass",
	})
	require.NoError(t, err)

	_, err = as.Login(ctx, "user@example.com", "wrongpass")
	require.ErrorIs(t, err, authservice.ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	as, _, _ := newService()

	_, err := as.Login(context.Background(), "nobody@example.com", "testpass")
	require.ErrorIs(t, err, authservice.ErrInvalidCredentials)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	as, _, _ := newService()

	u, err := as.Register(ctx, authservice.RegisterUserRequest{
		Email:    "user@example.com",
		Password: "testpass",
	})
	require.NoError(t, err)

	token, err := as.Login(ctx, "user@example.com", "testpass")
	require.NoError(t, err)

	got, err := as.Authenticate(ctx, token)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, u.Email, got.Email)
}

func TestAuthenticateUnboundToken(t *testing.T) {
	ctx := context.Background()
	as, _, tokens := newService()

	_, err := as.Register(ctx, authservice.RegisterUserRequest{
		Email:    "user@example.com",
		Password: "testpass",
	})
	require.NoError(t, err)

	token, err := as.Login(ctx, "user@example.com", "testpass")
	require.NoError(t, err)

	// a valid signature alone is not enough once the binding is gone
	delete(tokens.byToken, token)

	_, err = as.Authenticate(ctx, token)
	require.ErrorIs(t, err, authservice.ErrUnauthenticated)
}

func TestAuthenticateGarbageToken(t *testing.T) {
	as, _, _ := newService()

	_, err := as.Authenticate(context.Background(), "not-a-token")
	require.ErrorIs(t, err, authservice.ErrUnauthenticated)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	as, repo, _ := newService()

	u, err := as.Register(ctx, authservice.RegisterUserRequest{
		Email:    "user@example.com",
		Name:     "Old Name",
		Password: "testpass",
	})
	require.NoError(t, err)

	name := "New Name"

	updated, err := as.UpdateProfile(ctx, u, authservice.UpdateProfileRequest{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "New Name", updated.Name)
	require.Equal(t, "user@example.com", updated.Email)

	// the stored hash is untouched when password is absent
	require.NoError(t, bcrypt.CompareHashAndPassword(
		[]byte(repo.users[u.ID].PasswordHash), []byte("testpass")))
}

func TestUpdateProfilePassword(t *testing.T) {
	ctx := context.Background()
	as, repo, _ := newService()

	u, err := as.Register(ctx, authservice.RegisterUserRequest{
		Email:    "user@example.com",
		Password: "testpass",
	})
	require.NoError(t, err)

	password := "newpass"

	_, err = as.UpdateProfile(ctx, u, authservice.UpdateProfileRequest{Password: &password})
	require.NoError(t, err)

	require.NoError(t, bcrypt.CompareHashAndPassword(
		[]byte(repo.users[u.ID].PasswordHash), []byte("newpass")))

	_, err = as.Login(ctx, "user@example.com", "testpass")
	require.ErrorIs(t, err, authservice.ErrInvalidCredentials)
}

func TestUpdateProfileShortPassword(t *testing.T) {
	ctx := context.Background()
	as, _, _ := newService()

	u, err := as.Register(ctx, authservice.RegisterUserRequest{
		Email:    "user@example.com",
		Password: "testpass",
	})
	require.NoError(t, err)

	password := "pw"

	_, err = as.UpdateProfile(ctx, u, authservice.UpdateProfileRequest{Password: &password})

	var vErr models.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "password", vErr.Field)
}

func TestUpdateProfileTakenEmail(t *testing.T) {
	ctx := context.Background()
	as, _, _ := newService()

	_, err := as.Register(ctx, authservice.RegisterUserRequest{
		Email:    "first@example.com",
		Password: "testpass",
	})
	require.NoError(t, err)

	u, err := as.Register(ctx, authservice.RegisterUserRequest{
		Email:    "second@example.com",
		Password: "testpass",
	})
	require.NoError(t, err)

	email := "first@example.com"

	_, err = as.UpdateProfile(ctx, u, authservice.UpdateProfileRequest{Email: &email})

	var vErr models.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "email", vErr.Field)
}
