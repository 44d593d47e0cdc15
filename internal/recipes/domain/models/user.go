package models

type User struct {
	ID           int64  `json:"user_id"` //nolint:tagliatelle
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
	Active       bool   `json:"is_active"`    //nolint:tagliatelle
	Staff        bool   `json:"is_staff"`     //nolint:tagliatelle
	Superuser    bool   `json:"is_superuser"` //nolint:tagliatelle
}
