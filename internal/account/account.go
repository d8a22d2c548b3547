// Package account loads the enrolled accounts and their reference pictures.
package account

import (
	"context"
	"errors"
)

// ErrAccountNotFound is returned when no account has the requested ID.
var ErrAccountNotFound = errors.New("account not found")

// ErrPictureNotFound is returned when an account's reference picture is missing.
var ErrPictureNotFound = errors.New("reference picture not found")

// Account is an enrolled identity with its reference profile picture.
type Account struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Picture string `yaml:"picture" json:"picture"` // file name inside the pictures directory
}

// Store provides read access to enrolled accounts.
type Store interface {
	// List returns all accounts sorted by ID.
	List(ctx context.Context) ([]Account, error)
	// Get returns the account with the given ID or ErrAccountNotFound.
	Get(ctx context.Context, id string) (*Account, error)
	// Picture returns the raw bytes of the account's reference picture.
	Picture(ctx context.Context, acc *Account) ([]byte, error)
}

// Enroller adds accounts to a store.
type Enroller interface {
	Store
	// Enroll stores the account and its reference picture, replacing any
	// existing account with the same ID.
	Enroll(ctx context.Context, acc Account, picture []byte) error
}
