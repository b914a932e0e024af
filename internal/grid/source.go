package grid

import (
	"context"

	"github.com/springfield-ops/townctl/internal/api"
)

// Record is a directory row identified by email.
type Record interface {
	Key() string
}

// Source is a user directory the grid can browse and edit.
type Source[T Record] interface {
	Name() string
	Fields() []string
	Search(ctx context.Context, field, term string) ([]T, error)
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, email string) (*T, error)
	Update(ctx context.Context, rec T) error
	Delete(ctx context.Context, email string) error
}

// GameDirectory is the game server's account directory.
type GameDirectory struct{ API *api.Client }

func (GameDirectory) Name() string     { return "users" }
func (GameDirectory) Fields() []string { return api.SearchFields }

func (d GameDirectory) Search(ctx context.Context, field, term string) ([]api.User, error) {
	return d.API.SearchUsers(ctx, field, term)
}

func (d GameDirectory) List(ctx context.Context) ([]api.User, error) { return d.API.ListUsers(ctx) }

func (d GameDirectory) Get(ctx context.Context, email string) (*api.User, error) {
	return d.API.GetUser(ctx, email)
}

func (d GameDirectory) Update(ctx context.Context, u api.User) error { return d.API.UpdateUser(ctx, u) }

func (d GameDirectory) Delete(ctx context.Context, email string) error {
	return d.API.DeleteUser(ctx, email)
}

// PublicDirectory is the self-service account directory.
type PublicDirectory struct{ API *api.Client }

func (PublicDirectory) Name() string     { return "public users" }
func (PublicDirectory) Fields() []string { return api.PublicSearchFields }

func (d PublicDirectory) Search(ctx context.Context, field, term string) ([]api.PublicUser, error) {
	return d.API.SearchPublicUsers(ctx, field, term)
}

func (d PublicDirectory) List(ctx context.Context) ([]api.PublicUser, error) {
	return d.API.ListPublicUsers(ctx)
}

func (d PublicDirectory) Get(ctx context.Context, email string) (*api.PublicUser, error) {
	return d.API.GetPublicUser(ctx, email)
}

func (d PublicDirectory) Update(ctx context.Context, u api.PublicUser) error {
	return d.API.UpdatePublicUser(ctx, u)
}

func (d PublicDirectory) Delete(ctx context.Context, email string) error {
	return d.API.DeletePublicUser(ctx, email)
}
