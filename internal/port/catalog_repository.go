package port

import (
	"context"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

type CatalogRepository interface {
	// ResolveMaterialName returns domain.ErrMaterialNotFound for unknown ids.
	ResolveMaterialName(ctx context.Context, id int64) (string, error)

	// ResolvePersonName returns domain.ErrPersonNotFound for unknown ids.
	ResolvePersonName(ctx context.Context, id int64) (string, error)

	CreateMaterial(ctx context.Context, name string) (domain.Material, error)
	ListMaterials(ctx context.Context) ([]domain.Material, error)
	DeleteMaterial(ctx context.Context, id int64) error

	CreatePerson(ctx context.Context, name string) (domain.Person, error)
	ListPersons(ctx context.Context) ([]domain.Person, error)
	DeletePerson(ctx context.Context, id int64) error
}
