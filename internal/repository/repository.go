package repository

import (
	"context"
	"errors"

	"github.com/akudrin/ipkeeper/internal/models"
)

// ErrDuplicate is returned by Insert when the owner already has a record
// with the same literal value.
var ErrDuplicate = errors.New("value already stored for this user")

// Store is the persistent collection of address records. List and scan span
// all owners; existence, insert and delete are owner-scoped.
type Store interface {
	Exists(ctx context.Context, ownerID, value string) (bool, error)
	Insert(ctx context.Context, ownerID, value string, isCIDR bool) (int64, error)
	DeleteByValue(ctx context.Context, ownerID, value string) (int64, error)
	Page(ctx context.Context, offset, limit int) ([]models.AddressRecord, error)
	ScanAll(ctx context.Context) ([]models.AddressRecord, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
