package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes a function within a database transaction,
// passing the underlying handle via `tx`. Keeps use-case interfaces clean of
// transaction types; repositories accept the opaque handle and detect a tx
// implementation-side (e.g. pgx.Tx for Postgres). Repositories MUST accept a
// nil handle for the non-transactional path.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
