package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ligarius/ams-sub001/internal/auth/store"
)

// txStore is a transaction-scoped store. Its repos run against the *sql.Tx.
type txStore struct {
	tx   *sql.Tx
	done bool
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Users() store.Users                 { return &usersRepo{q: t.tx} }
func (t *txStore) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{q: t.tx} }

func (t *txStore) Commit() error {
	t.done = true
	return t.tx.Commit()
}

func (t *txStore) Rollback() error {
	if t.done {
		return nil
	}
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// Nested transactions are a usage error; sqlite has no sane semantics for
// them through database/sql.
func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	return nil, errors.New("sqlite: nested transactions are not supported")
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return errors.New("sqlite: nested transactions are not supported")
}

func (t *txStore) ApplyMigrations() error {
	return errors.New("sqlite: cannot migrate inside a transaction")
}

func (t *txStore) Close() error { return t.Rollback() }

func (t *txStore) Ping(ctx context.Context) error { return nil }
