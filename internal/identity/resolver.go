package identity

import (
	"context"
	"log/slog"

	"reconcile-service/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Directory resolves payer login handles to local accounts.
type Directory struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewDirectory(pool *pgxpool.Pool, logger *slog.Logger) *Directory {
	return &Directory{pool: pool, logger: logger}
}

// ResolveAccountByLogin looks a login up in the user directory. An unknown
// login is not an error: the zero Account is returned and the caller treats
// the event as having no candidates.
func (d *Directory) ResolveAccountByLogin(ctx context.Context, login string) (model.Account, error) {
	if login == "" {
		return model.Account{}, nil
	}

	query := `SELECT id, login, external_id FROM user_account WHERE login = $1`
	row := d.pool.QueryRow(ctx, query, login)

	var account model.Account
	err := row.Scan(&account.ID, &account.Login, &account.ExternalID)
	if errors.Is(err, pgx.ErrNoRows) {
		d.logger.InfoContext(ctx, "No account for payer login", "login", login)
		return model.Account{}, nil
	}
	if err != nil {
		return model.Account{}, errors.Wrap(err, "resolving account by login")
	}

	return account, nil
}
