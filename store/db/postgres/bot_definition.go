package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/bothub-it/bothub-nlp/store"
)

func (d *DB) CreateBotDefinition(ctx context.Context, create *store.BotDefinition) (*store.BotDefinition, error) {
	now := time.Now().Unix()
	create.CreatedTs = now
	create.UpdatedTs = now

	stmt := `
		INSERT INTO bot_definition (session_key, language, definition, created_ts, updated_ts)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.SessionKey, create.Language, create.Definition, create.CreatedTs, create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create bot definition")
	}
	return create, nil
}

func (d *DB) ListBotDefinitions(ctx context.Context, find *store.FindBotDefinition) ([]*store.BotDefinition, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		args = append(args, *v)
		where = append(where, fmt.Sprintf("id = $%d", len(args)))
	}
	if v := find.SessionKey; v != nil {
		args = append(args, *v)
		where = append(where, fmt.Sprintf("session_key = $%d", len(args)))
	}

	query := `
		SELECT id, session_key, language, definition, created_ts, updated_ts
		FROM bot_definition
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC
	`
	if v := find.Limit; v != nil {
		args = append(args, *v)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list bot definitions")
	}
	defer rows.Close()

	list := []*store.BotDefinition{}
	for rows.Next() {
		var def store.BotDefinition
		if err := rows.Scan(&def.ID, &def.SessionKey, &def.Language, &def.Definition, &def.CreatedTs, &def.UpdatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan bot definition")
		}
		list = append(list, &def)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate bot definitions")
	}
	return list, nil
}

func (d *DB) DeleteBotDefinition(ctx context.Context, delete *store.DeleteBotDefinition) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM bot_definition WHERE session_key = $1", delete.SessionKey); err != nil {
		return errors.Wrap(err, "failed to delete bot definition")
	}
	return nil
}
