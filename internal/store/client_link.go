package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"closeout.app/engine/core/db"
	"closeout.app/engine/internal/model"
)

type clientLinkStore struct {
	q db.Querier
}

func newClientLinkStore(q db.Querier) ClientLinkStore {
	return &clientLinkStore{q: q}
}

func (s *clientLinkStore) GetByID(ctx context.Context, id int64) (*model.ClientLink, error) {
	var link model.ClientLink
	err := s.q.QueryRow(ctx, `
		SELECT id, channel_id, message_id, created_at
		FROM client_links
		WHERE id = $1`,
		id,
	).Scan(&link.ID, &link.ChannelID, &link.MessageID, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (s *clientLinkStore) Create(ctx context.Context, link *model.ClientLink) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO client_links (id, channel_id, message_id)
		VALUES ($1, $2, $3)`,
		link.ID, link.ChannelID, link.MessageID,
	)
	return err
}
