package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"closeout.app/engine/core/db"
)

type mappingStore struct {
	q db.Querier
}

func newMappingStore(q db.Querier) MappingStore {
	return &mappingStore{q: q}
}

func (s *mappingStore) ResolveCompany(ctx context.Context, projectKey string) (string, bool, error) {
	return s.resolve(ctx, `SELECT company_name FROM company_mappings WHERE project_key = $1`, projectKey)
}

func (s *mappingStore) ResolveWorker(ctx context.Context, trackerUsername string) (string, bool, error) {
	return s.resolve(ctx, `SELECT display_name FROM worker_mappings WHERE tracker_username = $1`, trackerUsername)
}

func (s *mappingStore) ResolveOperator(ctx context.Context, email string) (string, bool, error) {
	return s.resolve(ctx, `SELECT chat_user_id FROM operator_mappings WHERE email = $1`, email)
}

func (s *mappingStore) SetCompanyMapping(ctx context.Context, projectKey, companyName string) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO company_mappings (project_key, company_name)
		VALUES ($1, $2)
		ON CONFLICT (project_key) DO UPDATE SET company_name = EXCLUDED.company_name`,
		projectKey, companyName,
	)
	return err
}

func (s *mappingStore) SetWorkerMapping(ctx context.Context, trackerUsername, displayName string) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO worker_mappings (tracker_username, display_name)
		VALUES ($1, $2)
		ON CONFLICT (tracker_username) DO UPDATE SET display_name = EXCLUDED.display_name`,
		trackerUsername, displayName,
	)
	return err
}

func (s *mappingStore) SetOperatorMapping(ctx context.Context, email, chatUserID string) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO operator_mappings (email, chat_user_id)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET chat_user_id = EXCLUDED.chat_user_id`,
		email, chatUserID,
	)
	return err
}

func (s *mappingStore) resolve(ctx context.Context, query, key string) (string, bool, error) {
	var value string
	err := s.q.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}
