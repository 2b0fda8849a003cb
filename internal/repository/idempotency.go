package repository

import (
	"context"
	"fmt"
)

// IdempotencyKeyRow mirrors the idempotency_keys table.
type IdempotencyKeyRow struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	InProgress     bool
}

func (q *Queries) GetIdempotencyKey(ctx context.Context, key string) (IdempotencyKeyRow, error) {
	var r IdempotencyKeyRow
	err := q.db.QueryRow(ctx, `
		SELECT idempotency_key, request_hash, method, path, response_status,
			COALESCE(response_body, ''::bytea), content_type, in_progress
		FROM idempotency_keys
		WHERE idempotency_key = $1
	`, key).Scan(&r.IdempotencyKey, &r.RequestHash, &r.Method, &r.Path, &r.ResponseStatus, &r.ResponseBody, &r.ContentType, &r.InProgress)
	if err != nil {
		return IdempotencyKeyRow{}, fmt.Errorf("get idempotency key: %w", err)
	}
	return r, nil
}

// ReserveIdempotencyKey claims key for an in-flight request. It returns pgx.ErrNoRows
// when the key is already taken.
func (q *Queries) ReserveIdempotencyKey(ctx context.Context, key, requestHash, method, path string) (IdempotencyKeyRow, error) {
	r := IdempotencyKeyRow{IdempotencyKey: key, RequestHash: requestHash, Method: method, Path: path, InProgress: true}
	err := q.db.QueryRow(ctx, `
		INSERT INTO idempotency_keys (idempotency_key, request_hash, method, path)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING created_at IS NOT NULL
	`, key, requestHash, method, path).Scan(new(bool))
	if err != nil {
		return IdempotencyKeyRow{}, err
	}
	return r, nil
}

// FinalizeIdempotencyKey stores the response of a reserved key. It returns
// pgx.ErrNoRows when no matching in-flight reservation exists.
func (q *Queries) FinalizeIdempotencyKey(ctx context.Context, key, requestHash string, status int32, body []byte, contentType string) (IdempotencyKeyRow, error) {
	var r IdempotencyKeyRow
	err := q.db.QueryRow(ctx, `
		UPDATE idempotency_keys
		SET response_status = $1, response_body = $2, content_type = $3, in_progress = FALSE, updated_at = NOW()
		WHERE idempotency_key = $4 AND request_hash = $5 AND in_progress
		RETURNING idempotency_key, request_hash, method, path, response_status, response_body, content_type, in_progress
	`, status, body, contentType, key, requestHash).Scan(&r.IdempotencyKey, &r.RequestHash, &r.Method, &r.Path, &r.ResponseStatus, &r.ResponseBody, &r.ContentType, &r.InProgress)
	if err != nil {
		return IdempotencyKeyRow{}, err
	}
	return r, nil
}

// ReleaseIdempotencyKey drops an in-flight reservation so the request can be retried.
func (q *Queries) ReleaseIdempotencyKey(ctx context.Context, key, requestHash string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE idempotency_key = $1 AND request_hash = $2 AND in_progress`, key, requestHash)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
