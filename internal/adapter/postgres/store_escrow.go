package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Dexploarer/ghostspeak-go/internal/domain/escrow"
)

const escrowColumns = `address, escrow_id, buyer, provider, amount, held, released_amount, refunded_amount,
	description_hash, deadline, status, delivery_proof, delivered_at, dispute_reason, version, created_at, updated_at`

func (s *Store) CreateEscrow(ctx context.Context, e *escrow.Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO escrows (`+escrowColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		e.Address, e.ID, e.Buyer, e.Provider, e.Amount, e.Held, e.ReleasedAmount, e.RefundedAmount,
		e.DescriptionHash, e.Deadline, string(e.Status), e.DeliveryProof, nullTime(e.DeliveredAt),
		e.DisputeReason, e.Version, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return conflictWrap(err, "create escrow %s", e.ID)
	}
	return nil
}

func (s *Store) GetEscrow(ctx context.Context, address string) (*escrow.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+escrowColumns+` FROM escrows WHERE address = $1`, address)

	e, err := scanEscrow(row)
	if err != nil {
		return nil, notFoundWrap(err, "get escrow %s", address)
	}
	return &e, nil
}

func (s *Store) ListEscrowsByParticipant(ctx context.Context, participant string) ([]escrow.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+escrowColumns+` FROM escrows
		 WHERE buyer = $1 OR provider = $1 ORDER BY created_at DESC`, participant)
	if err != nil {
		return nil, fmt.Errorf("list escrows for %s: %w", participant, err)
	}
	defer rows.Close()

	var records []escrow.Record
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, e)
	}
	return records, rows.Err()
}

func (s *Store) UpdateEscrow(ctx context.Context, e *escrow.Record) error {
	return updateEscrow(ctx, s.pool, e)
}

func updateEscrow(ctx context.Context, q querier, e *escrow.Record) error {
	tag, err := q.Exec(ctx,
		`UPDATE escrows SET held = $2, released_amount = $3, refunded_amount = $4,
		        status = $5, delivery_proof = $6, delivered_at = $7, dispute_reason = $8,
		        version = version + 1, updated_at = $9
		 WHERE address = $1 AND version = $10`,
		e.Address, e.Held, e.ReleasedAmount, e.RefundedAmount, string(e.Status),
		e.DeliveryProof, nullTime(e.DeliveredAt), e.DisputeReason, e.UpdatedAt, e.Version)
	if err := execExpectVersioned(tag, err, "update escrow %s", e.ID); err != nil {
		return err
	}
	e.Version++
	return nil
}

func scanEscrow(row scannable) (escrow.Record, error) {
	var (
		e           escrow.Record
		status      string
		deliveredAt *time.Time
	)
	err := row.Scan(&e.Address, &e.ID, &e.Buyer, &e.Provider, &e.Amount, &e.Held,
		&e.ReleasedAmount, &e.RefundedAmount, &e.DescriptionHash, &e.Deadline,
		&status, &e.DeliveryProof, &deliveredAt, &e.DisputeReason, &e.Version,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return e, err
	}
	e.Status = escrow.Status(status)
	e.DeliveredAt = timeOrZero(deliveredAt)
	return e, nil
}
