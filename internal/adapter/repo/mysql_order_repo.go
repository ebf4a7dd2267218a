package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

type MySQLOrderRepo struct{ db *sql.DB }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

const orderColumns = `
id, client_id, items_json, subtotal_sats, shipping_sats, total_sats,
payment_method, status, provider, provider_status,
payment_request, payment_hash, invoice_sats, checkout_link,
swap_id, onchain_address, onchain_amount_sats, onchain_uri,
timeout_block_height, onchain_expires_at, onchain_txid, created_at`

func (r *MySQLOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	var (
		payReq, payHash, checkout  sql.NullString
		invoiceSats                sql.NullInt64
		swapID, address, uri, txid sql.NullString
		amountSats, timeoutHeight  sql.NullInt64
		expiresAt                  sql.NullTime
	)
	if inv := o.Invoice; inv != nil {
		payReq = sql.NullString{String: inv.PaymentRequest, Valid: true}
		payHash = sql.NullString{String: inv.PaymentHash, Valid: true}
		invoiceSats = sql.NullInt64{Int64: int64(inv.Satoshis), Valid: true}
		checkout = sql.NullString{String: inv.CheckoutLink, Valid: inv.CheckoutLink != ""}
	}
	if oc := o.Onchain; oc != nil {
		swapID = sql.NullString{String: oc.SwapID, Valid: oc.SwapID != ""}
		address = sql.NullString{String: oc.Address, Valid: oc.Address != ""}
		amountSats = sql.NullInt64{Int64: int64(oc.AmountSats), Valid: true}
		uri = sql.NullString{String: oc.URI, Valid: oc.URI != ""}
		timeoutHeight = sql.NullInt64{Int64: oc.TimeoutBlockHeight, Valid: oc.TimeoutBlockHeight != 0}
		expiresAt = sql.NullTime{Time: oc.ExpiresAt, Valid: !oc.ExpiresAt.IsZero()}
		txid = sql.NullString{String: oc.Txid, Valid: oc.Txid != ""}
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO orders (id, client_id, items_json, subtotal_sats, shipping_sats, total_sats,
  payment_method, status, provider, provider_status,
  payment_request, payment_hash, invoice_sats, checkout_link,
  swap_id, onchain_address, onchain_amount_sats, onchain_uri,
  timeout_block_height, onchain_expires_at, onchain_txid, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,NOW())`,
		o.ID, o.ClientID, items, o.SubtotalSats, o.ShippingSats, o.TotalSats,
		o.PaymentMethod, o.Status, o.Provider, o.ProviderStatus,
		payReq, payHash, invoiceSats, checkout,
		swapID, address, amountSats, uri,
		timeoutHeight, expiresAt, txid, o.CreatedAt)
	return err
}

func (r *MySQLOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=?`, id)
	return scanOrder(row)
}

// FindBySettlementID resolves an external identifier in priority order:
// swap/on-chain id, then payment hash, then raw order id.
func (r *MySQLOrderRepo) FindBySettlementID(ctx context.Context, identifier string) (*domain.Order, error) {
	for _, q := range []string{
		`SELECT ` + orderColumns + ` FROM orders WHERE swap_id=?`,
		`SELECT ` + orderColumns + ` FROM orders WHERE onchain_address=?`,
		`SELECT ` + orderColumns + ` FROM orders WHERE payment_hash=?`,
		`SELECT ` + orderColumns + ` FROM orders WHERE id=?`,
	} {
		o, err := scanOrder(r.db.QueryRowContext(ctx, q, identifier))
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, usecase.ErrNotFound) {
			return nil, err
		}
	}
	return nil, usecase.ErrNotFound
}

func (r *MySQLOrderRepo) ListPending(ctx context.Context) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status=? ORDER BY created_at`, domain.StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MarkPaid is the single atomic PENDING→PAID transition. The rows-affected
// result, not a re-read of status, tells the caller whether this call won.
func (r *MySQLOrderRepo) MarkPaid(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE orders
        SET status = ?, updated_at = NOW()
        WHERE id = ? AND status = ?`,
		domain.StatusPaid, id, domain.StatusPending)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *MySQLOrderRepo) UpdateStatusIf(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE orders
        SET status = ?, updated_at = NOW()
        WHERE id = ? AND status = ?`,
		to, id, from)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *MySQLOrderRepo) RecordProviderStatus(ctx context.Context, id, raw, txid string) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE orders
        SET provider_status = ?,
            onchain_txid = IF(? <> '', ?, onchain_txid),
            updated_at = NOW()
        WHERE id = ?`,
		raw, txid, txid, id)
	return err
}

// DeleteIfPending guards the removal the same way MarkPaid guards the PAID
// transition: the status predicate runs inside the statement, so an order
// settled between the caller's read and this delete survives.
func (r *MySQLOrderRepo) DeleteIfPending(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM orders WHERE id=? AND status=?`, id, domain.StatusPending)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                          domain.Order
		items                      []byte
		payReq, payHash, checkout  sql.NullString
		invoiceSats                sql.NullInt64
		swapID, address, uri, txid sql.NullString
		amountSats, timeoutHeight  sql.NullInt64
		expiresAt                  sql.NullTime
		createdAt                  time.Time
	)
	err := row.Scan(&o.ID, &o.ClientID, &items, &o.SubtotalSats, &o.ShippingSats, &o.TotalSats,
		&o.PaymentMethod, &o.Status, &o.Provider, &o.ProviderStatus,
		&payReq, &payHash, &invoiceSats, &checkout,
		&swapID, &address, &amountSats, &uri,
		&timeoutHeight, &expiresAt, &txid, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, usecase.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	o.CreatedAt = createdAt

	if payHash.Valid {
		o.Invoice = &domain.Invoice{
			PaymentRequest: payReq.String,
			PaymentHash:    payHash.String,
			Satoshis:       uint64(invoiceSats.Int64),
			CheckoutLink:   checkout.String,
		}
	}
	if swapID.Valid || address.Valid {
		o.Onchain = &domain.OnchainPayment{
			SwapID:             swapID.String,
			Address:            address.String,
			AmountSats:         uint64(amountSats.Int64),
			URI:                uri.String,
			TimeoutBlockHeight: timeoutHeight.Int64,
			ExpiresAt:          expiresAt.Time,
			Txid:               txid.String,
		}
	}
	return &o, nil
}

var _ usecase.OrderRepo = (*MySQLOrderRepo)(nil)
