package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nanorand/nanorand"
	"go.uber.org/zap"

	"storefront-core/internal/identity"
)

// Repo is the Postgres-backed Store. Persistence failures are logged with
// context and folded into ErrPersistence so handlers never leak driver
// detail to clients.
type Repo struct {
	DB  *pgxpool.Pool
	Log *zap.Logger
}

var _ Store = (*Repo)(nil)

const orderColumns = `id, order_number, user_id, session_id, items, subtotal_cents,
	shipping_cents, total_cents, shipping_address, store_summaries,
	order_status, payment_status, created_at, updated_at`

func (r *Repo) Create(ctx context.Context, actor identity.ActorIdentity, in Input) (*Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyItems
	}

	number, err := orderNumber()
	if err != nil {
		return nil, r.failed("generate order number", err)
	}

	userID, sessionID := actor.PartitionKeys()
	now := time.Now().UTC()
	o := &Order{
		ID:              uuid.NewString(),
		OrderNumber:     number,
		UserID:          userID,
		SessionID:       sessionID,
		Items:           in.Items,
		SubtotalCents:   in.SubtotalCents,
		ShippingCents:   in.ShippingCents,
		TotalCents:      in.SubtotalCents + in.ShippingCents,
		ShippingAddress: in.ShippingAddress,
		StoreSummaries:  SummarizeStores(in.Items),
		OrderStatus:     StatusPending,
		PaymentStatus:   PaymentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	items, addr, summaries, err := marshalSnapshots(o)
	if err != nil {
		return nil, r.failed("encode order snapshot", err)
	}

	_, err = r.DB.Exec(ctx, `
		INSERT INTO orders(id, order_number, user_id, session_id, items,
			subtotal_cents, shipping_cents, total_cents, shipping_address,
			store_summaries, order_status, payment_status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		o.ID, o.OrderNumber, o.UserID, o.SessionID, items,
		o.SubtotalCents, o.ShippingCents, o.TotalCents, addr,
		summaries, o.OrderStatus, o.PaymentStatus, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return nil, r.failed("insert order", err)
	}
	return o, nil
}

func (r *Repo) GetByID(ctx context.Context, actor identity.ActorIdentity, orderID string) (*Order, error) {
	clause, key := partitionClause(actor, 2)
	row := r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=$1 AND `+clause, orderID, key)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.failed("get order", err)
	}
	return o, nil
}

func (r *Repo) ListByActor(ctx context.Context, actor identity.ActorIdentity) ([]Order, error) {
	clause, key := partitionClause(actor, 1)
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+clause+` ORDER BY created_at DESC`, key)
	if err != nil {
		return nil, r.failed("list orders", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *Repo) UpdateStatus(ctx context.Context, actor identity.ActorIdentity, orderID string, ch StatusChange) (*Order, error) {
	cur, err := r.GetByID(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, ErrNotFound
	}
	return r.applyStatus(ctx, *cur, ch)
}

func (r *Repo) UpdateStatusByID(ctx context.Context, orderID string, ch StatusChange) (*Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID)
	cur, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, r.failed("get order", err)
	}
	return r.applyStatus(ctx, *cur, ch)
}

func (r *Repo) applyStatus(ctx context.Context, cur Order, ch StatusChange) (*Order, error) {
	next, err := Transition(cur, ch)
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()

	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET order_status=$2, payment_status=$3, updated_at=$4
		WHERE id=$1`,
		next.ID, next.OrderStatus, next.PaymentStatus, next.UpdatedAt)
	if err != nil {
		return nil, r.failed("update order status", err)
	}
	if ct.RowsAffected() != 1 {
		return nil, ErrNotFound
	}
	return &next, nil
}

func (r *Repo) ListByStore(ctx context.Context, storeID string) ([]Order, error) {
	// Seller view scans all orders and filters on the item snapshots, the
	// actor partition does not apply here.
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, r.failed("list store orders", err)
	}
	defer rows.Close()

	all, err := r.collect(rows)
	if err != nil {
		return nil, err
	}
	var out []Order
	for _, o := range all {
		if orderHasStore(o, storeID) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *Repo) collect(rows pgx.Rows) ([]Order, error) {
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, r.failed("scan order", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, r.failed("iterate orders", err)
	}
	return out, nil
}

func (r *Repo) failed(op string, err error) error {
	if r.Log != nil {
		r.Log.Error("order store failure", zap.String("op", op), zap.Error(err))
	}
	return fmt.Errorf("%w: %s", ErrPersistence, op)
}

func orderHasStore(o Order, storeID string) bool {
	for _, it := range o.Items {
		if it.StoreID == storeID {
			return true
		}
	}
	return false
}

// partitionClause builds the scoped WHERE fragment for an actor. A user row
// must carry a null session id and vice versa, so colliding raw ids across
// the two partitions can never match.
func partitionClause(a identity.ActorIdentity, arg int) (string, string) {
	if a.IsUser() {
		return fmt.Sprintf("user_id=$%d AND session_id IS NULL", arg), a.UserID
	}
	return fmt.Sprintf("session_id=$%d AND user_id IS NULL", arg), a.SessionID
}

func marshalSnapshots(o *Order) (items, addr, summaries []byte, err error) {
	if items, err = json.Marshal(o.Items); err != nil {
		return nil, nil, nil, err
	}
	if addr, err = json.Marshal(o.ShippingAddress); err != nil {
		return nil, nil, nil, err
	}
	if summaries, err = json.Marshal(o.StoreSummaries); err != nil {
		return nil, nil, nil, err
	}
	return items, addr, summaries, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o         Order
		items     []byte
		addr      []byte
		summaries []byte
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.SessionID, &items,
		&o.SubtotalCents, &o.ShippingCents, &o.TotalCents, &addr, &summaries,
		&o.OrderStatus, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(summaries, &o.StoreSummaries); err != nil {
		return nil, err
	}
	return &o, nil
}

func orderNumber() (string, error) {
	n, err := nanorand.Gen(10)
	if err != nil {
		return "", err
	}
	return "SF-" + n, nil
}
