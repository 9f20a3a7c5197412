package address

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront-core/internal/identity"
)

// Repo is the Postgres-backed Store.
type Repo struct {
	DB  *pgxpool.Pool
	Log *zap.Logger
}

var _ Store = (*Repo)(nil)

const addressColumns = `id, user_id, session_id, name, email, phone, address,
	building, floor, flat, district, city, country, created_at, updated_at`

// Create validates, then replaces the actor's address inside one
// transaction. The delete and insert commit together, a reader never
// observes the transient no-address state between them.
func (r *Repo) Create(ctx context.Context, actor identity.ActorIdentity, f Fields) (*Address, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	userID, sessionID := actor.PartitionKeys()
	now := time.Now().UTC()
	a := &Address{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		Name:      f.Name,
		Email:     f.Email,
		Phone:     f.Phone,
		Address:   f.Address,
		Building:  f.Building,
		Floor:     f.Floor,
		Flat:      f.Flat,
		District:  f.District,
		City:      FixedCity,
		Country:   FixedCountry,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, r.failed("begin replace", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	clause, key := partitionClause(actor, 1)
	if _, err := tx.Exec(ctx, `DELETE FROM addresses WHERE `+clause, key); err != nil {
		return nil, r.failed("delete prior address", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO addresses(id, user_id, session_id, name, email, phone,
			address, building, floor, flat, district, city, country,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		a.ID, a.UserID, a.SessionID, a.Name, a.Email, a.Phone,
		a.Address, a.Building, a.Floor, a.Flat, a.District, a.City, a.Country,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return nil, r.failed("insert address", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, r.failed("commit replace", err)
	}
	return a, nil
}

func (r *Repo) Update(ctx context.Context, actor identity.ActorIdentity, p PartialFields) (*Address, error) {
	cur, err := r.Get(ctx, actor)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, ErrNotFound
	}

	p.apply(cur)
	cur.UpdatedAt = time.Now().UTC()

	clause, key := partitionClause(actor, 10)
	ct, err := r.DB.Exec(ctx, `
		UPDATE addresses SET name=$1, email=$2, phone=$3, address=$4,
			building=$5, floor=$6, flat=$7, district=$8, updated_at=$9
		WHERE `+clause,
		cur.Name, cur.Email, cur.Phone, cur.Address,
		cur.Building, cur.Floor, cur.Flat, cur.District, cur.UpdatedAt, key)
	if err != nil {
		return nil, r.failed("update address", err)
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return cur, nil
}

func (r *Repo) Get(ctx context.Context, actor identity.ActorIdentity) (*Address, error) {
	clause, key := partitionClause(actor, 1)
	row := r.DB.QueryRow(ctx, `SELECT `+addressColumns+` FROM addresses WHERE `+clause, key)

	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.SessionID, &a.Name, &a.Email, &a.Phone,
		&a.Address, &a.Building, &a.Floor, &a.Flat, &a.District, &a.City,
		&a.Country, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.failed("get address", err)
	}
	return &a, nil
}

func (r *Repo) failed(op string, err error) error {
	if r.Log != nil {
		r.Log.Error("address store failure", zap.String("op", op), zap.Error(err))
	}
	return fmt.Errorf("%w: %s", ErrPersistence, op)
}

func partitionClause(a identity.ActorIdentity, arg int) (string, string) {
	if a.IsUser() {
		return fmt.Sprintf("user_id=$%d AND session_id IS NULL", arg), a.UserID
	}
	return fmt.Sprintf("session_id=$%d AND user_id IS NULL", arg), a.SessionID
}
