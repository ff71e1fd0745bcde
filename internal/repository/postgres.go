// Package repository содержит реализацию доступа к данным маркетплейса.
package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/gatedmart/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil || i == len(delays) || !isRetryable(err) {
			return err
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

const accountColumns = `id, username, language, admission_status, interaction_state, total_spent, created_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		a      model.Account
		lang   string
		status string
		state  string
	)
	if err := row.Scan(&a.ID, &a.Username, &lang, &status, &state, &a.TotalSpent, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Language = model.Language(lang)
	a.Status = model.AdmissionStatus(status)
	a.State = model.InteractionState(state)
	return &a, nil
}

// TouchAccount создаёт аккаунт при первом обращении или обновляет имя пользователя у существующего.
func (r *PostgresRepository) TouchAccount(ctx context.Context, id int64, username string, lang model.Language) (*model.Account, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (id, username, language) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, updated_at = now()
		 RETURNING `+accountColumns,
		id, username, string(lang),
	)

	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("touch account: %w", err)
	}
	return a, nil
}

// GetAccount возвращает аккаунт по идентификатору.
func (r *PostgresRepository) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)

	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) updateAccount(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

// SetLanguage меняет язык интерфейса, не затрагивая остальные поля.
func (r *PostgresRepository) SetLanguage(ctx context.Context, id int64, lang model.Language) error {
	err := r.updateAccount(ctx,
		`UPDATE accounts SET language = $2, updated_at = now() WHERE id = $1`,
		id, string(lang),
	)
	if err != nil && !errors.Is(err, model.ErrAccountNotFound) {
		return fmt.Errorf("set language: %w", err)
	}
	return err
}

// SetInteractionState заменяет текущее ожидаемое действие пользователя.
func (r *PostgresRepository) SetInteractionState(ctx context.Context, id int64, state model.InteractionState) error {
	err := r.updateAccount(ctx,
		`UPDATE accounts SET interaction_state = $2, updated_at = now() WHERE id = $1`,
		id, string(state),
	)
	if err != nil && !errors.Is(err, model.ErrAccountNotFound) {
		return fmt.Errorf("set interaction state: %w", err)
	}
	return err
}

// SetAdmissionStatus принудительно задаёт статус допуска и сбрасывает ожидаемое действие.
// Аккаунт создаётся, если пользователь ещё не обращался к боту.
func (r *PostgresRepository) SetAdmissionStatus(ctx context.Context, id int64, status model.AdmissionStatus) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (id, admission_status) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE
		 SET admission_status = EXCLUDED.admission_status, interaction_state = 'NONE', updated_at = now()`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("set admission status: %w", err)
	}
	return nil
}

// CreateClaim регистрирует заявку и переводит заявителя в статус ожидания.
func (r *PostgresRepository) CreateClaim(ctx context.Context, applicantID int64, handle string) (*model.Claim, error) {
	var claim *model.Claim

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		c := model.Claim{ApplicantID: applicantID, VoucherHandle: handle, Status: model.ClaimPending}
		err = tx.QueryRow(ctx,
			`INSERT INTO claims (applicant_id, voucher_handle) VALUES ($1, $2) RETURNING id, created_at`,
			applicantID, handle,
		).Scan(&c.ID, &c.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert claim: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE accounts SET admission_status = $2, interaction_state = $3, updated_at = now() WHERE id = $1`,
			applicantID, string(model.AdmissionPending), string(model.StateNone),
		)
		if err != nil {
			return fmt.Errorf("mark applicant pending: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		claim = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

const claimColumns = `id, applicant_id, voucher_handle, status, created_at, decided_at`

func scanClaim(row pgx.Row) (*model.Claim, error) {
	var (
		c      model.Claim
		status string
	)
	if err := row.Scan(&c.ID, &c.ApplicantID, &c.VoucherHandle, &status, &c.CreatedAt, &c.DecidedAt); err != nil {
		return nil, err
	}
	c.Status = model.ClaimStatus(status)
	return &c, nil
}

// GetClaim возвращает заявку по идентификатору.
func (r *PostgresRepository) GetClaim(ctx context.Context, id int64) (*model.Claim, error) {
	c, err := scanClaim(r.pool.QueryRow(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrClaimNotFound
		}
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return c, nil
}

// DecideClaim выносит решение по заявке ровно один раз.
// Статус заявителя меняется только если он всё ещё ждёт решения.
func (r *PostgresRepository) DecideClaim(ctx context.Context, id int64, decision model.ClaimStatus) (*model.Claim, model.ClaimOutcome, error) {
	admission := model.AdmissionDeclined
	if decision == model.ClaimAccepted {
		admission = model.AdmissionSafe
	}

	var (
		claim   *model.Claim
		outcome model.ClaimOutcome
	)

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		c, err := scanClaim(tx.QueryRow(ctx,
			`UPDATE claims SET status = $2, decided_at = now()
			 WHERE id = $1 AND status = 'PENDING'
			 RETURNING `+claimColumns,
			id, string(decision),
		))
		if errors.Is(err, pgx.ErrNoRows) {
			existing, getErr := scanClaim(tx.QueryRow(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id))
			if errors.Is(getErr, pgx.ErrNoRows) {
				return model.ErrClaimNotFound
			}
			if getErr != nil {
				return fmt.Errorf("get claim: %w", getErr)
			}
			claim, outcome = existing, model.ClaimUnchanged
			return nil
		}
		if err != nil {
			return fmt.Errorf("decide claim: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE accounts SET admission_status = $2, interaction_state = 'NONE', updated_at = now()
			 WHERE id = $1 AND admission_status = 'PENDING'`,
			c.ApplicantID, string(admission),
		)
		if err != nil {
			return fmt.Errorf("update applicant: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		claim, outcome = c, model.ClaimStale
		if tag.RowsAffected() == 1 {
			outcome = model.ClaimApplied
		}
		return nil
	})
	if err != nil {
		return nil, model.ClaimUnchanged, err
	}
	return claim, outcome, nil
}

// ListItems возвращает каталог, упорядоченный по названию.
func (r *PostgresRepository) ListItems(ctx context.Context) ([]model.Item, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, price_cents, image_ref FROM items ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.PriceCents, &it.ImageRef); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// GetItem возвращает позицию каталога.
func (r *PostgresRepository) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	var it model.Item
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, price_cents, image_ref FROM items WHERE id = $1`,
		id,
	).Scan(&it.ID, &it.Name, &it.Description, &it.PriceCents, &it.ImageRef)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &it, nil
}

// UpsertItem добавляет позицию каталога или обновляет позицию с тем же названием.
func (r *PostgresRepository) UpsertItem(ctx context.Context, item model.Item) (*model.Item, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO items (name, description, price_cents, image_ref)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE
		 SET description = EXCLUDED.description,
		     price_cents = EXCLUDED.price_cents,
		     image_ref = EXCLUDED.image_ref
		 RETURNING id`,
		item.Name, item.Description, item.PriceCents, item.ImageRef,
	).Scan(&item.ID)
	if err != nil {
		return nil, fmt.Errorf("upsert item: %w", err)
	}
	return &item, nil
}

const orderColumns = `id, buyer_id, lines, subtotal_cents, delivery_requested, address,
	delivery_fee_cents, total_cents, status, created_at, completed_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o       model.Order
		lines   []byte
		address *string
		status  string
	)
	err := row.Scan(&o.ID, &o.BuyerID, &lines, &o.SubtotalCents, &o.DeliveryRequested, &address,
		&o.DeliveryFeeCents, &o.TotalCents, &status, &o.CreatedAt, &o.CompletedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return nil, fmt.Errorf("decode order lines: %w", err)
	}
	if address != nil {
		o.Address = *address
	}
	o.Status = model.FulfillmentStatus(status)
	return &o, nil
}

// CreateOrder сохраняет заказ со снимком корзины.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o model.Order) (*model.Order, error) {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return nil, fmt.Errorf("encode order lines: %w", err)
	}

	var address *string
	if o.DeliveryRequested {
		address = &o.Address
	}

	created, err := scanOrder(r.pool.QueryRow(ctx,
		`INSERT INTO orders (buyer_id, lines, subtotal_cents, delivery_requested, address, delivery_fee_cents, total_cents)
		 VALUES ($1, $2::jsonb, $3, $4, $5, $6, $7)
		 RETURNING `+orderColumns,
		o.BuyerID, string(lines), o.SubtotalCents, o.DeliveryRequested, address,
		o.DeliveryFeeCents, o.SubtotalCents+o.DeliveryFeeCents,
	))
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return created, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// SetDeliveryFee задаёт стоимость доставки и пересчитывает итог. Завершённые заказы не меняются.
func (r *PostgresRepository) SetDeliveryFee(ctx context.Context, id int64, feeCents int64) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`UPDATE orders
		 SET delivery_fee_cents = $2,
		     total_cents = subtotal_cents + $2,
		     status = CASE WHEN status = 'NEW' THEN 'SEEN' ELSE status END
		 WHERE id = $1 AND status <> 'DONE'
		 RETURNING `+orderColumns,
		id, feeCents,
	))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("set delivery fee: %w", err)
	}

	if _, err := r.GetOrder(ctx, id); err != nil {
		return nil, err
	}
	return nil, model.ErrOrderCompleted
}

// CompleteOrder завершает заказ и начисляет итог в сумму покупок покупателя в одной транзакции.
// Второй признак равен false, если заказ уже был завершён.
func (r *PostgresRepository) CompleteOrder(ctx context.Context, id int64) (*model.Order, bool, error) {
	var (
		order     *model.Order
		completed bool
	)

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		o, err := scanOrder(tx.QueryRow(ctx,
			`UPDATE orders SET status = 'DONE', completed_at = now()
			 WHERE id = $1 AND status <> 'DONE'
			 RETURNING `+orderColumns,
			id,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			existing, getErr := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
			if errors.Is(getErr, pgx.ErrNoRows) {
				return model.ErrOrderNotFound
			}
			if getErr != nil {
				return fmt.Errorf("get order: %w", getErr)
			}
			order, completed = existing, false
			return nil
		}
		if err != nil {
			return fmt.Errorf("complete order: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE accounts SET total_spent = total_spent + $2, updated_at = now() WHERE id = $1`,
			o.BuyerID, o.TotalCents,
		)
		if err != nil {
			return fmt.Errorf("credit buyer spend: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		order, completed = o, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return order, completed, nil
}

// IsOnline сообщает, принимает ли витрина заказы.
func (r *PostgresRepository) IsOnline(ctx context.Context) (bool, error) {
	var online bool
	err := r.pool.QueryRow(ctx, `SELECT online FROM settings WHERE id = 1`).Scan(&online)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return false, fmt.Errorf("get storefront flag: %w", err)
	}
	return online, nil
}

// SetOnline сохраняет флаг доступности витрины.
func (r *PostgresRepository) SetOnline(ctx context.Context, online bool) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO settings (id, online) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET online = EXCLUDED.online`,
		online,
	)
	if err != nil {
		return fmt.Errorf("set storefront flag: %w", err)
	}
	return nil
}
