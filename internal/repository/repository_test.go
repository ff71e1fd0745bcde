package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/gatedmart/internal/model"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: pgerrcode.SerializationFailure}, want: true},
		{name: "deadlock", err: fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}), want: true},
		{name: "unique violation", err: &pgconn.PgError{Code: pgerrcode.UniqueViolation}, want: false},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), want: true},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "domain error", err: model.ErrClaimNotFound, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestMemoryRepository_DecideClaimOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.TouchAccount(ctx, 10, "alice", model.LanguageEnglish)
	require.NoError(t, err)

	claim, err := repo.CreateClaim(ctx, 10, "@mart")
	require.NoError(t, err)

	acc, err := repo.GetAccount(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, model.AdmissionPending, acc.Status)

	decided, outcome, err := repo.DecideClaim(ctx, claim.ID, model.ClaimAccepted)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimApplied, outcome)
	assert.Equal(t, model.ClaimAccepted, decided.Status)
	require.NotNil(t, decided.DecidedAt)

	again, outcome, err := repo.DecideClaim(ctx, claim.ID, model.ClaimDeclined)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimUnchanged, outcome)
	assert.Equal(t, model.ClaimAccepted, again.Status)

	acc, err = repo.GetAccount(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, model.AdmissionSafe, acc.Status)

	_, _, err = repo.DecideClaim(ctx, 999, model.ClaimAccepted)
	assert.ErrorIs(t, err, model.ErrClaimNotFound)
}

func TestMemoryRepository_DecideClaimKeepsSettledApplicant(t *testing.T) {
	tests := []struct {
		name     string
		status   model.AdmissionStatus
		decision model.ClaimStatus
	}{
		{name: "decline after grant", status: model.AdmissionSafe, decision: model.ClaimDeclined},
		{name: "accept after revoke", status: model.AdmissionNew, decision: model.ClaimAccepted},
		{name: "accept after decline", status: model.AdmissionDeclined, decision: model.ClaimAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := NewMemoryRepository()

			_, err := repo.TouchAccount(ctx, 10, "alice", model.LanguageEnglish)
			require.NoError(t, err)
			claim, err := repo.CreateClaim(ctx, 10, "@mart")
			require.NoError(t, err)
			require.NoError(t, repo.SetAdmissionStatus(ctx, 10, tt.status))

			decided, outcome, err := repo.DecideClaim(ctx, claim.ID, tt.decision)
			require.NoError(t, err)
			if outcome != model.ClaimStale {
				t.Fatalf("outcome = %d, want ClaimStale", outcome)
			}
			assert.Equal(t, tt.decision, decided.Status)

			acc, err := repo.GetAccount(ctx, 10)
			require.NoError(t, err)
			assert.Equal(t, tt.status, acc.Status)
		})
	}
}

func TestMemoryRepository_OrderLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.TouchAccount(ctx, 10, "alice", model.LanguageEnglish)
	require.NoError(t, err)

	order, err := repo.CreateOrder(ctx, model.Order{
		BuyerID:       10,
		Lines:         []model.OrderLine{{ItemID: 1, Name: "Tea", Quantity: 2, UnitPriceCents: 500}},
		SubtotalCents: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), order.TotalCents)
	assert.Equal(t, model.FulfillmentNew, order.Status)

	order, err = repo.SetDeliveryFee(ctx, order.ID, 250)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), order.TotalCents)
	assert.Equal(t, model.FulfillmentSeen, order.Status)

	_, done, err := repo.CompleteOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, done)

	_, done, err = repo.CompleteOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, done)

	acc, err := repo.GetAccount(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), acc.TotalSpent)

	_, err = repo.SetDeliveryFee(ctx, order.ID, 999)
	assert.ErrorIs(t, err, model.ErrOrderCompleted)
}
