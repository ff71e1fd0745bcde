package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/gatedmart/internal/cart"
	"github.com/mmeshcher/gatedmart/internal/model"
	"github.com/mmeshcher/gatedmart/internal/repository"
)

const (
	adminID = int64(1)
	buyerID = int64(100)
)

type fixture struct {
	svc  *Service
	repo *repository.MemoryRepository
	tea  model.Item
	mead model.Item
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := repository.NewMemoryRepository()
	f := &fixture{
		svc:  NewService(repo, cart.NewMemoryStore(), adminID, model.LanguageEnglish),
		repo: repo,
		tea:  repo.PutItem(model.Item{Name: "Tea", PriceCents: 500}),
		mead: repo.PutItem(model.Item{Name: "Mead", PriceCents: 300}),
	}

	_, err := f.svc.Touch(context.Background(), buyerID, "buyer")
	require.NoError(t, err)
	return f
}

func (f *fixture) account(t *testing.T) *model.Account {
	t.Helper()
	acc, err := f.svc.Account(context.Background(), buyerID)
	require.NoError(t, err)
	return acc
}

func (f *fixture) moderator(t *testing.T) *Moderator {
	t.Helper()
	m, err := f.svc.Moderator(adminID)
	require.NoError(t, err)
	return m
}

func (f *fixture) admit(t *testing.T) {
	t.Helper()
	require.NoError(t, f.moderator(t).Grant(context.Background(), buyerID))
}

func TestAdmission_VouchAndAccept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.BeginVerification(ctx, buyerID))
	assert.Equal(t, model.StateAwaitingVouch, f.account(t).State)

	claim, err := f.svc.SubmitVoucher(ctx, buyerID, "@mart")
	require.NoError(t, err)
	assert.Equal(t, model.ClaimPending, claim.Status)
	assert.Equal(t, "@mart", claim.VoucherHandle)

	acc := f.account(t)
	assert.Equal(t, model.AdmissionPending, acc.Status)
	assert.Equal(t, model.StateNone, acc.State)

	m := f.moderator(t)
	decided, outcome, err := m.DecideClaim(ctx, claim.ID, true)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimApplied, outcome)
	assert.Equal(t, model.ClaimAccepted, decided.Status)
	assert.Equal(t, model.AdmissionSafe, f.account(t).Status)

	again, outcome, err := m.DecideClaim(ctx, claim.ID, true)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimUnchanged, outcome, "second decision must be a no-op")
	assert.Equal(t, model.ClaimAccepted, again.Status)

	_, outcome, err = m.DecideClaim(ctx, claim.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimUnchanged, outcome)
	assert.Equal(t, model.AdmissionSafe, f.account(t).Status)
}

func TestAdmission_Decline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.BeginVerification(ctx, buyerID))
	claim, err := f.svc.SubmitVoucher(ctx, buyerID, "@someone")
	require.NoError(t, err)

	_, outcome, err := f.moderator(t).DecideClaim(ctx, claim.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimApplied, outcome)
	assert.Equal(t, model.AdmissionDeclined, f.account(t).Status)

	require.NoError(t, f.svc.BeginVerification(ctx, buyerID), "declined users may try again")
	assert.Equal(t, model.StateAwaitingVouch, f.account(t).State)
}

func TestAdmission_DecisionAfterDirectGrant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.BeginVerification(ctx, buyerID))
	claim, err := f.svc.SubmitVoucher(ctx, buyerID, "@mart")
	require.NoError(t, err)

	m := f.moderator(t)
	require.NoError(t, m.Grant(ctx, buyerID))
	require.NoError(t, f.svc.SetQuantity(ctx, buyerID, f.tea.ID, 2))

	decided, outcome, err := m.DecideClaim(ctx, claim.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStale, outcome)
	assert.Equal(t, model.ClaimDeclined, decided.Status, "claim is still closed")
	assert.Equal(t, model.AdmissionSafe, f.account(t).Status, "granted user must stay admitted")

	sess, err := f.svc.Session(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.Cart.Quantity(f.tea.ID), "cart must survive a stale decision")

	_, outcome, err = m.DecideClaim(ctx, claim.ID, true)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimUnchanged, outcome)
}

func TestAdmission_DecisionAfterRevoke(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.BeginVerification(ctx, buyerID))
	claim, err := f.svc.SubmitVoucher(ctx, buyerID, "@mart")
	require.NoError(t, err)

	m := f.moderator(t)
	require.NoError(t, m.Revoke(ctx, buyerID))

	decided, outcome, err := m.DecideClaim(ctx, claim.ID, true)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStale, outcome)
	assert.Equal(t, model.ClaimAccepted, decided.Status)
	assert.Equal(t, model.AdmissionNew, f.account(t).Status, "revoked user must not be admitted by an old claim")
}

func TestAdmission_InvalidVoucherKeepsState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.BeginVerification(ctx, buyerID))

	for _, input := range []string{"mart", "@", "@ma rt", ""} {
		_, err := f.svc.SubmitVoucher(ctx, buyerID, input)
		assert.ErrorIs(t, err, model.ErrInvalidVoucher, "input %q", input)
		assert.True(t, errors.Is(err, model.ErrValidation))
	}

	acc := f.account(t)
	assert.Equal(t, model.AdmissionNew, acc.Status)
	assert.Equal(t, model.StateAwaitingVouch, acc.State)
}

func TestAdmission_VoucherWithoutPrompt(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SubmitVoucher(context.Background(), buyerID, "@mart")
	assert.ErrorIs(t, err, model.ErrUnexpectedInput)
	assert.Equal(t, model.AdmissionNew, f.account(t).Status)
}

func TestAdmission_PendingBlocksVerification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.BeginVerification(ctx, buyerID))
	_, err := f.svc.SubmitVoucher(ctx, buyerID, "@mart")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.BeginVerification(ctx, buyerID), model.ErrAwaitingReview)
	assert.ErrorIs(t, f.svc.SetQuantity(ctx, buyerID, f.tea.ID, 1), model.ErrAwaitingReview)

	require.NoError(t, f.svc.SetLanguage(ctx, buyerID, model.LanguageEstonian))
	acc := f.account(t)
	assert.Equal(t, model.LanguageEstonian, acc.Language)
	assert.Equal(t, model.AdmissionPending, acc.Status)
}

func TestSetLanguage_KeepsStateAndCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.admit(t)

	require.NoError(t, f.svc.SetQuantity(ctx, buyerID, f.tea.ID, 2))
	require.NoError(t, f.svc.RequestDelivery(ctx, buyerID))

	require.NoError(t, f.svc.SetLanguage(ctx, buyerID, model.LanguageRussian))
	assert.ErrorIs(t, f.svc.SetLanguage(ctx, buyerID, "xx"), model.ErrInvalidLanguage)

	acc := f.account(t)
	assert.Equal(t, model.LanguageRussian, acc.Language)
	assert.Equal(t, model.AdmissionSafe, acc.Status)
	assert.Equal(t, model.StateAwaitingAddress, acc.State)

	view, err := f.svc.CartView(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), view.SubtotalCents)
}

func TestCart_RequiresAdmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.svc.SetQuantity(ctx, buyerID, f.tea.ID, 1)
	assert.ErrorIs(t, err, model.ErrNotAdmitted)
	assert.True(t, errors.Is(err, model.ErrAuthorization))

	view, err := f.svc.CartView(ctx, buyerID)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
}

func TestCart_SubtotalFollowsCatalog(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.admit(t)

	require.NoError(t, f.svc.SetQuantity(ctx, buyerID, f.tea.ID, 2))
	require.NoError(t, f.svc.SetQuantity(ctx, buyerID, f.mead.ID, 1))

	view, err := f.svc.CartView(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, int64(1300), view.SubtotalCents)

	f.repo.PutItem(model.Item{ID: f.tea.ID, Name: "Tea", PriceCents: 600})
	view, err = f.svc.CartView(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), view.SubtotalCents)

	f.repo.DeleteItem(f.mead.ID)
	view, err = f.svc.CartView(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), view.SubtotalCents)
	assert.Equal(t, []int64{f.mead.ID}, view.Missing)

	sess, err := f.svc.Session(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.tea.ID}, sess.Cart.ItemIDs())
}

func TestCart_QuantityBounds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.admit(t)

	assert.ErrorIs(t, f.svc.SetQuantity(ctx, buyerID, f.tea.ID, -1), model.ErrInvalidQuantity)
	assert.ErrorIs(t, f.svc.SetQuantity(ctx, buyerID, f.tea.ID, MaxLineQuantity+1), model.ErrInvalidQuantity)
	assert.ErrorIs(t, f.svc.SetQuantity(ctx, buyerID, 999, 1), model.ErrItemNotFound)

	require.NoError(t, f.svc.SetQuantity(ctx, buyerID, f.tea.ID, 3))
	require.NoError(t, f.svc.SetQuantity(ctx, buyerID, f.tea.ID, 0))

	sess, err := f.svc.Session(ctx, buyerID)
	require.NoError(t, err)
	assert.True(t, sess.Cart.IsEmpty())
}

func TestCheckout_PickupAndFees(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.admit(t)

	require.NoError(t, f.svc.SetQuantity(ctx, buyerID, f.tea.ID, 2))
	require.NoError(t, f.svc.SetQuantity(ctx, buyerID, f.mead.ID, 1))

	order, err := f.svc.Checkout(ctx, buyerID, false, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1300), order.SubtotalCents)
	assert.Equal(t, int64(0), order.DeliveryFeeCents)
	assert.Equal(t, int64(1300), order.TotalCents)
	assert.Equal(t, model.FulfillmentNew, order.Status)
	assert.Len(t, order.Lines, 2)

	view, err := f.svc.CartView(ctx, buyerID)
	require.NoError(t, err)
	assert.Empty(t, view.Lines, "checkout must clear the cart")

	m := f.moderator(t)
	order, err = m.SetDeliveryFee(ctx, order.ID, 750)
	require.NoError(t, err)
	assert.Equal(t, int64(2050), order.TotalCents)
	assert.Equal(t, order.SubtotalCents+order.DeliveryFeeCents, order.TotalCents)

	order, completed, err := m.CompleteOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, model.FulfillmentDone, order.Status)
	assert.Equal(t, int64(2050), f.account(t).TotalSpent)

	_, completed, err = m.CompleteOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, int64(2050), f.account(t).TotalSpent)

	_, err = m.SetDeliveryFee(ctx, order.ID, 100)
	assert.ErrorIs(t, err, model.ErrOrderCompleted)

	frozen, err := f.repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2050), frozen.TotalCents)
}

func TestCheckout_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.admit(t)

	_, err := f.svc.Checkout(ctx, buyerID, false, "")
	assert.ErrorIs(t, err, model.ErrEmptyCart)

	require.NoError(t, f.svc.SetQuantity(ctx, buyerID, f.tea.ID, 1))

	_, err = f.svc.Checkout(ctx, buyerID, true, "   ")
	assert.ErrorIs(t, err, model.ErrAddressRequired)

	_, err = f.repo.GetOrder(ctx, 1)
	assert.ErrorIs(t, err, model.ErrOrderNotFound, "failed checkout must not create orders")

	require.NoError(t, f.svc.RequestDelivery(ctx, buyerID))
	order, err := f.svc.Checkout(ctx, buyerID, true, " Rüütli 5, Tartu ")
	require.NoError(t, err)
	assert.True(t, order.DeliveryRequested)
	assert.Equal(t, "Rüütli 5, Tartu", order.Address)
	assert.Equal(t, model.StateNone, f.account(t).State)
}

// flakyStore отказывает в сохранении сессии, пока failSaves > 0.
type flakyStore struct {
	cart.Store
	failSaves int
}

func (s *flakyStore) Save(ctx context.Context, userID int64, sess cart.Session) error {
	if s.failSaves > 0 {
		s.failSaves--
		return errors.New("session store unavailable")
	}
	return s.Store.Save(ctx, userID, sess)
}

// failingOrders отказывает в создании заказа.
type failingOrders struct {
	*repository.MemoryRepository
}

func (failingOrders) CreateOrder(context.Context, model.Order) (*model.Order, error) {
	return nil, errors.New("database unavailable")
}

func TestCheckout_SessionSaveFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.admit(t)

	store := &flakyStore{Store: cart.NewMemoryStore()}
	svc := NewService(f.repo, store, adminID, model.LanguageEnglish)
	require.NoError(t, svc.SetQuantity(ctx, buyerID, f.tea.ID, 1))

	store.failSaves = 1
	_, err := svc.Checkout(ctx, buyerID, false, "")
	require.Error(t, err)

	_, err = f.repo.GetOrder(ctx, 1)
	assert.ErrorIs(t, err, model.ErrOrderNotFound, "order must not exist when the cart was not cleared")

	sess, err := svc.Session(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Cart.Quantity(f.tea.ID))

	order, err := svc.Checkout(ctx, buyerID, false, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), order.ID)

	_, err = svc.Checkout(ctx, buyerID, false, "")
	assert.ErrorIs(t, err, model.ErrEmptyCart, "repeated checkout must not duplicate the order")
	_, err = f.repo.GetOrder(ctx, 2)
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
}

func TestCheckout_OrderFailureRestoresCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.admit(t)

	store := cart.NewMemoryStore()
	svc := NewService(failingOrders{f.repo}, store, adminID, model.LanguageEnglish)
	require.NoError(t, svc.SetQuantity(ctx, buyerID, f.mead.ID, 3))
	require.NoError(t, svc.RequestDelivery(ctx, buyerID))

	_, err := svc.Checkout(ctx, buyerID, true, "Narva mnt 7")
	require.Error(t, err)

	sess, err := svc.Session(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, 3, sess.Cart.Quantity(f.mead.ID), "cart must be restored")
	assert.Equal(t, model.StateAwaitingAddress, f.account(t).State, "address entry must be restored")
}

func TestCheckout_ZeroPriceCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.admit(t)

	free := f.repo.PutItem(model.Item{Name: "Sticker", PriceCents: 0})
	require.NoError(t, f.svc.SetQuantity(ctx, buyerID, free.ID, 3))

	_, err := f.svc.Checkout(ctx, buyerID, false, "")
	assert.ErrorIs(t, err, model.ErrEmptyCart)
}

func TestCheckout_StoreOffline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.admit(t)

	require.NoError(t, f.svc.SetQuantity(ctx, buyerID, f.tea.ID, 1))
	require.NoError(t, f.moderator(t).SetOnline(ctx, false))

	_, err := f.svc.Checkout(ctx, buyerID, false, "")
	assert.ErrorIs(t, err, model.ErrStoreOffline)
	assert.True(t, errors.Is(err, model.ErrStoreUnavailable))

	assert.ErrorIs(t, f.svc.SetQuantity(ctx, buyerID, f.tea.ID, 2), model.ErrStoreOffline)
	assert.ErrorIs(t, f.svc.RequestDelivery(ctx, buyerID), model.ErrStoreOffline)

	_, err = f.repo.GetOrder(ctx, 1)
	assert.ErrorIs(t, err, model.ErrOrderNotFound)

	require.NoError(t, f.moderator(t).SetOnline(ctx, true))
	_, err = f.svc.Checkout(ctx, buyerID, false, "")
	require.NoError(t, err)
}

func TestModerator_RejectsNonAdmin(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Moderator(buyerID)
	assert.ErrorIs(t, err, model.ErrNotAllowed)
	assert.True(t, errors.Is(err, model.ErrAuthorization))

	noAdmin := NewService(f.repo, cart.NewMemoryStore(), 0, model.LanguageEnglish)
	_, err = noAdmin.Moderator(0)
	assert.ErrorIs(t, err, model.ErrNotAllowed)
}

func TestModerator_RevokeClearsCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.admit(t)

	require.NoError(t, f.svc.SetQuantity(ctx, buyerID, f.tea.ID, 1))
	require.NoError(t, f.moderator(t).Revoke(ctx, buyerID))

	assert.Equal(t, model.AdmissionNew, f.account(t).Status)
	sess, err := f.svc.Session(ctx, buyerID)
	require.NoError(t, err)
	assert.True(t, sess.Cart.IsEmpty())
}

func TestModerator_FeeEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.admit(t)

	require.NoError(t, f.svc.SetQuantity(ctx, buyerID, f.tea.ID, 1))
	require.NoError(t, f.svc.RequestDelivery(ctx, buyerID))
	order, err := f.svc.Checkout(ctx, buyerID, true, "Narva mnt 7")
	require.NoError(t, err)

	m := f.moderator(t)
	_, err = m.SubmitFee(ctx, "5")
	assert.ErrorIs(t, err, model.ErrUnexpectedInput)

	_, err = m.BeginFeeEntry(ctx, order.ID)
	require.NoError(t, err)

	_, err = m.SubmitFee(ctx, "five")
	assert.ErrorIs(t, err, model.ErrInvalidAmount)
	pending, err := m.PendingFeeOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, order.ID, pending, "invalid amount keeps fee entry open")

	updated, err := m.SubmitFee(ctx, "7,50")
	require.NoError(t, err)
	assert.Equal(t, int64(750), updated.DeliveryFeeCents)
	assert.Equal(t, int64(1250), updated.TotalCents)
	assert.Equal(t, model.FulfillmentSeen, updated.Status)

	pending, err = m.PendingFeeOrder(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestModerator_PickupInfo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.admit(t)

	require.NoError(t, f.svc.SetQuantity(ctx, buyerID, f.tea.ID, 1))
	order, err := f.svc.Checkout(ctx, buyerID, false, "")
	require.NoError(t, err)

	m := f.moderator(t)
	_, _, err = m.PickupInfo(ctx, order.ID, "  ")
	assert.ErrorIs(t, err, model.ErrEmptyMessage)

	_, _, err = m.PickupInfo(ctx, 404, "Old Town, 18:00")
	assert.ErrorIs(t, err, model.ErrOrderNotFound)

	got, text, err := m.PickupInfo(ctx, order.ID, " Old Town, 18:00 ")
	require.NoError(t, err)
	assert.Equal(t, "Old Town, 18:00", text)
	assert.Equal(t, model.FulfillmentNew, got.Status)
}
