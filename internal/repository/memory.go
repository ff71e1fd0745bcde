package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mmeshcher/gatedmart/internal/model"
)

// MemoryRepository хранит данные в памяти процесса. Используется для локального запуска без БД и в тестах.
type MemoryRepository struct {
	mu sync.Mutex

	accounts map[int64]*model.Account
	claims   map[int64]*model.Claim
	items    map[int64]*model.Item
	orders   map[int64]*model.Order
	online   bool

	nextClaimID int64
	nextItemID  int64
	nextOrderID int64

	now func() time.Time
}

// NewMemoryRepository создаёт пустое хранилище; витрина изначально открыта.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[int64]*model.Account),
		claims:   make(map[int64]*model.Claim),
		items:    make(map[int64]*model.Item),
		orders:   make(map[int64]*model.Order),
		online:   true,
		now:      time.Now,
	}
}

// Close ничего не делает.
func (m *MemoryRepository) Close() error { return nil }

// PutItem добавляет или заменяет позицию каталога. Нулевой ID назначается автоматически.
func (m *MemoryRepository) PutItem(item model.Item) model.Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item.ID == 0 {
		m.nextItemID++
		item.ID = m.nextItemID
	} else if item.ID > m.nextItemID {
		m.nextItemID = item.ID
	}
	m.items[item.ID] = &item
	return item
}

// UpsertItem добавляет позицию каталога или обновляет позицию с тем же названием.
func (m *MemoryRepository) UpsertItem(_ context.Context, item model.Item) (*model.Item, error) {
	m.mu.Lock()
	for _, existing := range m.items {
		if existing.Name == item.Name {
			item.ID = existing.ID
			break
		}
	}
	m.mu.Unlock()

	stored := m.PutItem(item)
	return &stored, nil
}

// DeleteItem удаляет позицию каталога.
func (m *MemoryRepository) DeleteItem(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
}

func copyAccount(a *model.Account) *model.Account {
	c := *a
	return &c
}

func copyClaim(c *model.Claim) *model.Claim {
	cp := *c
	return &cp
}

func copyOrder(o *model.Order) *model.Order {
	c := *o
	c.Lines = append([]model.OrderLine(nil), o.Lines...)
	return &c
}

// TouchAccount создаёт аккаунт при первом обращении или обновляет имя пользователя.
func (m *MemoryRepository) TouchAccount(_ context.Context, id int64, username string, lang model.Language) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		a = &model.Account{
			ID:        id,
			Language:  lang,
			Status:    model.AdmissionNew,
			State:     model.StateNone,
			CreatedAt: m.now(),
		}
		m.accounts[id] = a
	}
	a.Username = username
	return copyAccount(a), nil
}

// GetAccount возвращает аккаунт по идентификатору.
func (m *MemoryRepository) GetAccount(_ context.Context, id int64) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return copyAccount(a), nil
}

// SetLanguage меняет язык интерфейса.
func (m *MemoryRepository) SetLanguage(_ context.Context, id int64, lang model.Language) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return model.ErrAccountNotFound
	}
	a.Language = lang
	return nil
}

// SetInteractionState заменяет ожидаемое действие пользователя.
func (m *MemoryRepository) SetInteractionState(_ context.Context, id int64, state model.InteractionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return model.ErrAccountNotFound
	}
	a.State = state
	return nil
}

// SetAdmissionStatus принудительно задаёт статус допуска, создавая аккаунт при необходимости.
func (m *MemoryRepository) SetAdmissionStatus(_ context.Context, id int64, status model.AdmissionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		a = &model.Account{ID: id, Language: model.DefaultLanguage, CreatedAt: m.now()}
		m.accounts[id] = a
	}
	a.Status = status
	a.State = model.StateNone
	return nil
}

// CreateClaim регистрирует заявку и переводит заявителя в статус ожидания.
func (m *MemoryRepository) CreateClaim(_ context.Context, applicantID int64, handle string) (*model.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[applicantID]
	if !ok {
		return nil, model.ErrAccountNotFound
	}

	m.nextClaimID++
	c := &model.Claim{
		ID:            m.nextClaimID,
		ApplicantID:   applicantID,
		VoucherHandle: handle,
		Status:        model.ClaimPending,
		CreatedAt:     m.now(),
	}
	m.claims[c.ID] = c

	a.Status = model.AdmissionPending
	a.State = model.StateNone
	return copyClaim(c), nil
}

// GetClaim возвращает заявку.
func (m *MemoryRepository) GetClaim(_ context.Context, id int64) (*model.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.claims[id]
	if !ok {
		return nil, model.ErrClaimNotFound
	}
	return copyClaim(c), nil
}

// DecideClaim выносит решение по заявке ровно один раз.
// Статус заявителя меняется только если он всё ещё ждёт решения.
func (m *MemoryRepository) DecideClaim(_ context.Context, id int64, decision model.ClaimStatus) (*model.Claim, model.ClaimOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.claims[id]
	if !ok {
		return nil, model.ClaimUnchanged, model.ErrClaimNotFound
	}
	if c.Status != model.ClaimPending {
		return copyClaim(c), model.ClaimUnchanged, nil
	}

	now := m.now()
	c.Status = decision
	c.DecidedAt = &now

	a, ok := m.accounts[c.ApplicantID]
	if !ok || a.Status != model.AdmissionPending {
		return copyClaim(c), model.ClaimStale, nil
	}

	a.Status = model.AdmissionDeclined
	if decision == model.ClaimAccepted {
		a.Status = model.AdmissionSafe
	}
	a.State = model.StateNone
	return copyClaim(c), model.ClaimApplied, nil
}

// ListItems возвращает каталог, упорядоченный по названию.
func (m *MemoryRepository) ListItems(_ context.Context) ([]model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]model.Item, 0, len(m.items))
	for _, it := range m.items {
		items = append(items, *it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// GetItem возвращает позицию каталога.
func (m *MemoryRepository) GetItem(_ context.Context, id int64) (*model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return nil, model.ErrItemNotFound
	}
	c := *it
	return &c, nil
}

// CreateOrder сохраняет заказ со снимком корзины.
func (m *MemoryRepository) CreateOrder(_ context.Context, o model.Order) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[o.BuyerID]; !ok {
		return nil, model.ErrAccountNotFound
	}

	m.nextOrderID++
	o.ID = m.nextOrderID
	o.TotalCents = o.SubtotalCents + o.DeliveryFeeCents
	o.Status = model.FulfillmentNew
	o.CreatedAt = m.now()
	if !o.DeliveryRequested {
		o.Address = ""
	}
	m.orders[o.ID] = copyOrder(&o)
	return copyOrder(&o), nil
}

// GetOrder возвращает заказ.
func (m *MemoryRepository) GetOrder(_ context.Context, id int64) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, model.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

// SetDeliveryFee задаёт стоимость доставки незавершённого заказа.
func (m *MemoryRepository) SetDeliveryFee(_ context.Context, id int64, feeCents int64) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, model.ErrOrderNotFound
	}
	if o.Status == model.FulfillmentDone {
		return nil, model.ErrOrderCompleted
	}

	o.DeliveryFeeCents = feeCents
	o.TotalCents = o.SubtotalCents + feeCents
	if o.Status == model.FulfillmentNew {
		o.Status = model.FulfillmentSeen
	}
	return copyOrder(o), nil
}

// CompleteOrder завершает заказ и начисляет итог покупателю.
func (m *MemoryRepository) CompleteOrder(_ context.Context, id int64) (*model.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, false, model.ErrOrderNotFound
	}
	if o.Status == model.FulfillmentDone {
		return copyOrder(o), false, nil
	}

	now := m.now()
	o.Status = model.FulfillmentDone
	o.CompletedAt = &now
	if a, ok := m.accounts[o.BuyerID]; ok {
		a.TotalSpent += o.TotalCents
	}
	return copyOrder(o), true, nil
}

// IsOnline сообщает, принимает ли витрина заказы.
func (m *MemoryRepository) IsOnline(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online, nil
}

// SetOnline задаёт флаг доступности витрины.
func (m *MemoryRepository) SetOnline(_ context.Context, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online = online
	return nil
}
