package cart

import (
	"context"
	"sync"
)

// Session содержит эфемерное состояние пользователя: корзину и текущий экран.
// Сессии не переживают перезапуск процесса, если не используется Redis.
type Session struct {
	Cart Cart `json:"cart"`

	// Screen и ScreenArg задают экран, который нужно перерисовать, например при смене языка.
	Screen    string `json:"screen,omitempty"`
	ScreenArg int64  `json:"screen_arg,omitempty"`

	// PendingFeeOrder указывает заказ, для которого администратор вводит стоимость доставки.
	PendingFeeOrder int64 `json:"pending_fee_order,omitempty"`
}

func (s Session) clone() Session {
	s.Cart = s.Cart.clone()
	return s
}

// Store описывает хранилище сессий, ключом служит идентификатор пользователя.
type Store interface {
	Load(ctx context.Context, userID int64) (Session, error)
	Save(ctx context.Context, userID int64, s Session) error
	Delete(ctx context.Context, userID int64) error
}

// MemoryStore хранит сессии в памяти процесса.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

// NewMemoryStore создаёт пустое хранилище сессий в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]Session)}
}

// Load возвращает копию сессии пользователя или пустую сессию.
func (m *MemoryStore) Load(_ context.Context, userID int64) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID].clone(), nil
}

// Save сохраняет копию сессии.
func (m *MemoryStore) Save(_ context.Context, userID int64, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = s.clone()
	return nil
}

// Delete удаляет сессию пользователя.
func (m *MemoryStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

var _ Store = (*MemoryStore)(nil)
