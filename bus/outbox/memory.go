package outbox

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage хранит сообщения в памяти процесса. Подходит для тестов
// и однопроцессных развертываний.
type MemoryStorage struct {
	messages map[uuid.UUID]*Message
	mu       sync.RWMutex
}

// NewMemoryStorage создает пустое хранилище.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		messages: make(map[uuid.UUID]*Message),
	}
}

// Save сохраняет копию сообщения.
func (s *MemoryStorage) Save(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[msg.ID] = copyMessage(msg)
	return nil
}

// Fetch возвращает копии ожидающих сообщений, старые первыми.
func (s *MemoryStorage) Fetch(ctx context.Context, limit int) ([]*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := make([]*Message, 0)
	for _, msg := range s.messages {
		if msg.Status == StatusPending {
			pending = append(pending, copyMessage(msg))
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// MarkProcessed помечает сообщения как обработанные. Неизвестные ID игнорируются.
func (s *MemoryStorage) MarkProcessed(ctx context.Context, ids ...uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, id := range ids {
		if msg, ok := s.messages[id]; ok {
			msg.Status = StatusProcessed
			processedAt := now
			msg.ProcessedAt = &processedAt
		}
	}
	return nil
}

// Get возвращает копию сообщения по ID.
func (s *MemoryStorage) Get(id uuid.UUID) (*Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, false
	}
	return copyMessage(msg), true
}

func copyMessage(msg *Message) *Message {
	out := *msg
	out.Payload = append([]byte(nil), msg.Payload...)
	out.Metadata = maps.Clone(msg.Metadata)
	if msg.ProcessedAt != nil {
		processedAt := *msg.ProcessedAt
		out.ProcessedAt = &processedAt
	}
	return &out
}
