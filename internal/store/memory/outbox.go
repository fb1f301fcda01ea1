package memory

import (
	"context"

	"github.com/shopline/storefront/internal/domain"
)

func (s *MemoryStore) RecordEvent(_ context.Context, event *domain.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outbox[event.ID]; ok {
		return nil
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	cp := *event
	s.outbox[event.ID] = &cp
	s.outboxSeq = append(s.outboxSeq, event.ID)
	return nil
}

func (s *MemoryStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.OutboxEvent{}
	for _, id := range s.outboxSeq {
		if len(result) >= limit {
			break
		}
		event := s.outbox[id]
		if event.ProcessedAt == nil {
			cp := *event
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (s *MemoryStore) MarkEventAsProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event, ok := s.outbox[id]; ok {
		now := s.now()
		event.ProcessedAt = &now
	}
	return nil
}

func (s *MemoryStore) MissingEvents(_ context.Context, aggregateIDs []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.outbox))
	for _, event := range s.outbox {
		seen[event.AggregateID] = struct{}{}
	}

	var missing []string
	for _, id := range aggregateIDs {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
