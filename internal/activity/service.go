package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tailorcrm/tailorcrm/internal/storage"
)

type Service struct {
	repo storage.ActivityRepository
}

func NewService(repo storage.ActivityRepository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("new activity service: repository is nil")
	}
	return &Service{repo: repo}, nil
}

// Record stores event with canonical, sanitized JSON details.
func (s *Service) Record(ctx context.Context, event Event) error {
	if strings.TrimSpace(event.Action) == "" {
		return fmt.Errorf("record activity event: action is required")
	}
	if event.EntityType == "" {
		event.EntityType, _, _ = strings.Cut(event.Action, ".")
	}

	details, err := canonicalizeDetails(event.Details)
	if err != nil {
		return fmt.Errorf("record activity event: canonicalize details: %w", err)
	}

	entry := &storage.ActivityEvent{
		Action:     event.Action,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Details:    string(details),
		CreatedAt:  event.Timestamp,
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("record activity event: append: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]RecordedEvent, error) {
	events, err := s.repo.List(ctx, storage.ActivityFilter{
		Action:     filter.Action,
		EntityType: filter.EntityType,
		EntityID:   filter.EntityID,
		Limit:      filter.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list activity events: %w", err)
	}

	out := make([]RecordedEvent, 0, len(events))
	for _, event := range events {
		out = append(out, RecordedEvent{
			ID:          event.ID,
			Timestamp:   event.CreatedAt,
			Action:      event.Action,
			EntityType:  event.EntityType,
			EntityID:    event.EntityID,
			DetailsJSON: event.Details,
		})
	}
	return out, nil
}

func canonicalizeDetails(details any) (json.RawMessage, error) {
	if details == nil {
		return json.RawMessage(`{}`), nil
	}

	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode details json: %w", err)
	}

	clean, err := json.Marshal(sanitizeValue(decoded))
	if err != nil {
		return nil, fmt.Errorf("marshal sanitized details: %w", err)
	}
	return json.RawMessage(clean), nil
}

func sanitizeValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		clean := make(map[string]any, len(typed))
		for key, nested := range typed {
			if isSensitiveDetailKey(key) {
				continue
			}
			clean[key] = sanitizeValue(nested)
		}
		return clean
	case []any:
		out := make([]any, 0, len(typed))
		for _, nested := range typed {
			out = append(out, sanitizeValue(nested))
		}
		return out
	default:
		return value
	}
}

func isSensitiveDetailKey(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	for _, pattern := range sensitiveDetailPatterns {
		if strings.Contains(normalized, pattern) {
			return true
		}
	}
	return false
}

// Contact details stay in the customer row; the journal only names entities.
var sensitiveDetailPatterns = []string{
	"phone", "email", "address",
	"password", "token", "secret",
}
