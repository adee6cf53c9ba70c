package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shohag/msgboard/internal/models"
)

// ListAfter collects stored messages in iteration order. A non-empty
// cursor drops everything up to and including the last message whose id
// equals it; a cursor that matches nothing yields an empty list.
func ListAfter(ctx context.Context, store Store, after string) ([]json.RawMessage, error) {
	list := make([]json.RawMessage, 0)
	seen := after == ""
	err := store.EachItem(ctx, func(key, value string) error {
		raw := json.RawMessage(value)
		if !json.Valid(raw) {
			return fmt.Errorf("corrupt item: %s", key)
		}
		if after != "" && models.PeekID(raw) == after {
			list = list[:0]
			seen = true
			return nil
		}
		if seen {
			list = append(list, raw)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}
