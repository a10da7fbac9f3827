package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campuswallet/backend/services/campus-service/internal/events"
	"campuswallet/backend/services/campus-service/internal/models"
	"campuswallet/backend/services/campus-service/internal/repository"
)

// ItemService manages the catalog of every module.
type ItemService struct {
	store     repository.Store
	publisher events.Publisher
	logger    *zap.Logger
}

// NewItemService builds the catalog service.
func NewItemService(store repository.Store, publisher events.Publisher, logger *zap.Logger) *ItemService {
	if publisher == nil {
		publisher = events.Nop
	}
	return &ItemService{store: store, publisher: publisher, logger: logger}
}

// Create adds an item and announces it.
func (s *ItemService) Create(ctx context.Context, item *models.Item) (*models.Item, error) {
	item.ID = uuid.NewString()
	normalizeItem(item)
	if err := validateItem(item); err != nil {
		return nil, err
	}
	if err := s.store.Repos().Items.Create(ctx, item); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, err
	}

	s.logger.Info("item created",
		zap.String("item_id", item.ID),
		zap.String("type", string(item.Type)),
		zap.Int("quantity", item.Quantity),
	)
	s.publisher.Publish(ctx, events.Event{Type: events.ItemNew, Payload: item})
	return item, nil
}

// Get returns one item.
func (s *ItemService) Get(ctx context.Context, id string) (*models.Item, error) {
	return loadItem(ctx, s.store.Repos(), id)
}

// List returns items of a module, or every item when itemType is empty.
func (s *ItemService) List(ctx context.Context, itemType models.Module) ([]models.Item, error) {
	if itemType != "" && !itemType.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidInput, itemType)
	}
	return s.store.Repos().Items.List(ctx, itemType)
}

// Update replaces an item's fields. The type cannot change once transactions reference it.
func (s *ItemService) Update(ctx context.Context, id string, item *models.Item) (*models.Item, error) {
	item.ID = id
	normalizeItem(item)
	if err := validateItem(item); err != nil {
		return nil, err
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		current, err := loadItem(ctx, repos, id)
		if err != nil {
			return err
		}
		if current.Type != item.Type {
			return fmt.Errorf("%w: item type cannot change", ErrInvalidInput)
		}
		if err := repos.Items.Update(ctx, item); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrItemNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("item updated", zap.String("item_id", id), zap.Int("quantity", item.Quantity))
	return item, nil
}

// Delete removes an item. Transactions that referenced it keep their record without the link.
func (s *ItemService) Delete(ctx context.Context, id string) error {
	if err := s.store.Repos().Items.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrItemNotFound
		}
		return err
	}
	s.logger.Info("item deleted", zap.String("item_id", id))
	return nil
}

func normalizeItem(item *models.Item) {
	item.Name = strings.TrimSpace(item.Name)
	item.Author = strings.TrimSpace(item.Author)
	item.ISBN = strings.TrimSpace(item.ISBN)
	item.Publisher = strings.TrimSpace(item.Publisher)
	topics := item.Topics[:0]
	for _, topic := range item.Topics {
		if topic = strings.TrimSpace(topic); topic != "" {
			topics = append(topics, topic)
		}
	}
	item.Topics = topics
	if item.Type != models.ModuleLibrary {
		item.Topics, item.Author, item.ISBN, item.Publisher, item.Year = nil, "", "", "", 0
	}
}

func validateItem(item *models.Item) error {
	switch {
	case !item.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalidInput, item.Type)
	case item.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case item.Price < 0:
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidInput)
	case item.Quantity < 0:
		return fmt.Errorf("%w: quantity cannot be negative", ErrInvalidInput)
	}
	return nil
}
