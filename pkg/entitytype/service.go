package entitytype

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"wikibridge/pkg/config"
	"wikibridge/pkg/extentity"
	"wikibridge/pkg/store"
)

// ChangeHook is told about every validated storage form before it is saved.
// *searchsync.ChangeDetector implements it.
type ChangeHook interface {
	StorageConfigSubmitted(ctx context.Context, entityTypeID string, previous, submitted extentity.StorageConfig) (int, error)
}

// Service runs the storage form flow: validate, detect change, save.
type Service struct {
	store    store.EntityTypeStore
	registry *Registry
	hook     ChangeHook
	logger   *slog.Logger
}

// NewService creates the service. hook may be nil.
func NewService(st store.EntityTypeStore, reg *Registry, hook ChangeHook, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, registry: reg, hook: hook, logger: logger}
}

// StorageForm renders the stored configuration of an entity type.
func (s *Service) StorageForm(ctx context.Context, typeID string) (extentity.Form, error) {
	et, err := s.get(ctx, typeID)
	if err != nil {
		return extentity.Form{}, err
	}
	return FormDefaults(et.Client, et.Storage), nil
}

// SubmitStorageForm validates and saves a storage form. A validation
// failure is returned as *extentity.ValidationError and nothing is saved.
// The returned count is the number of queued index retracks.
func (s *Service) SubmitStorageForm(ctx context.Context, typeID string, f extentity.Form) (int, error) {
	et, err := s.get(ctx, typeID)
	if err != nil {
		return 0, err
	}
	return s.submit(ctx, et, f)
}

func (s *Service) submit(ctx context.Context, et *store.EntityType, f extentity.Form) (int, error) {
	cfg, err := ValidateForm(et.Client, f)
	if err != nil {
		return 0, err
	}

	queued := 0
	if s.hook != nil {
		// Best effort: a lost retrack must not block the save.
		queued, err = s.hook.StorageConfigSubmitted(ctx, et.ID, et.Storage, cfg)
		if err != nil {
			s.logger.Error("Change detection failed", "entity_type", et.ID, "error", err)
		}
	}

	et.Storage = cfg
	if err := s.store.SaveEntityType(ctx, et); err != nil {
		return queued, fmt.Errorf("failed to save entity type %s: %w", et.ID, err)
	}
	if s.registry != nil {
		s.registry.Invalidate(et.ID)
	}
	s.logger.Info("Storage configuration saved", "entity_type", et.ID, "retracks", queued)
	return queued, nil
}

func (s *Service) get(ctx context.Context, typeID string) (*store.EntityType, error) {
	et, err := s.store.GetEntityType(ctx, typeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entity type %s: %w", typeID, err)
	}
	if et == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeID)
	}
	return et, nil
}

const seedStatePrefix = "entity_type_seed:"

// Seed applies the entity types of the config file. A seed is submitted
// through the storage form flow when it is new or its text changed since
// the last start, so edits made through the API survive restarts.
func (s *Service) Seed(ctx context.Context, seeds []config.EntityTypeConfig, state store.StateStore) error {
	for _, seed := range seeds {
		sum, err := fingerprint(seed)
		if err != nil {
			return err
		}
		key := seedStatePrefix + seed.ID
		if prev, ok := state.GetState(ctx, key); ok && prev == sum {
			continue
		}

		et, err := s.store.GetEntityType(ctx, seed.ID)
		if err != nil {
			return fmt.Errorf("failed to load entity type %s: %w", seed.ID, err)
		}
		if et == nil {
			et = &store.EntityType{ID: seed.ID, Storage: extentity.DefaultStorageConfig()}
		}
		et.Label = seed.Label
		et.Client = seed.Client
		if et.Client == "" {
			et.Client = ClientWikibase
		}

		if _, err := s.submit(ctx, et, seed.Storage); err != nil {
			return fmt.Errorf("seed entity type %s: %w", seed.ID, err)
		}
		if err := state.SetState(ctx, key, sum); err != nil {
			return err
		}
		s.logger.Info("Seeded entity type", "entity_type", seed.ID, "client", et.Client)
	}
	return nil
}

func fingerprint(seed config.EntityTypeConfig) (string, error) {
	b, err := yaml.Marshal(seed)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:]), nil
}
