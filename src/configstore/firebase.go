package configstore

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ryansname/boilersim/src/combustion"
)

// FirebasePath is the Realtime Database node holding the configurations
const FirebasePath = "boiler_configurations"

// FirebaseStore keeps configurations in a Firebase Realtime Database, one child per id
type FirebaseStore struct {
	client *db.Client
	logger *zap.Logger
}

// NewFirebaseStore connects with a service account. The connection is checked once before returning.
func NewFirebaseStore(ctx context.Context, databaseURL, serviceAccountJSON string, logger *zap.Logger) (*FirebaseStore, error) {
	conf := &firebase.Config{
		DatabaseURL: databaseURL,
	}

	var opts []option.ClientOption
	if serviceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(serviceAccountJSON)))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting database client: %w", err)
	}

	s := &FirebaseStore{client: client, logger: logger}
	if err := s.testConnection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FirebaseStore) testConnection(ctx context.Context) error {
	const maxRetries = 3

	for attempt := 1; attempt <= maxRetries; attempt++ {
		var shallow map[string]any
		err := s.client.NewRef(FirebasePath).GetShallow(ctx, &shallow)
		if err == nil {
			s.logger.Info("Firebase connection successful")
			return nil
		}

		s.logger.Warn("Firebase connection failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	return fmt.Errorf("failed to connect to Firebase after %d attempts", maxRetries)
}

func (s *FirebaseStore) ref(id string) *db.Ref {
	return s.client.NewRef(FirebasePath + "/" + id)
}

func (s *FirebaseStore) List(ctx context.Context) ([]Config, error) {
	var configs map[string]Config
	if err := s.client.NewRef(FirebasePath).Get(ctx, &configs); err != nil {
		return nil, fmt.Errorf("listing configurations: %w", err)
	}

	out := make([]Config, 0, len(configs))
	for id, c := range configs {
		if c.ID == "" {
			c.ID = id
		}
		out = append(out, c)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *FirebaseStore) Get(ctx context.Context, id string) (Config, error) {
	var c Config
	if err := s.ref(id).Get(ctx, &c); err != nil {
		return Config{}, fmt.Errorf("reading configuration %s: %w", id, err)
	}
	// a missing node decodes as null
	if c.ID == "" {
		return Config{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

func (s *FirebaseStore) Save(ctx context.Context, name, description string, zones combustion.Zones, mix combustion.WasteMix) (Config, error) {
	c, err := newConfig(uuid.NewString(), name, description, time.Now().UTC(), zones, mix)
	if err != nil {
		return Config{}, err
	}
	if err := s.ref(c.ID).Set(ctx, c); err != nil {
		return Config{}, fmt.Errorf("saving configuration: %w", err)
	}
	s.logger.Info("Configuration saved", zap.String("id", c.ID), zap.String("name", c.Name))
	return c, nil
}

func (s *FirebaseStore) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.ref(id).Delete(ctx); err != nil {
		return fmt.Errorf("deleting configuration %s: %w", id, err)
	}
	return nil
}
