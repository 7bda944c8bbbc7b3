package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/pureclean/api/internal/handlers"
	"github.com/pureclean/api/internal/platform/config"
	pfirestore "github.com/pureclean/api/internal/platform/firestore"
	"github.com/pureclean/api/internal/platform/jobs"
	"github.com/pureclean/api/internal/platform/observability"
	platformstorage "github.com/pureclean/api/internal/platform/storage"
	"github.com/pureclean/api/internal/repositories"
	"github.com/pureclean/api/internal/services"
)

// Services bundles the service-layer contracts handlers rely upon.
type Services struct {
	Wizard    services.WizardService
	Catalog   services.CatalogService
	Reference services.ReferenceDataService
	Engine    *services.PriceEngine
	Orders    services.OrderRepository
	Photos    services.PhotoStore
}

// Container wires repositories, services and platform clients for runtime
// use. Tests assemble services directly; the container exists for cmd/api.
type Container struct {
	Config   config.Config
	Services Services
	Handlers []handlers.Option

	firestore *pfirestore.Provider
	pubsub    *pubsub.Client
	storage   *cloudstorage.Client
}

// NewContainer constructs the runtime dependency graph from configuration.
// External clients are created lazily only when the configuration selects a
// backend that needs them, so a memory-backed instance starts with no cloud
// credentials at all.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		return nil, errors.New("di: logger is required")
	}

	c := &Container{Config: cfg}

	serviceLog := eventLogger(logger.Named("services"))

	sessions, priceList, orders, err := c.buildStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		PriceList: priceList,
		Logger:    serviceLog,
	})
	if err != nil {
		return nil, fmt.Errorf("di: build catalog service: %w", err)
	}

	modifierCatalog := services.NewModifierCatalog()
	referenceSvc, err := services.NewReferenceDataService(services.ReferenceDataServiceDeps{
		PriceList: priceList,
		Catalog:   modifierCatalog,
	})
	if err != nil {
		return nil, fmt.Errorf("di: build reference service: %w", err)
	}

	engine, err := services.NewPriceEngine(services.PriceEngineDeps{
		Catalog: modifierCatalog,
		Policy:  services.NewPricingPolicy(),
		Logger:  serviceLog,
	})
	if err != nil {
		return nil, fmt.Errorf("di: build price engine: %w", err)
	}

	var events services.OrderEventPublisher
	if cfg.Features.PublishOrderEvents {
		events, err = c.buildEventPublisher(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	sink, err := services.NewOrderSink(services.OrderSinkDeps{
		Orders: orders,
		Events: events,
		Logger: serviceLog,
	})
	if err != nil {
		return nil, fmt.Errorf("di: build order sink: %w", err)
	}

	wizardSvc, err := services.NewWizardService(services.WizardServiceDeps{
		Sessions: sessions,
		Catalog:  catalogSvc,
		Engine:   engine,
		Policy:   services.NewPricingPolicy(),
		Sink:     sink,
		Logger:   serviceLog,
	})
	if err != nil {
		return nil, fmt.Errorf("di: build wizard service: %w", err)
	}

	photos, err := c.buildPhotoStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c.Services = Services{
		Wizard:    wizardSvc,
		Catalog:   catalogSvc,
		Reference: referenceSvc,
		Engine:    engine,
		Orders:    orders,
		Photos:    photos,
	}

	wizardHandlers := handlers.NewWizardHandlers(wizardSvc, photos, cfg.Storage.PhotoURLTTL)
	pricingHandlers := handlers.NewPricingHandlers(engine)
	referenceHandlers := handlers.NewReferenceHandlers(catalogSvc, referenceSvc)
	orderHandlers := handlers.NewOrderHandlers(orders)

	c.Handlers = []handlers.Option{
		handlers.WithWizardRoutes(wizardHandlers.Routes),
		handlers.WithPricingRoutes(pricingHandlers.Routes),
		handlers.WithReferenceRoutes(referenceHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
	}

	return c, nil
}

// Close releases the external clients held by the container.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.pubsub != nil {
		if err := c.pubsub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub client: %w", err))
		}
	}
	if c.storage != nil {
		if err := c.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage client: %w", err))
		}
	}
	if c.firestore != nil {
		if err := c.firestore.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close firestore provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (c *Container) buildStores(ctx context.Context, cfg config.Config) (services.SessionStore, services.PriceListRepository, services.OrderRepository, error) {
	var sessions services.SessionStore
	var orders services.OrderRepository
	var priceList services.PriceListRepository

	switch cfg.Wizard.SessionBackend {
	case config.SessionBackendFirestore:
		provider, err := c.firestoreProvider(ctx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		sessionStore, err := repositories.NewFirestoreSessionStore(provider, "wizard_sessions",
			repositories.WithSessionTTL(cfg.Wizard.SessionTTL))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("di: build session store: %w", err)
		}
		orderRepo, err := repositories.NewFirestoreOrderRepository(provider, "orders")
		if err != nil {
			return nil, nil, nil, fmt.Errorf("di: build order repository: %w", err)
		}
		sessions = sessionStore
		orders = orderRepo
	default:
		sessions = repositories.NewMemorySessionStore()
		orders = repositories.NewMemoryOrderRepository()
	}

	if cfg.Features.UseBuiltinPriceList {
		priceList = repositories.NewStandardPriceList()
	} else {
		provider, err := c.firestoreProvider(ctx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		list, err := repositories.NewFirestorePriceList(provider, "price_list", "reference_lists")
		if err != nil {
			return nil, nil, nil, fmt.Errorf("di: build price list: %w", err)
		}
		priceList = list
	}

	return sessions, priceList, orders, nil
}

func (c *Container) firestoreProvider(ctx context.Context, cfg config.Config) (*pfirestore.Provider, error) {
	if c.firestore != nil {
		return c.firestore, nil
	}
	provider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := provider.Client(ctx); err != nil {
		return nil, fmt.Errorf("di: initialise firestore client: %w", err)
	}
	c.firestore = provider
	return provider, nil
}

func (c *Container) buildEventPublisher(ctx context.Context, cfg config.Config) (services.OrderEventPublisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("di: initialise pubsub client: %w", err)
	}
	c.pubsub = client
	publisher, err := jobs.NewPubSubOrderPublisher(client.Topic(cfg.PubSub.Topic))
	if err != nil {
		return nil, fmt.Errorf("di: build order publisher: %w", err)
	}
	return publisher, nil
}

func (c *Container) buildPhotoStore(ctx context.Context, cfg config.Config) (services.PhotoStore, error) {
	if cfg.Storage.PhotosBucket == "" {
		return nil, nil
	}
	client, err := cloudstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("di: initialise storage client: %w", err)
	}
	c.storage = client
	opts := []platformstorage.PhotoClientOption{
		platformstorage.WithMaxPhotoBytes(int64(cfg.Storage.MaxPhotoSizeMB) << 20),
	}
	if cfg.Storage.SignerKeyFile != "" {
		signer, err := platformstorage.NewServiceAccountSignerFromFile(cfg.Storage.SignerKeyFile)
		if err != nil {
			return nil, fmt.Errorf("di: load photo url signer: %w", err)
		}
		opts = append(opts, platformstorage.WithSigner(signer))
	}
	photos, err := platformstorage.NewPhotoClient(client, cfg.Storage.PhotosBucket, opts...)
	if err != nil {
		return nil, fmt.Errorf("di: build photo client: %w", err)
	}
	return photos, nil
}

// eventLogger adapts a zap logger to the map-based event logging contract the
// service layer uses. Identifier-like fields are sanitised before emission.
func eventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(ctx context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields))
		for k, v := range fields {
			switch k {
			case "sessionId", "orderId", "clientId", "itemId":
				if s, ok := v.(string); ok {
					zFields = append(zFields, zap.String(k, observability.SanitizeID(s)))
					continue
				}
			}
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Info(event, zFields...)
	}
}

// ReadinessChecks returns the health checks appropriate for the configured
// backends.
func (c *Container) ReadinessChecks() map[string]handlers.ReadinessCheck {
	checks := make(map[string]handlers.ReadinessCheck)
	if c.firestore != nil {
		provider := c.firestore
		checks["firestore"] = func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			_, err := provider.Client(ctx)
			return err
		}
	}
	return checks
}
