package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	domain "github.com/termitepreston/wigvana/internal/domain"
	"github.com/termitepreston/wigvana/internal/platform/config"
	"github.com/termitepreston/wigvana/internal/platform/observability"
	"github.com/termitepreston/wigvana/internal/repositories"
	"github.com/termitepreston/wigvana/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Inventory services.InventoryService
	Cart      services.CartService
	Placement services.OrderPlacementService
	Orders    services.OrderService
	System    services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

type containerOptions struct {
	logger *zap.Logger
	events services.OrderEventPublisher
	meter  metric.Meter
	build  services.BuildInfo
	probes []repositories.Probe
	clock  func() time.Time
}

// Option customises container construction.
type Option func(*containerOptions)

// WithLogger routes service diagnostics to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		o.logger = logger
	}
}

// WithEventPublisher sets the publisher used for post-commit domain events.
func WithEventPublisher(events services.OrderEventPublisher) Option {
	return func(o *containerOptions) {
		o.events = events
	}
}

// WithMeter overrides the meter used for service metrics.
func WithMeter(meter metric.Meter) Option {
	return func(o *containerOptions) {
		o.meter = meter
	}
}

// WithBuildInfo sets the version metadata reported by the system service.
func WithBuildInfo(build services.BuildInfo) Option {
	return func(o *containerOptions) {
		o.build = build
	}
}

// WithHealthProbes adds readiness probes alongside the repository backend check.
func WithHealthProbes(probes ...repositories.Probe) Option {
	return func(o *containerOptions) {
		o.probes = append(o.probes, probes...)
	}
}

// WithClock overrides the clock shared by every service.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewContainer constructs the runtime dependencies. Production wiring provides the Firestore
// registry, while tests and local runs can supply the in-memory store.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	options := containerOptions{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}

	svc, err := buildServices(ctx, reg, cfg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, opts containerOptions) (Services, error) {
	var svc Services
	logger := opts.logger

	inventorySvc, err := services.NewInventoryService(services.InventoryServiceDeps{
		Ledger: reg.Inventory(),
		Logger: observability.ServiceLogger(logger.Named("inventory"), "inventory log"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}
	svc.Inventory = inventorySvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:           reg.Carts(),
		Catalog:         reg.Catalog(),
		Inventory:       inventorySvc,
		UnitOfWork:      reg,
		Events:          opts.events,
		MaxLineQuantity: cfg.Commerce.MaxLineQuantity,
		Clock:           opts.clock,
		Logger:          observability.ServiceLogger(logger.Named("cart"), "cart log"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	placementSvc, err := services.NewOrderPlacementService(services.OrderPlacementServiceDeps{
		Carts:          reg.Carts(),
		Orders:         reg.Orders(),
		Catalog:        reg.Catalog(),
		Addresses:      reg.Addresses(),
		PaymentMethods: reg.PaymentMethods(),
		Inventory:      inventorySvc,
		UnitOfWork:     reg,
		Events:         opts.events,
		Pricing: domain.PricingPolicy{
			TaxRateBasisPoints: cfg.Commerce.TaxRateBasisPoints,
			FlatShipping:       cfg.Commerce.FlatShipping,
		},
		Meter:  opts.meter,
		Clock:  opts.clock,
		Logger: observability.ServiceLogger(logger.Named("placement"), "placement log"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order placement service: %w", err)
	}
	svc.Placement = placementSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Inventory:  inventorySvc,
		UnitOfWork: reg,
		Events:     opts.events,
		Clock:      opts.clock,
		Logger:     observability.ServiceLogger(logger.Named("orders"), "order log"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	healthRepo, err := healthRepository(reg.Health(), opts.probes)
	if err != nil {
		return Services{}, fmt.Errorf("build health repository: %w", err)
	}
	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: healthRepo,
		Clock:            opts.clock,
		Build:            opts.build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	return svc, nil
}

// healthRepository folds the registry's own report into a single "store" probe so extra
// infrastructure probes (redis, events, secrets) can be reported next to it.
func healthRepository(store repositories.HealthRepository, extra []repositories.Probe) (repositories.HealthRepository, error) {
	if len(extra) == 0 && store != nil {
		return store, nil
	}
	probes := make([]repositories.Probe, 0, len(extra)+1)
	if store != nil {
		probes = append(probes, repositories.Probe{
			Name: "store",
			Check: func(ctx context.Context) error {
				report, err := store.Collect(ctx)
				if err != nil {
					return err
				}
				for name, check := range report.Checks {
					if check.Status != domain.HealthStatusOK {
						return fmt.Errorf("%s: %s", name, check.Detail)
					}
				}
				return nil
			},
		})
	}
	probes = append(probes, extra...)
	return repositories.NewProbeHealthRepository(probes)
}
