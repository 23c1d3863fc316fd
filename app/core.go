// Package app wires PayRoute's components with fx. Core is everything a
// command needs to touch payments; HTTP and Worker add the long running
// parts of `serve`.
package app

import (
	"github.com/Govind-619/PayRoute/config"
	"github.com/Govind-619/PayRoute/events"
	"github.com/Govind-619/PayRoute/gateways"
	"github.com/Govind-619/PayRoute/repository"
	"github.com/Govind-619/PayRoute/services"
	"github.com/Govind-619/PayRoute/upi"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Core = fx.Options(
	fx.Provide(
		provideDB,
		provideBus,
		upi.SystemClock,

		repository.NewGatewayRepository,
		repository.NewMethodRepository,
		repository.NewTransactionRepository,
		repository.NewUpiRepository,
		repository.NewWebhookEventRepository,
		repository.NewInvoiceRepository,
		repository.NewLinkRepository,

		upi.NewService,
		provideRegistry,
		services.NewAdapterCache,
		provideGatewayFactory,
		provideTransactionService,
		services.NewWebhookService,
		services.NewInvoiceService,
		services.NewPaymentLinkService,
	),
	fx.Invoke(registerSubscribers),
)

func provideDB(cfg *config.Config) (*gorm.DB, error) {
	return config.InitDB(cfg)
}

func provideBus() events.Bus {
	return events.NewInMemoryBus()
}

func provideRegistry(service *upi.Service, cfg *config.Config) *gateways.Registry {
	return gateways.DefaultRegistry(service, cfg.UPIPendingTTL)
}

func provideGatewayFactory(repo *repository.GatewayRepository, registry *gateways.Registry, cache *services.AdapterCache, cfg *config.Config) *services.GatewayFactory {
	return services.NewGatewayFactory(repo, registry, cache, cfg.WebhookTolerance)
}

func provideTransactionService(txns *repository.TransactionRepository, methods *repository.MethodRepository, factory *services.GatewayFactory, bus events.Bus, cfg *config.Config) *services.TransactionService {
	return services.NewTransactionService(txns, methods, factory, bus, services.TransactionConfig{
		CallbackBaseURL: cfg.CallbackBaseURL,
		GatewayTimeout:  cfg.GatewayTimeout,
	})
}

// registerSubscribers hooks the event consumers up before anything publishes.
// Taking the transaction service forces its construction, which subscribes it
// to UPI expiries.
func registerSubscribers(bus events.Bus, invoices services.InvoiceService, _ *services.TransactionService) {
	services.SubscribeInvoiceUpdates(bus, invoices)
}
