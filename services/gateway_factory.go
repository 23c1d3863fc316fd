package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Govind-619/PayRoute/gateways"
	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/repository"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/shopspring/decimal"
)

// GatewayFactory turns gateway rows into initialized adapters and picks the
// cheapest gateway for auto-routed payments.
type GatewayFactory struct {
	repo      *repository.GatewayRepository
	registry  *gateways.Registry
	cache     *AdapterCache
	tolerance time.Duration
}

func NewGatewayFactory(repo *repository.GatewayRepository, registry *gateways.Registry, cache *AdapterCache, webhookTolerance time.Duration) *GatewayFactory {
	if cache == nil {
		cache = NewAdapterCache()
	}
	return &GatewayFactory{repo: repo, registry: registry, cache: cache, tolerance: webhookTolerance}
}

// Resolve loads the gateway row and its adapter. The adapter is nil when the
// row is not selectable or its configuration was rejected; the row is nil
// only when it does not exist.
func (f *GatewayFactory) Resolve(ctx context.Context, gatewayID uint) (*models.PaymentGateway, gateways.Adapter, error) {
	gw, err := f.repo.FindByID(ctx, gatewayID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.LogDebug("Gateway %d not found", gatewayID)
			return nil, nil, nil
		}
		utils.LogError("Failed to load gateway %d: %v", gatewayID, err)
		return nil, nil, err
	}
	if !gw.IsSelectable() {
		utils.LogDebug("Gateway %d is not selectable (enabled=%v status=%s)", gw.ID, gw.IsEnabled, gw.Status)
		return gw, nil, nil
	}
	return gw, f.adapterFor(gw), nil
}

// GetGatewayService returns the adapter for gatewayID, or nil when the
// gateway is missing, disabled or misconfigured.
func (f *GatewayFactory) GetGatewayService(ctx context.Context, gatewayID uint) (gateways.Adapter, error) {
	_, adapter, err := f.Resolve(ctx, gatewayID)
	return adapter, err
}

func (f *GatewayFactory) adapterFor(gw *models.PaymentGateway) gateways.Adapter {
	version := gw.ConfigVersion()
	if entry, ok := f.cache.Get(gw.ID, version); ok {
		if entry.Err != nil {
			return nil
		}
		return entry.Adapter
	}

	adapter, err := f.build(gw)
	if err != nil {
		utils.LogError("Gateway %d (%s) failed to initialize: %v", gw.ID, gw.Type, err)
		f.cache.Put(gw.ID, version, nil, err)
		return nil
	}
	utils.LogInfo("Gateway %d (%s) initialized", gw.ID, gw.Type)
	f.cache.Put(gw.ID, version, adapter, nil)
	return adapter
}

func (f *GatewayFactory) build(gw *models.PaymentGateway) (gateways.Adapter, error) {
	adapter, err := f.registry.New(gw.Type)
	if err != nil {
		return nil, err
	}
	cfg, err := f.configFor(gw)
	if err != nil {
		return nil, err
	}
	if err := adapter.Initialize(cfg); err != nil {
		return nil, err
	}
	return adapter, nil
}

func (f *GatewayFactory) configFor(gw *models.PaymentGateway) (gateways.Config, error) {
	cfg := gateways.Config{
		GatewayID:        gw.ID,
		Type:             gw.Type,
		Configuration:    map[string]interface{}{},
		Credentials:      map[string]string{},
		IsSandbox:        gw.IsSandbox,
		FeePercentage:    gw.FeePercentage,
		FeeFixed:         gw.FeeFixed,
		MethodFees:       gw.MethodFeeOverrides(),
		WebhookTolerance: f.tolerance,
	}
	if len(gw.Configuration) > 0 {
		if err := json.Unmarshal(gw.Configuration, &cfg.Configuration); err != nil {
			return cfg, utils.ConfigurationError("gateway configuration is not valid JSON", err)
		}
	}
	if len(gw.Credentials) > 0 {
		var raw map[string]interface{}
		if err := json.Unmarshal(gw.Credentials, &raw); err != nil {
			return cfg, utils.ConfigurationError("gateway credentials are not valid JSON", err)
		}
		for k, v := range raw {
			switch val := v.(type) {
			case string:
				cfg.Credentials[k] = val
			case nil:
			default:
				cfg.Credentials[k] = fmt.Sprint(val)
			}
		}
	}
	return cfg, nil
}

// GetOptimalGateway returns the organization's cheapest gateway able to take
// amount in currency through method. Candidates are visited in priority order
// and only a strictly lower fee replaces the current pick.
func (f *GatewayFactory) GetOptimalGateway(ctx context.Context, orgID uint, amount decimal.Decimal, currency string, method models.MethodType) (*models.PaymentGateway, error) {
	utils.LogInfo("Optimal gateway lookup: org=%d amount=%s currency=%s method=%s", orgID, amount, currency, method)

	candidates, err := f.repo.ListActiveByOrg(ctx, orgID)
	if err != nil {
		utils.LogError("Failed to list gateways for org %d: %v", orgID, err)
		return nil, err
	}

	var (
		best    *models.PaymentGateway
		bestFee decimal.Decimal
	)
	for i := range candidates {
		gw := &candidates[i]
		adapter := f.adapterFor(gw)
		if adapter == nil {
			continue
		}
		if !gateways.Supports(adapter, currency, method) {
			utils.LogDebug("Gateway %d skipped: %s/%s unsupported", gw.ID, currency, method)
			continue
		}
		fee := adapter.TransactionFees(amount, currency, method).Total(amount)
		if best == nil || fee.LessThan(bestFee) {
			best, bestFee = gw, fee
		}
	}

	if best == nil {
		utils.LogInfo("No gateway of org %d supports %s/%s", orgID, currency, method)
		return nil, nil
	}
	utils.LogInfo("Optimal gateway for org %d is %d (%s) with fee %s", orgID, best.ID, best.Type, bestFee)
	return best, nil
}

// CheckHealth probes the gateway and records the result on the row.
func (f *GatewayFactory) CheckHealth(ctx context.Context, gatewayID uint, timeout time.Duration) (bool, error) {
	gw, adapter, err := f.Resolve(ctx, gatewayID)
	if err != nil {
		return false, err
	}
	if gw == nil {
		return false, utils.NotFoundError("Gateway not found", nil)
	}

	healthy := false
	if adapter != nil {
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		healthy = adapter.CheckHealth(probeCtx)
		cancel()
	}
	if err := f.repo.SetHealthy(ctx, gw.ID, healthy); err != nil {
		utils.LogError("Failed to record health of gateway %d: %v", gw.ID, err)
		return healthy, err
	}
	utils.LogInfo("Gateway %d health: %v", gw.ID, healthy)
	return healthy, nil
}

func (f *GatewayFactory) ClearCache() {
	utils.LogInfo("Clearing %d cached gateway adapter(s)", f.cache.Len())
	f.cache.Clear()
}
