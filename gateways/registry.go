package gateways

import (
	"sort"
	"sync"
	"time"

	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/upi"
	"github.com/Govind-619/PayRoute/utils"
)

// Constructor builds an uninitialized adapter.
type Constructor func() Adapter

// Registry maps a provider tag to its adapter constructor.
type Registry struct {
	mu    sync.RWMutex
	ctors map[models.GatewayType]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[models.GatewayType]Constructor)}
}

// Register adds or replaces the constructor for t.
func (r *Registry) Register(t models.GatewayType, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[t] = ctor
}

// New returns a fresh adapter for t, or a ConfigurationError for an
// unregistered tag.
func (r *Registry) New(t models.GatewayType) (Adapter, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[t]
	r.mu.RUnlock()
	if !ok {
		return nil, utils.ConfigurationError("unsupported gateway type "+string(t), nil)
	}
	return ctor(), nil
}

func (r *Registry) Types() []models.GatewayType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.GatewayType, 0, len(r.ctors))
	for t := range r.ctors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DefaultRegistry registers every built-in provider. UPI adapters share
// service for their UpiTransaction bookkeeping.
func DefaultRegistry(service *upi.Service, upiTTL time.Duration) *Registry {
	r := NewRegistry()
	r.Register(models.GatewayStripe, NewStripeAdapter)
	r.Register(models.GatewayPayPal, NewPayPalAdapter)
	r.Register(models.GatewayRazorpay, NewRazorpayAdapter)
	r.Register(models.GatewayPayU, NewPayUAdapter)
	for _, t := range []models.GatewayType{models.GatewayPhonePe, models.GatewayGPay, models.GatewayPaytm, models.GatewayBHIM} {
		kind := t
		r.Register(kind, func() Adapter { return NewUPIAdapter(kind, service, upiTTL) })
	}
	return r
}
