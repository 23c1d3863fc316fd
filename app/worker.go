package app

import (
	"context"

	"github.com/Govind-619/PayRoute/config"
	"github.com/Govind-619/PayRoute/events"
	"github.com/Govind-619/PayRoute/repository"
	"github.com/Govind-619/PayRoute/upi"
	"go.uber.org/fx"
)

// Sweep provides the UPI expiry sweeper without starting it.
var Sweep = fx.Provide(provideSweeper)

// Worker runs the sweeper for the lifetime of the app.
var Worker = fx.Options(
	Sweep,
	fx.Invoke(startSweeper),
)

func provideSweeper(repo *repository.UpiRepository, bus events.Bus, clock upi.Clock, cfg *config.Config) *upi.Sweeper {
	return upi.NewSweeper(repo, bus, clock, cfg.UPISweepInterval, cfg.UPIPendingTTL)
}

func startSweeper(lc fx.Lifecycle, sweeper *upi.Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			sweeper.Start(context.Background())
			return nil
		},
		OnStop: func(context.Context) error {
			sweeper.Stop()
			return nil
		},
	})
}
