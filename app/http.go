package app

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/Govind-619/PayRoute/config"
	"github.com/Govind-619/PayRoute/controllers"
	"github.com/Govind-619/PayRoute/routes"
	"github.com/Govind-619/PayRoute/services"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var HTTP = fx.Options(
	fx.Provide(
		controllers.NewPaymentController,
		controllers.NewWebhookController,
		controllers.NewUPIController,
		controllers.NewPaymentLinkController,
		provideAdminController,
		provideRouter,
	),
	fx.Invoke(startServer),
)

type routerParams struct {
	fx.In

	Config       *config.Config
	Payments     *controllers.PaymentController
	Webhooks     *controllers.WebhookController
	UPI          *controllers.UPIController
	PaymentLinks *controllers.PaymentLinkController
	Admin        *controllers.AdminGatewayController
}

func provideAdminController(factory *services.GatewayFactory, cfg *config.Config) *controllers.AdminGatewayController {
	return controllers.NewAdminGatewayController(factory, cfg.GatewayTimeout)
}

func provideRouter(p routerParams) *gin.Engine {
	if p.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	return routes.SetupRouter(routes.Controllers{
		Payments:     p.Payments,
		Webhooks:     p.Webhooks,
		UPI:          p.UPI,
		PaymentLinks: p.PaymentLinks,
		Admin:        p.Admin,
	}, p.Config.JWTSecret)
}

func startServer(lc fx.Lifecycle, engine *gin.Engine, cfg *config.Config) {
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: engine}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			utils.LogInfo("Server starting on port %s", cfg.Port)
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					utils.LogError("Error serving HTTP: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			utils.LogInfo("Stopping HTTP server")
			return srv.Shutdown(ctx)
		},
	})
}
