package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/surveycash/surveycash-backend/api/controllers"
	"github.com/surveycash/surveycash-backend/api/middleware"
	"github.com/surveycash/surveycash-backend/internal/accounts"
	"github.com/surveycash/surveycash-backend/internal/ledger"
	"github.com/surveycash/surveycash-backend/internal/offerwall"
	"github.com/surveycash/surveycash-backend/internal/rewards"
	"github.com/surveycash/surveycash-backend/internal/withdrawals"
	"github.com/surveycash/surveycash-backend/pkg/config"
	"github.com/surveycash/surveycash-backend/pkg/logger"
	"github.com/surveycash/surveycash-backend/pkg/redis"
)

// redisClient is the slice of *redis.Client the HTTP layer needs.
type redisClient interface {
	Ping(ctx context.Context) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	cache redisClient,
	gatherer prometheus.Gatherer,
	rewardApplier rewards.Applier,
	accountsService accounts.Service,
	ledgerService ledger.Service,
	withdrawalsService withdrawals.Service,
	wallBuilder *offerwall.Builder,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	var redisPinger controllers.Pinger
	var limiter redis.RateLimiter
	if cache != nil {
		redisPinger = cache
		limiter = cache
	}
	cashoutPolicy := middleware.NewRateLimitPolicy("cashout", cfg.Payouts.RequestLimit, cfg.Payouts.RequestWindow)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/cpx/postback", controllers.RewardPostback(rewardApplier, logg))

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/stats", controllers.PublicStats(accountsService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/account", controllers.AccountSummary(accountsService, logg))
		r.Get("/account/ledger", controllers.AccountLedger(accountsService, ledgerService, logg))
		r.Get("/withdrawals", controllers.ListWithdrawals(withdrawalsService, logg))
		r.Get("/surveys/cpx", controllers.SurveyWallLink(wallBuilder, logg))

		r.Route("/cashout", func(r chi.Router) {
			r.With(middleware.RateLimit(cashoutPolicy, limiter, logg)).
				Post("/", controllers.Cashout(withdrawalsService, accountsService, cfg.Payouts.RedirectPath, logg))
			r.Post("/{withdrawalId}/status", controllers.CashoutStatus(withdrawalsService, logg))
		})
	})

	return r
}
