package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	appLogger "github.com/FACorreiaa/munchmate-api/app/logger"
	_ "github.com/FACorreiaa/munchmate-api/docs"
	"github.com/FACorreiaa/munchmate-api/internal/api/auth"
	"github.com/FACorreiaa/munchmate-api/internal/container"
)

const (
	authRateLimit   = 20
	authRateWindow  = time.Minute
	requestTimeout  = 60 * time.Second
	serverOperation = "munchmate-api"
)

// SetupRouter builds the HTTP surface: server-wide middleware, public
// routes and the JWT-protected /api/v1 group.
func SetupRouter(c *container.Container) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appLogger.StructuredLogger(c.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   c.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", ping)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", ping)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("doc.json")))

		r.Route("/auth", func(r chi.Router) {
			r.Use(httprate.LimitByIP(authRateLimit, authRateWindow))
			r.Post("/signup", c.AuthHandler.Signup)
			r.Post("/login", c.AuthHandler.Login)
			r.Get("/{provider}", c.AuthHandler.BeginProviderAuth)
			r.Get("/{provider}/callback", c.AuthHandler.ProviderCallback)
		})

		// Streaming routes manage their own deadlines.
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(c.Logger, c.Config.JWT, auth.AllowQueryToken()))
			r.Get("/chat/stream", c.ChatbotHandler.ChatStream)
			r.Get("/chat/ws", c.ChatbotHandler.ChatWebSocket)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(c.Logger, c.Config.JWT))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(requestTimeout))
				r.Use(middleware.Compress(5, "application/json"))

				r.Get("/restaurants/search", c.RestaurantHandler.SearchRestaurants)
				r.Get("/restaurants/{id}", c.RestaurantHandler.GetRestaurant)
				r.Post("/restaurants", c.RestaurantHandler.SaveRestaurants)

				r.Post("/clicks", c.ClickHandler.TrackClick)
				r.Get("/clicks/history", c.ClickHandler.GetOwnHistory)
				r.Get("/clicks/history/{userID}", c.ClickHandler.GetHistory)
				r.Delete("/clicks/history", c.ClickHandler.ClearHistory)

				r.Post("/recommendations", c.RecommendationHandler.Recommend)

				r.Get("/preferences", c.PreferencesHandler.GetPreferences)
				r.Put("/preferences", c.PreferencesHandler.UpdatePreferences)

				r.Post("/chat", c.ChatbotHandler.Chat)
				r.Get("/chat/history", c.ChatbotHandler.GetHistory)
				r.Delete("/chat/history", c.ChatbotHandler.ClearHistory)
			})
		})
	})

	return otelhttp.NewHandler(r, serverOperation)
}

// ping godoc
// @Summary      Liveness check
// @Tags         Health
// @Produce      plain
// @Success      200 {string} string "pong"
// @Router       /ping [get]
func ping(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("pong"))
}
