package auth

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"

	"github.com/FACorreiaa/munchmate-api/config"
)

const oauthSessionMaxAge = 10 * 60

// SetupProviders registers the configured OAuth providers with gothic and
// reports whether any were enabled.
func SetupProviders(cfg config.OAuthConfig, secureCookies bool, logger *slog.Logger) bool {
	if cfg.Google.ClientID == "" || cfg.Google.ClientSecret == "" {
		logger.Info("Google sign-in disabled: client credentials not configured")
		return false
	}
	if cfg.SessionSecret == "" {
		logger.Warn("Google sign-in disabled: session secret not configured")
		return false
	}

	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.MaxAge(oauthSessionMaxAge)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secureCookies
	store.Options.SameSite = http.SameSiteLaxMode
	gothic.Store = store

	goth.UseProviders(
		google.New(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL, "email", "profile"),
	)
	logger.Info("Google sign-in enabled", slog.String("callback", cfg.Google.CallbackURL))
	return true
}
