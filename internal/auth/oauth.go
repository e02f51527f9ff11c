package auth

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/facebook"
	"github.com/markbates/goth/providers/google"
	"go.uber.org/zap"

	"returnbox_back_end/internal/config"
)

// SetupOAuth enregistre les fournisseurs configurés et retourne leur nombre.
// Le cookie gorilla ne sert qu'à l'aller-retour OAuth (state, rôle demandé).
func SetupOAuth(cfg config.OAuthSettings, baseURL, sessionSecret string, secure bool) int {
	store := sessions.NewCookieStore([]byte(sessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	gothic.Store = store

	callback := func(provider string) string {
		return baseURL + "/api/auth/oauth/" + provider + "/callback"
	}

	var providers []goth.Provider
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		providers = append(providers, google.New(cfg.GoogleClientID, cfg.GoogleClientSecret, callback("google"), "email", "profile"))
		zap.S().Info("✅ Google OAuth activé")
	}
	if cfg.FacebookClientID != "" && cfg.FacebookClientSecret != "" {
		providers = append(providers, facebook.New(cfg.FacebookClientID, cfg.FacebookClientSecret, callback("facebook"), "email"))
		zap.S().Info("✅ Facebook OAuth activé")
	}

	if len(providers) == 0 {
		zap.S().Warn("⚠️ Aucun provider OAuth configuré")
		return 0
	}
	goth.UseProviders(providers...)
	zap.S().Infof("✅ %d OAuth provider(s) initialisé(s)", len(providers))
	return len(providers)
}
