package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"messaging-service/internal/cache"
	"messaging-service/internal/config"
	"messaging-service/internal/identity"
	"messaging-service/internal/repositories"
)

// buildResolver selects the identity provider named by identity.mode. The
// returned func releases any connection it opened.
func buildResolver(cfg *config.Config, database *sqlx.DB, store cache.Cache, logg *zap.Logger) (identity.Resolver, func(), error) {
	switch cfg.Identity.Mode {
	case config.IdentityModeJWT:
		return identity.NewJWTResolver(cfg.Identity.JWTSecret, cfg.Identity.JWTUserClaim), func() {}, nil
	case config.IdentityModeGRPC:
		conn, err := identity.DialAuth(cfg.Identity.GRPCAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("dial auth grpc: %w", err)
		}
		return identity.NewGRPCResolver(conn), func() { _ = conn.Close() }, nil
	default:
		sessions := repositories.NewSessionRepo(database)
		return identity.NewSessionResolver(sessions, store, cfg.Cache.SessionTTL, logg), func() {}, nil
	}
}
