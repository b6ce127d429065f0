// Package server assembles the reference backend: authentication, the shop resources and
// the operational endpoints.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/plantitas/plantitas/internal/common/httpx"
	commonmiddleware "github.com/plantitas/plantitas/internal/common/middleware"
	"github.com/plantitas/plantitas/internal/devserver/apis"
	"github.com/plantitas/plantitas/internal/devserver/auth"
	"github.com/plantitas/plantitas/internal/devserver/config"
	"github.com/plantitas/plantitas/internal/devserver/store"
	"github.com/plantitas/plantitas/pkg/shopapi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServerVersion is the build version reported by /api/version/.
const ServerVersion = "0.4.0"

type ShopServer struct {
	Router *chi.Mux
	Store  *store.Store
	cfg    *config.ConfigParam
	authn  *auth.Authenticator
	media  *apis.Media
}

// CreateNewServer builds a server from a validated configuration. The store is seeded when
// the configuration asks for it.
func CreateNewServer(cfg *config.ConfigParam) (*ShopServer, error) {
	tokens, err := auth.NewTokenManager(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("creating token manager: %w", err)
	}
	s := &ShopServer{
		Router: chi.NewRouter(),
		Store:  store.New(cfg.Location()),
		cfg:    cfg,
		authn:  &auth.Authenticator{Tokens: tokens, Users: auth.NewUsers(cfg.Users)},
		media:  apis.NewMedia(),
	}
	if cfg.SeedCatalog {
		if err := s.Store.Seed(); err != nil {
			return nil, fmt.Errorf("seeding catalog: %w", err)
		}
	}
	return s, nil
}

// SetClock replaces the time source of token issuance and order timestamps.
func (s *ShopServer) SetClock(now func() time.Time) {
	s.authn.Tokens.SetClock(now)
	s.Store.SetClock(now)
}

func (s *ShopServer) MountHandlers() {
	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)
	s.Router.Use(commonmiddleware.SetTimeout(s.cfg.GetRequestTimeout()))
	if s.cfg.HandleCORS {
		s.Router.Use(s.corsHandler())
	}
	s.mountResourceHandlers(s.Router)

	if zerolog.GlobalLevel() <= zerolog.TraceLevel {
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			log.Trace().Str("method", method).Str("route", route).Msg("route")
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("walking routes")
		}
	}
}

func (s *ShopServer) mountResourceHandlers(r chi.Router) {
	r.Mount("/api/token", s.authn.TokenRouter())
	r.Get(shopapi.PathVersion, s.getVersion)
	r.Get("/ready", s.getReadiness)
	r.Get(apis.MediaPrefix+"{name}", s.media.ServeHTTP)

	api := &apis.API{Store: s.Store, Media: s.media, MaxBodySize: s.cfg.MaxRequestBodySize}
	r.Group(func(r chi.Router) {
		r.Use(s.authn.UserAuthMiddleware)
		r.Get(shopapi.PathMe, httpx.WrapHttpRsp(auth.GetMe))
		api.Router(r)
	})
}

func (s *ShopServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, shopapi.ServerInfo{
		Name:       "Plantitas reference backend",
		Version:    ServerVersion,
		APIVersion: shopapi.APIVersion,
	})
}

func (s *ShopServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *ShopServer) corsHandler() func(http.Handler) http.Handler {
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Location", "X-Request-ID", "WWW-Authenticate"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
