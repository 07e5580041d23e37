// Package api exposes the heritage service over HTTP with chi.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/swadeshi/heritage/pkg/heritage"
)

// handler carries what every resource handler needs
type handler struct {
	service heritage.Service
	logger  heritage.Logger
}

// Options configures the handlers built by NewRouter
type Options struct {
	Logger heritage.Logger
	Limits heritage.MediaLimits
}

// NewRouter mounts every resource behind token authentication.
func NewRouter(service heritage.Service, ja *jwtauth.JWTAuth, opts Options) chi.Router {
	if opts.Logger == nil {
		opts.Logger = discard{}
	}
	if opts.Limits.MaxImages <= 0 || opts.Limits.MaxImageBytes <= 0 {
		opts.Limits = heritage.DefaultMediaLimits()
	}

	base := handler{service: service, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(Authenticate(ja))
	r.Mount("/heritage", NewHeritageHandler(base, opts.Limits).Routes())
	r.Mount("/categories", NewCategoryHandler(base).Routes())
	r.Mount("/users", NewUserHandler(base).Routes())
	return r
}

type discard struct{}

func (discard) Infof(string, ...interface{})  {}
func (discard) Warnf(string, ...interface{})  {}
func (discard) Errorf(string, ...interface{}) {}
