package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/openchami/node-waker/internal/api/waker"
	"github.com/openchami/node-waker/internal/arp"
	"github.com/openchami/node-waker/internal/config"
	"github.com/openchami/node-waker/internal/localnet"
	"github.com/openchami/node-waker/internal/probe"
	"github.com/openchami/node-waker/internal/registry"
	"github.com/openchami/node-waker/internal/wol"
	"github.com/openchami/node-waker/pkg/middleware"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

// App holds the components shared by the API and the CLI commands.
type App struct {
	Config     *config.Config
	Registry   *registry.Registry
	Topology   *localnet.Topology
	Resolver   *arp.Resolver
	Prober     *probe.Prober
	Dispatcher *wol.Dispatcher
}

func newApp(cfg *config.Config) (*App, error) {
	store, err := newStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}
	prober := probe.NewProber(cfg.ProbeTimeout)
	return &App{
		Config:     cfg,
		Registry:   registry.New(store, prober),
		Topology:   localnet.New(),
		Resolver:   arp.NewResolver(),
		Prober:     prober,
		Dispatcher: wol.NewDispatcher(cfg.WoLPort),
	}, nil
}

// Router builds the HTTP handler of the API.
func (a *App) Router() (http.Handler, error) {
	svc, err := waker.NewService(a.Registry, a.Topology, a.Resolver, a.Dispatcher, a.Config.Interface)
	if err != nil {
		return nil, err
	}

	var authMiddlewares []func(http.Handler) http.Handler
	if a.Config.JWTSecret != "" {
		ja := jwtauth.New("HS256", []byte(a.Config.JWTSecret), nil)
		authMiddlewares = append(authMiddlewares, jwtauth.Verifier(ja), middleware.RequireClaims(ja, "sub"))
	} else {
		log.Warn().Msg("No JWT secret configured, client management is open to anyone")
	}

	r := chi.NewRouter()
	r.Use(
		chimiddleware.RequestID,
		chimiddleware.RealIP,
		middleware.RequestLogger(log.Logger),
		chimiddleware.Recoverer,
		render.SetContentType(render.ContentTypeJSON),
	)
	r.Mount("/", waker.Routes(svc, authMiddlewares))
	return r, nil
}

func serveCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			app, err := newApp(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Serve(ctx)
		},
	}

	flags := cmd.Flags()
	flags.String("listen", "0.0.0.0:5555", "IPv4 address and port to listen on")
	addStorageFlags(flags)
	addWakeFlags(flags)
	flags.String("jwt-secret", "", "HS256 secret; when set, managing clients requires a token")
	return cmd
}

// Serve runs the API until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	handler, err := a.Router()
	if err != nil {
		return err
	}

	if a.Config.Interface != "" {
		if _, err := a.Topology.Identify(a.Config.Interface); err != nil {
			log.Warn().Err(err).Str("interface", a.Config.Interface).Msg("Configured network interface unusable, wake requests will fail until it appears")
		}
	} else if iface, err := a.Topology.Default(); err != nil {
		log.Warn().Err(err).Msg("No default network interface, requests must name one")
	} else {
		log.Info().Str("interface", iface.Name).Str("broadcast", iface.Broadcast).Msg("Default network interface")
	}

	ln, err := net.Listen("tcp4", a.Config.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.Config.Listen, err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", ln.Addr().String()).Str("storage", a.Registry.Backend()).Msg("Serving API")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
