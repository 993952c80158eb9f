package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/asynkron/protoactor-go/actor"

	"github.com/vantrix/realmcore/configs"
	"github.com/vantrix/realmcore/internal/codec"
	"github.com/vantrix/realmcore/internal/dispatch"
	"github.com/vantrix/realmcore/internal/game"
	"github.com/vantrix/realmcore/internal/handlers"
	"github.com/vantrix/realmcore/internal/logging"
	"github.com/vantrix/realmcore/internal/observability"
	"github.com/vantrix/realmcore/internal/persistence"
	"github.com/vantrix/realmcore/internal/session"
	"github.com/vantrix/realmcore/internal/transport"
	"github.com/vantrix/realmcore/internal/workerpool"
)

// Protocol/method keys for the handlers registered at startup. A real
// deployment would generate these from an IDL; this module hand-wires
// a small fixed set matching internal/handlers.
const (
	protoAuth    = 1<<8 | 1
	protoPing    = 2<<8 | 1
	protoEcho    = 2<<8 | 2
	protoProfile = 3<<8 | 1
	protoGrantXP = 3<<8 | 2
)

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := configs.Load(configPath)
	if err != nil {
		logging.Fatalf("config: %v", err)
	}
	logging.Configure(cfg.Observability.LogLevel)
	logging.Infof("realmcore starting, tcp=%s:%d persistence=%s", cfg.Server.Host, cfg.Server.TCPPort, cfg.Persistence.Kind)

	store := openStore(cfg)
	defer store.Close()

	metrics, err := observability.New()
	if err != nil {
		logging.Fatalf("observability: %v", err)
	}
	metrics.Serve(cfg.Observability.MetricsAddr)

	ps := actor.NewActorSystem()
	players := game.NewPlayerSystem(ps, store, metrics)
	players.StartMaintenance()

	pool := workerpool.New(64, 1024)
	defer pool.Close()

	mgr := session.NewManager(session.Config{
		ReconnectGrace: time.Duration(cfg.Session.ReconnectGraceMs) * time.Millisecond,
		OutboxCapacity: cfg.Session.OutboxCapacity,
	})

	reg := dispatch.NewRegistry()
	creds := noopCredentials{}
	handlers.RegisterLogin(reg, mgr, creds, protoAuth)
	handlers.RegisterPing(reg, protoPing)
	handlers.RegisterEcho(reg, protoEcho)
	handlers.RegisterProfile(reg, protoProfile, protoGrantXP)

	c := codec.New(codec.DefaultMaxFrame)
	disp := dispatch.New(reg, c, mgr, players, pool, handlers.JSONReply{}, metrics)
	disp.DefaultDelay = time.Duration(cfg.Dispatcher.DefaultTimeoutMs) * time.Millisecond

	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.TCPPort)))
	if err != nil {
		logging.Fatalf("listen: %v", err)
	}
	logging.Infof("tcp listener up on %s", ln.Addr().String())

	var wsServer *http.Server
	if cfg.Transport.WebsocketEnabled {
		wsServer = transport.Serve(cfg.Transport.WebsocketAddr, cfg.Transport.WebsocketPath, func(conn net.Conn) {
			handleConnection(conn, mgr, disp)
		})
		logging.Infof("websocket listener up on %s%s", cfg.Transport.WebsocketAddr, cfg.Transport.WebsocketPath)
	}

	go acceptLoop(ln, mgr, disp)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Infof("shutdown signal received, draining")

	_ = ln.Close()
	if wsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = wsServer.Shutdown(shutdownCtx)
		cancel()
	}

	players.Shutdown(10 * time.Second)

	metricsCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	metrics.Shutdown(metricsCtx)
	cancel()

	logging.Infof("realmcore shut down cleanly")
}

func openStore(cfg *configs.Config) persistence.KeyValueStore {
	switch cfg.Persistence.Kind {
	case "redis":
		store, err := persistence.NewRedisStore(context.Background(), persistence.RedisConfig{Addr: cfg.Persistence.RedisAddr})
		if err != nil {
			logging.Fatalf("persistence: redis: %v", err)
		}
		return store
	case "postgres":
		store, err := persistence.NewPostgresStore(context.Background(), cfg.Persistence.DSN)
		if err != nil {
			logging.Fatalf("persistence: postgres: %v", err)
		}
		return store
	default:
		return persistence.NewMemoryStore()
	}
}

func acceptLoop(ln net.Listener, mgr *session.Manager, disp *dispatch.Dispatcher) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logging.Warnf("accept: %v", err)
			continue
		}
		go handleConnection(conn, mgr, disp)
	}
}

func handleConnection(conn net.Conn, mgr *session.Manager, disp *dispatch.Dispatcher) {
	sess := mgr.CreateSession(conn)
	defer mgr.OnDisconnect(sess)

	reader := codec.NewReader(conn, disp.Codec)
	for {
		msg, err := reader.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logging.Warnf("session %d: read error: %v", sess.ID(), err)
			}
			return
		}
		disp.Dispatch(context.Background(), sess, msg)
	}
}

// noopCredentials is a placeholder account-service client: it accepts
// any non-empty account/token pair. A real deployment replaces this
// with a client for the actual account service.
type noopCredentials struct{}

func (noopCredentials) Authenticate(account, token string) (uint64, string, error) {
	if account == "" || token == "" {
		return 0, "", errors.New("account and token are required")
	}
	return hashAccount(account), account, nil
}

// hashAccount derives a stable, non-zero roleID from an account
// string so the same account always resolves to the same entity.
func hashAccount(account string) uint64 {
	var h uint64 = 1469598103934665603
	for _, b := range []byte(account) {
		h ^= uint64(b)
		h *= 1099511628211
	}
	if h == 0 {
		h = 1
	}
	return h
}
