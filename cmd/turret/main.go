package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/w1xm/turret_interface/cmdlog"
	"github.com/w1xm/turret_interface/config"
	"github.com/w1xm/turret_interface/herkulex"
	"github.com/w1xm/turret_interface/internal/modbus"
	"github.com/w1xm/turret_interface/sim"
	"github.com/w1xm/turret_interface/turret"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	configFile  = flag.String("config", "", "YAML config file")
	addr        = flag.String("addr", "", "address to listen on (overrides config)")
	linkKind    = flag.String("link", "", "link kind: herkulex, modbus or sim (overrides config)")
	serialPort  = flag.String("serial", "", "serial port name (overrides config)")
	logFile     = flag.String("log_file", "", "file to additionally log to, rotated (overrides config)")
	commandDB   = flag.String("command_db", "", "sqlite database for the command log (overrides config)")
	rotctldAddr = flag.String("rotctld_addr", "", "address to accept rotctld connections on")
)

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			return nil, err
		}
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *linkKind != "" {
		cfg.Link.Kind = *linkKind
	}
	if *serialPort != "" {
		cfg.Link.Port = *serialPort
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}
	if *commandDB != "" {
		cfg.CommandDB = *commandDB
	}
	return cfg, config.Validate(cfg)
}

// openLink connects to the boards. Background work the link needs is started
// on g.
func openLink(ctx context.Context, g *errgroup.Group, cfg *config.Config) (turret.Link, func(), error) {
	l := cfg.Link
	switch l.Kind {
	case config.LinkHerkulex:
		bus, err := herkulex.Open(l.Port, l.Baud, l.Timeout())
		if err != nil {
			return nil, nil, err
		}
		return bus, func() { bus.Close() }, nil
	case config.LinkModbus:
		c := &modbus.Client{
			Port:     l.Port,
			BaudRate: l.Baud,
			URL:      l.URL,
			Password: l.Password,
		}
		if err := c.Connect(ctx); err != nil {
			return nil, nil, err
		}
		return c, func() {}, nil
	default:
		s := sim.New(cfg.Turret.GimbalAddress, cfg.Turret.FireControlAddress)
		s.SetTrigger(true, false)
		g.Go(func() error {
			if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		return s, func() {}, nil
	}
}

func main() {
	flag.Parse()
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	link, closeLink, err := openLink(ctx, g, cfg)
	if err != nil {
		log.Fatalf("opening %s link: %v", cfg.Link.Kind, err)
	}
	defer closeLink()

	t, err := turret.New(cfg.Turret, link)
	if err != nil {
		log.Fatal(err)
	}
	var store *cmdlog.Store
	if cfg.CommandDB != "" {
		store, err = cmdlog.Open(cfg.CommandDB)
		if err != nil {
			log.Fatalf("opening command log: %v", err)
		}
		defer store.Close()
		t.AddCommandLogger(store)
	}

	server := NewServer(t, store)
	if *rotctldAddr != "" {
		if err := server.ListenRotctld(ctx, *rotctldAddr); err != nil {
			log.Fatal(err)
		}
	}

	r := server.Router()
	r.PathPrefix("/debug").Handler(http.DefaultServeMux)
	srv := &http.Server{
		Handler:     r,
		Addr:        cfg.Server.Addr,
		ReadTimeout: 15 * time.Second,
	}

	g.Go(func() error {
		defer t.Publisher().Close()
		return t.Run(ctx)
	})
	g.Go(func() error {
		log.Printf("Listening on %v", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}
