package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/lobbyd/lobbyd/pkg/api"
	"github.com/lobbyd/lobbyd/pkg/gateway"
	"github.com/lobbyd/lobbyd/pkg/log"
	"github.com/lobbyd/lobbyd/pkg/network"
	"github.com/lobbyd/lobbyd/pkg/queue"
	"github.com/lobbyd/lobbyd/pkg/registry"
	"github.com/lobbyd/lobbyd/pkg/rooms"
	"github.com/lobbyd/lobbyd/pkg/version"
)

const (
	// InboundMessageQueueSize is the buffer size of the inbound message queue
	InboundMessageQueueSize = 10000
)

type config struct {
	WSPort      int    `env:"WS_PORT" envDefault:"9000"`
	APIPort     int    `env:"API_PORT" envDefault:"9001"`
	StaticDir   string `env:"STATIC_DIR"`
	TLSCertFile string `env:"TLS_CERT_FILE"`
	TLSKeyFile  string `env:"TLS_KEY_FILE"`
}

func main() {
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	// a missing .env file is fine, the environment may be set directly
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file loaded: %v", err)
	}

	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		panic(fmt.Sprintf("Failed to parse config: %v", err))
	}

	log.Info("Starting server version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wsTLS *network.TLSConfig
	var apiTLS *api.TLSConfig
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		wsTLS = &network.TLSConfig{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile}
		apiTLS = &api.TLSConfig{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile}
	}

	connectionManager := network.NewConnectionManager()
	messageQueue := queue.NewInMemoryQueue(InboundMessageQueueSize)

	wsServer := network.NewWSServer(network.NewWSServerOptions{
		Port:              cfg.WSPort,
		TLS:               wsTLS,
		ConnectionManager: connectionManager,
		MessageQueue:      messageQueue,
	})
	go wsServer.Start(ctx)

	apiServer := api.NewAPIServer(api.NewAPIServerOptions{
		Port:      cfg.APIPort,
		TLS:       apiTLS,
		StaticDir: cfg.StaticDir,
	})
	go apiServer.Start()
	defer func() {
		if err := apiServer.Stop(context.Background()); err != nil {
			log.Error("Failed to stop API server: %v", err)
		}
	}()

	eventGateway := gateway.NewGateway(gateway.NewGatewayOptions{
		Sender:           connectionManager,
		MessageQueue:     messageQueue,
		ConnectionEvents: connectionManager.GetEventChan(),
		Registry:         registry.NewRegistry(),
		Rooms:            rooms.NewStore(),
	})

	log.Info("Starting event gateway")
	if err := eventGateway.Start(ctx); err != nil {
		log.Error("Event gateway error: %v", err)
	}
}
