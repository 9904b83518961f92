package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/fusevault/fusevault/otp"
	"github.com/fusevault/fusevault/tee"
	"github.com/fusevault/fusevault/tee/grpctee"
	"github.com/fusevault/fusevault/tee/teeregistry"

	_ "github.com/fusevault/fusevault/tee/emulator"
)

func main() {
	fs := flag.NewFlagSet("fusevault-teed", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:7600", "listen address")
	backend := fs.String("backend", "inmem", "secure peer backend name")
	configPath := fs.String("config", "", "optional TOML config file")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")

	teeregistry.RegisterFlags(fs, teeregistry.UsageDaemon)

	_ = fs.Parse(os.Args[1:])
	if *listBackends {
		for _, b := range teeregistry.List(teeregistry.UsageDaemon) {
			if b.Description == "" {
				fmt.Fprintf(os.Stdout, "%s\n", b.Name)
				continue
			}
			fmt.Fprintf(os.Stdout, "%s\t%s\n", b.Name, b.Description)
		}
		return
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	var cfg fileConfig
	if *configPath != "" {
		var err error
		cfg, err = loadConfig(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("config")
		}
		if cfg.LogLevel != "" {
			level, err := zerolog.ParseLevel(cfg.LogLevel)
			if err != nil {
				logger.Fatal().Err(err).Msg("config")
			}
			logger = logger.Level(level)
		}
	}

	// Explicit flags win over the config file.
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if cfg.Listen != "" && !set["listen"] {
		*listen = cfg.Listen
	}

	transport, closeFn, err := teeregistry.Open(*backend, teeregistry.UsageDaemon)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", *backend).Msg("open backend")
	}
	if closeFn != nil {
		defer closeFn()
	}

	if len(cfg.Fields) > 0 {
		if err := provisionFields(transport, cfg.Fields, logger); err != nil {
			logger.Fatal().Err(err).Msg("provision")
		}
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		logger.Fatal().Err(err).Str("listen", *listen).Msg("listen")
	}
	defer lis.Close()

	s := grpc.NewServer()
	grpctee.RegisterTEEServer(s, &grpctee.Server{Transport: transport})

	logger.Info().Str("listen", lis.Addr().String()).Str("backend", *backend).Msg("fusevault-teed listening")
	if err := s.Serve(lis); err != nil {
		logger.Fatal().Err(err).Msg("serve")
	}
}

// provisionFields burns the configured payloads through the regular client
// protocol, so the same peer policy applies as for any other writer.
// Already-written fields are left alone.
func provisionFields(transport tee.Transport, fields []fieldConfig, logger zerolog.Logger) error {
	client, err := otp.Open(transport)
	if err != nil {
		return err
	}
	defer client.Close()

	for _, f := range fields {
		payload, err := f.payload()
		if err != nil {
			return err
		}
		if err := client.Write(otp.FieldID(f.ID), payload); err != nil {
			var oe *otp.Error
			if errors.As(err, &oe) && oe.Status == tee.StatusAccessConflict {
				logger.Warn().Uint32("field", f.ID).Msg("field already written, skipping")
				continue
			}
			return err
		}
		logger.Info().Uint32("field", f.ID).Int("bytes", len(payload)).Msg("provisioned field")
	}
	return nil
}
