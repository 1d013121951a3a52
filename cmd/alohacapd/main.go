package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/lanikai/alohacap"
	"github.com/lanikai/alohacap/internal/logging"
	"github.com/lanikai/alohacap/internal/server"
)

var log = logging.DefaultLogger.WithTag("alohacapd")

// Populated via -ldflags="-X main.GitRevisionId=...".
var GitRevisionId string

const shutdownTimeout = 5 * time.Second

func main() {
	flag.Usage = help
	flag.Parse()

	if flagHelp {
		help()
		os.Exit(0)
	}
	if flagVersion {
		version()
		os.Exit(0)
	}

	config, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if _, err := exec.LookPath(config.FFmpeg); err != nil {
		log.Warn("Encoder %q not found, cuts will fail: %v", config.FFmpeg, err)
	}

	recorder, err := alohacap.NewRecorder(config, nil)
	if err != nil {
		log.Fatal(err)
	}

	srv := server.New(recorder, server.Options{
		Addr:           config.Addr,
		MaxConnections: config.MaxConnections,
		MaxMessageSize: config.MaxMessageSize,
	})
	l, err := srv.Listen()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(l)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the config file, if any, then applies explicitly set flags.
func loadConfig() (alohacap.Config, error) {
	config := alohacap.DefaultConfig()
	if flagConfig != "" {
		var err error
		if config, err = alohacap.LoadConfig(flagConfig); err != nil {
			return config, err
		}
	}

	set := func(name string, apply func()) {
		if flag.CommandLine.Changed(name) {
			apply()
		}
	}
	set("addr", func() { config.Addr = flagAddr })
	set("work-dir", func() { config.WorkDir = flagWorkDir })
	set("output-dir", func() { config.OutputDir = flagOutputDir })
	set("framing", func() { config.Framing = flagFraming })
	set("ffmpeg", func() { config.FFmpeg = flagFFmpeg })
	set("video-format", func() { config.VideoFormat = flagVideoFormat })
	set("mux-timeout", func() { config.MuxTimeout = alohacap.Duration(flagMuxTimeout) })
	set("keep-inputs", func() { config.KeepInputs = flagKeepInputs })
	set("max-connections", func() { config.MaxConnections = flagMaxConnections })
	set("max-message-size", func() { config.MaxMessageSize = flagMaxMessageSize })
	set("result-cache-size", func() { config.ResultCacheSize = flagResultCache })

	if err := config.Validate(); err != nil {
		return config, err
	}
	log.Debug("Config: %+v", config)
	return config, nil
}

// version displays information and exits successfully (GNU convention)
func version() {
	fmt.Println("alohacapd", GitRevisionId)
	fmt.Println("Copyright 2019 Lanikai Labs LLC. All rights reserved.")
}
