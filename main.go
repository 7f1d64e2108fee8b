package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/gpsbench/dragtimer/internal/api"
	"github.com/gpsbench/dragtimer/internal/config"
	"github.com/gpsbench/dragtimer/internal/feed"
	"github.com/gpsbench/dragtimer/internal/history"
	"github.com/gpsbench/dragtimer/internal/run"
	"github.com/gpsbench/dragtimer/internal/timeutil"
	"github.com/gpsbench/dragtimer/internal/units"
	"github.com/gpsbench/dragtimer/internal/version"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address")
	dbFile     = flag.String("db", "runs.db", "History database path")
	configPath = flag.String("config", "", "Tuning config JSON path")
	speedUnits = flag.String("units", units.KMPH, "Display units for API speeds (kmph, mph, mps)")

	source         = flag.String("source", "serial", "Position source: serial, udp, or replay")
	serialPort     = flag.String("serial-port", "/dev/ttyAMA0", "Serial port of the GPS receiver")
	serialOpts     = flag.String("serial-opts", "", "Serial options JSON (baud_rate, data_bits, stop_bits, parity)")
	udpAddr        = flag.String("udp-addr", ":10110", "UDP listen address for forwarded NMEA")
	replayFile     = flag.String("replay-file", "fixtures.nmea", "NMEA log to replay when -source=replay")
	replayInterval = flag.Duration("replay-interval", 100*time.Millisecond, "Pacing between replayed sentences")
)

func openFeed() (feed.LineMuxer, error) {
	switch *source {
	case "udp":
		return feed.ListenUDP(*udpAddr)
	case "replay":
		f, err := os.Open(*replayFile)
		if err != nil {
			return nil, err
		}
		return feed.NewLineMux[feed.Porter](feed.NewReplayer(f, *replayInterval, timeutil.RealClock{})), nil
	default:
		var opts feed.PortOptions
		if *serialOpts != "" {
			if err := json.Unmarshal([]byte(*serialOpts), &opts); err != nil {
				return nil, err
			}
		}
		return feed.OpenSerial(*serialPort, opts)
	}
}

func main() {
	// .env is optional, flags and defaults cover everything it can set.
	godotenv.Load()
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	log.Printf("dragtimer %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	tuning := config.EmptyRunTuning()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadRunTuning(*configPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	machine, err := run.NewMachine(tuning.RunConfig(), timeutil.RealClock{})
	if err != nil {
		log.Fatalf("failed to build run machine: %v", err)
	}

	db, err := history.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open history database: %v", err)
	}
	defer db.Close()

	recorder := history.NewRecorder(db)
	hub := api.NewTelemetryHub()
	machine.SetObserver(func(tel run.Telemetry) {
		recorder.Observe(tel)
		hub.Publish(tel)
	})
	machine.SetRecordSink(recorder.Persist)

	src, err := openFeed()
	if err != nil {
		log.Fatalf("failed to open %s feed: %v", *source, err)
	}
	defer src.Close()

	pipeline := feed.NewPipeline(src, feed.NewParser(timeutil.RealClock{}), machine)

	// Compact the history database nightly; runs accumulate trace rows fast.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("0 3 * * *", func() {
		if _, err := db.Exec("VACUUM"); err != nil {
			log.Printf("nightly vacuum failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("failed to schedule nightly vacuum: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Create a wait group for the HTTP server, feed monitor, and pipeline routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the receiver feed
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := src.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor feed: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// parse sentences and submit samples to the state machine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pipeline.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("pipeline stopped: %v", err)
		}
		log.Print("pipeline routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only over localhost/Tailscale)
		if err := db.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach history admin routes: %v", err)
		}
		src.AttachAdminRoutes(mux)

		apiServer := api.NewServer(machine, db, hub, *speedUnits)
		mux.Handle("/api/", apiServer.ServeMux())

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
