package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli"

	slotpool "github.com/replay/go-slot-pool"
	"github.com/replay/go-slot-pool/internal/sim"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	app := cli.NewApp()
	app.Version = "0.1.0"
	app.Name = "slotsim"
	app.Usage = "run a game world on identity addressed slot pools"
	app.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "ticks,t",
			Value: 600,
			Usage: "number of ticks to run, 0 runs until killed",
		},
		cli.DurationFlag{
			Name:  "tick",
			Value: 0,
			Usage: "wall clock time per tick",
		},
		cli.Int64Flag{
			Name:  "seed,s",
			Value: 1,
			Usage: "random seed",
		},
		cli.IntFlag{
			Name:  "players,p",
			Value: 8,
			Usage: "players connected before the first tick",
		},
		cli.BoolFlag{
			Name:  "poison",
			Usage: "poison free slots",
		},
		cli.BoolFlag{
			Name:  "debug,d",
			Usage: "log every slot transition",
		},
		cli.BoolFlag{
			Name:  "dump",
			Usage: "print every pool at exit",
		},
		cli.StringFlag{
			Name:  "metrics-addr,m",
			Usage: "serve prometheus metrics on this address",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Msg(err.Error())
	}
}

func run(c *cli.Context) error {
	if c.Bool("debug") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg := sim.DefaultConfig()
	cfg.Seed = c.Int64("seed")
	cfg.Logger = log.Logger
	cfg.PoolOpts = []slotpool.Option{slotpool.WithPoison(c.Bool("poison"))}

	w := sim.NewWorld(cfg)
	defer w.Close()

	if c.Int("players") > sim.MaxPlayers {
		return errors.Errorf("at most %d players", sim.MaxPlayers)
	}
	for i := 0; i < c.Int("players"); i++ {
		if _, err := w.Connect(); err != nil {
			return err
		}
	}

	var metrics *slotpool.Metrics
	if addr := c.String("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		var err error
		if metrics, err = slotpool.NewMetrics(reg); err != nil {
			return err
		}
		metrics.Observe(w.Registry)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			log.Info().Str("addr", addr).Msg("serving metrics")
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	ticks := c.Int("ticks")
	interval := c.Duration("tick")
	var snapshotBytes int
	for ticks == 0 || int(w.Tick()) < ticks {
		stats := w.Step()
		w.Snapshot(func(buf []byte) { snapshotBytes += len(buf) })
		if metrics != nil {
			metrics.Observe(w.Registry)
		}

		log.Debug().
			Uint64("tick", stats.Tick).
			Int("connected", stats.Connected).
			Int("disconnected", stats.Disconnected).
			Int("fired", stats.Fired).
			Int("expired", stats.Expired).
			Int("hits", stats.Hits).
			Msg("tick")

		if interval > 0 {
			time.Sleep(interval)
		}
	}

	for _, t := range w.Registry.Tables() {
		s := t.Stats()
		log.Info().
			Str("pool", t.Name()).
			Int("live", t.Len()).
			Int("capacity", t.Cap()).
			Uint64("acquires", s.Acquires).
			Uint64("releases", s.Releases).
			Msg("pool summary")
	}
	log.Info().Uint64("ticks", w.Tick()).Int("snapshot_bytes", snapshotBytes).Msg("done")

	if c.Bool("dump") {
		fmt.Print(w.Registry.String())
	}
	return nil
}
