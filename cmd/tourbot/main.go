// tourbot drives a Temi robot through a guided tour of the lab.
// It connects to the companion app on the robot, runs the stage sequence
// and serves a status dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-temitour/internal/config"
	"github.com/teslashibe/go-temitour/internal/log"
	"github.com/teslashibe/go-temitour/pkg/actor"
	"github.com/teslashibe/go-temitour/pkg/bridge"
	"github.com/teslashibe/go-temitour/pkg/dialog"
	"github.com/teslashibe/go-temitour/pkg/follow"
	"github.com/teslashibe/go-temitour/pkg/gate"
	"github.com/teslashibe/go-temitour/pkg/inference"
	"github.com/teslashibe/go-temitour/pkg/interrupt"
	"github.com/teslashibe/go-temitour/pkg/journal"
	"github.com/teslashibe/go-temitour/pkg/perception"
	"github.com/teslashibe/go-temitour/pkg/robot"
	"github.com/teslashibe/go-temitour/pkg/tour"
	"github.com/teslashibe/go-temitour/pkg/web"
)

type flags struct {
	script      string
	sequence    string
	once        bool
	debug       bool
	checkScript bool
}

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	f := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}
	if f.debug {
		cfg.Log.Level = "debug"
	}
	if f.script != "" {
		cfg.Tour.ScriptPath = f.script
	}
	if f.sequence != "" {
		cfg.Tour.Sequence = splitFlag(f.sequence)
	}
	log.Init(cfg.Log.Level)

	script, err := loadScript(cfg.Tour.ScriptPath)
	if err != nil {
		log.Error("script", "error", err)
		os.Exit(1)
	}
	if f.checkScript {
		fmt.Printf("✅ script ok: %d locations, %d stops\n", len(script.LocationNames()), len(script.Stops))
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, script, f.once); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("tourbot stopped", "error", err)
		os.Exit(1)
	}
	log.Info("tourbot stopped")
}

// parseFlags parses command line flags. Flags override the environment.
func parseFlags() flags {
	var f flags
	flag.StringVar(&f.script, "script", "", "Tour script YAML (overrides TOURBOT_TOUR_SCRIPT)")
	flag.StringVar(&f.sequence, "sequence", "", "Comma separated stage sequence (overrides TOURBOT_TOUR_SEQUENCE)")
	flag.BoolVar(&f.once, "once", false, "Run the sequence a single time and exit")
	flag.BoolVar(&f.debug, "debug", false, "Enable verbose debug logging")
	flag.BoolVar(&f.checkScript, "check-script", false, "Load the script, report and exit")
	flag.Parse()
	return f
}

func loadScript(path string) (*tour.Script, error) {
	if path == "" {
		return tour.DefaultScript()
	}
	return tour.LoadScript(path)
}

func splitFlag(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// run wires every component and blocks until ctx is cancelled or one of
// them fails.
func run(ctx context.Context, cfg config.Config, script *tour.Script, once bool) error {
	logger := log.L()

	sequence := tour.DefaultSequence
	if len(cfg.Tour.Sequence) > 0 {
		seq, err := tour.ParseSequence(cfg.Tour.Sequence)
		if err != nil {
			return err
		}
		sequence = seq
	}

	state := robot.NewState()
	link := bridge.New(state, bridge.Config{
		URL:            cfg.Bridge.URL,
		ReconnectDelay: cfg.Bridge.ReconnectDelay,
		Logger:         logger,
	})

	classifier := perception.New(perception.StateSource{State: state}, perception.Config{
		Interval:   cfg.Perception.Interval,
		StaleAfter: cfg.Perception.StaleAfter,
	}, logger)

	poller := gate.Default()
	supOpts := []interrupt.Option{
		interrupt.WithTriggerDelay(cfg.Tour.InterruptDelay),
		interrupt.WithPoller(poller),
		interrupt.WithLogger(logger),
	}

	var store *journal.Store
	if cfg.Journal.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0o755); err != nil {
			return fmt.Errorf("journal dir: %w", err)
		}
		s, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
		supOpts = append(supOpts, interrupt.WithRecorder(store))
		log.Info("journal open", "path", cfg.Journal.Path)
	}
	sup := interrupt.New(classifier, state, link, supOpts...)

	act := actor.New(link, state, sup, actor.Config{
		Poller:            poller,
		NavigationMaxWait: cfg.Tour.NavigationMaxWait,
		Logger:            logger,
	})
	dlg := dialog.New(act, classifier, poller, logger)
	follower := follow.New(link, state, classifier, follow.Config{Poller: poller, Logger: logger})

	var srv *web.Server
	board := tour.NewSignalBoard(func(sig tour.Signals) {
		if srv != nil {
			srv.PublishDisplay(sig)
		}
	})

	deps := tour.Deps{
		Actor:   act,
		Dialog:  dlg,
		View:    classifier,
		Display: board,
		Script:  script,
		Follow:  follower,
	}
	if cfg.OpenAI.APIKey != "" {
		chat, err := inference.NewOpenAI(
			inference.WithAPIKey(cfg.OpenAI.APIKey),
			inference.WithBaseURL(cfg.OpenAI.BaseURL),
			inference.WithModel(cfg.OpenAI.Model),
			inference.WithTimeout(cfg.OpenAI.Timeout),
			inference.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		if err := inference.CheckHealth(ctx, chat, cfg.OpenAI.Timeout); err != nil {
			log.Warn("chat provider unreachable, the chat stage will apologise", "error", err)
		} else {
			deps.Chat = chat
		}
	} else {
		log.Warn("OPENAI_API_KEY not set, the chat stage will apologise")
	}
	if store != nil {
		deps.Journal = store
	}

	tcfg := tour.DefaultConfig()
	tcfg.Sequence = sequence
	tcfg.Speed = robot.SpeedLevel(cfg.Tour.Speed)
	tcfg.ValidateLocations = cfg.Tour.ValidateLocations
	tcfg.ChatReplyTimeout = cfg.OpenAI.ReplyTimeout
	tcfg.Logger = logger
	if once {
		tcfg.MaxCycles = 1
	}
	t := tour.New(deps, tcfg)

	if cfg.Web.Enabled {
		src := web.Sources{
			Tour:       t,
			View:       classifier,
			Interrupts: sup,
			Display:    board,
			Bridge:     link,
		}
		if store != nil {
			src.Runs = store
		}
		srv = web.NewServer(web.Config{Addr: ":" + cfg.Web.Port, Logger: logger}, src)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return link.Run(ctx) })
	g.Go(func() error { return classifier.Run(ctx) })
	g.Go(func() error { return sup.Run(ctx) })
	g.Go(func() error { return act.RunConversationCloser(ctx) })
	g.Go(func() error { return follower.Run(ctx) })
	if srv != nil {
		g.Go(func() error { return srv.Run(ctx) })
	}
	g.Go(func() error {
		if err := waitForBridge(ctx, link, poller); err != nil {
			return err
		}
		if err := t.Init(ctx); err != nil {
			return fmt.Errorf("init: %w", err)
		}
		err := t.Run(ctx)
		if once && err == nil {
			// Bring the other loops down once the single pass is done.
			return errOnceDone
		}
		return err
	})

	err := g.Wait()
	if errors.Is(err, errOnceDone) {
		return nil
	}
	return err
}

var errOnceDone = errors.New("single pass complete")

// waitForBridge blocks until the robot link is up.
func waitForBridge(ctx context.Context, link *bridge.Client, poller gate.Poller) error {
	if link.Connected() {
		return nil
	}
	start := time.Now()
	log.Info("waiting for the robot bridge")
	if err := poller.Gate(ctx, func() bool { return !link.Connected() }); err != nil {
		return err
	}
	log.Info("robot bridge up", "waited", time.Since(start).Round(time.Millisecond))
	return nil
}
