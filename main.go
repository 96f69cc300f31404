// Command pursuit runs the smooth-pursuit timing experiment: a
// tick-driven engine presents moving-point trials, records the
// participant's timing responses, and persists them as JSON files and
// sqlite rows. A local HTTP monitor exposes progress and summaries.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/percept-data/pursuit/internal/api"
	"github.com/percept-data/pursuit/internal/collector"
	"github.com/percept-data/pursuit/internal/config"
	"github.com/percept-data/pursuit/internal/db"
	"github.com/percept-data/pursuit/internal/monitoring"
	"github.com/percept-data/pursuit/internal/motion"
	"github.com/percept-data/pursuit/internal/schedule"
	"github.com/percept-data/pursuit/internal/session"
	"github.com/percept-data/pursuit/internal/summary"
	"github.com/percept-data/pursuit/internal/timeutil"
	"github.com/percept-data/pursuit/internal/trajectory"
	"github.com/percept-data/pursuit/internal/version"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "run":
		runCmd(args[1:])
	case "migrate":
		migrateCmd(args[1:])
	case "summary":
		summaryCmd(args[1:])
	case "version":
		fmt.Printf("pursuit %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: pursuit <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run        Run an experiment session")
	fmt.Println("  migrate    Manage the database schema (up, down, status, force)")
	fmt.Println("  summary    Generate a summary report from stored sessions")
	fmt.Println("  version    Print build information")
}

func loadConfig(path string) *config.ExperimentConfig {
	if path == "" {
		path = config.DefaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			monitoring.Logf("no config file at %s, using defaults", path)
			return config.Empty()
		}
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the experiment config JSON")
	participant := fs.String("participant", "", "override the configured participant id")
	listen := fs.String("listen", "", "monitor listen address (overrides config)")
	noStore := fs.Bool("no-db", false, "skip sqlite persistence, keep JSON files only")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	participantID := cfg.GetParticipantID()
	if *participant != "" {
		participantID = *participant
	}
	addr := cfg.GetListenAddr()
	if *listen != "" {
		addr = *listen
	}

	seed := time.Now().UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	rng := rand.New(rand.NewSource(seed))
	monitoring.Logf("session seed: %d", seed)

	lib := loadLibrary(cfg, rng)
	clock := timeutil.RealClock{}
	manager := schedule.NewBlockManager(lib, cfg.Blocks, rng, cfg.GetSpeeds(), cfg.GetDurations())
	col := collector.NewCollector(clock, participantID, 1)

	motionCfg := motion.DefaultConfig()
	motionCfg.OcclusionMode = cfg.GetOcclusionMode()
	motionCfg.OcclusionDelay = cfg.GetOcclusionDelay()
	motionCfg.SettleDelay = cfg.GetSettleDelay()

	sessionCfg := session.Config{
		InitialWait:   cfg.GetInitialWait(),
		StartDelays:   cfg.GetStartDelays(),
		CrossDuration: cfg.GetCrossDuration(),
		Debounce:      cfg.GetDebounce(),
		TickRate:      cfg.GetTickRate(),
		Tasks:         schedule.DefaultTasks(),
		Motion:        motionCfg,
	}

	sinks := session.MultiSink{session.NewJSONSink(cfg.GetDataDir())}
	var store *db.Store
	var sessionID string
	if !*noStore {
		database, err := db.Open(cfg.GetDatabasePath())
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer database.Close()

		fsys, err := db.MigrationsFS()
		if err != nil {
			log.Fatalf("Failed to load migrations: %v", err)
		}
		if err := database.MigrateUp(fsys); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}

		store = db.NewStore(database)
		sessionID, err = store.CreateSession(participantID)
		if err != nil {
			log.Fatalf("Failed to create session: %v", err)
		}
		sinks = append(sinks, store.BlockWriter(sessionID))
	}

	engine := session.NewEngine(clock, rng, sessionCfg, lib, manager, col, sinks)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The reader stays blocked in Scan until stdin closes, so it is
	// not part of the wait group: the process must exit when the
	// session ends even if no further line arrives.
	intents := make(chan session.Intent, 16)
	go readIntents(ctx, os.Stdin, intents)

	// Monitor server goroutine.
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(engine, store, sessionID, participantID).ServeMux()
		server := &http.Server{
			Addr:    addr,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("monitor listening on http://%s", addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("monitor server error: %v", err)
			}
		}()

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("monitor shutdown error: %v", err)
		}
	}()

	log.Printf("starting session for %s (enter=confirm/stop, q=quit)", participantID)
	if err := engine.Run(ctx, intents); err != nil && err != context.Canceled {
		log.Printf("engine stopped: %v", err)
	}
	stop()

	if engine.Cancelled() && store != nil {
		if err := store.MarkCancelled(sessionID); err != nil {
			log.Printf("failed to mark session cancelled: %v", err)
		}
	}

	wg.Wait()
	if engine.Cancelled() {
		log.Printf("session cancelled, partial data saved")
	} else {
		log.Printf("session complete")
	}
}

// loadLibrary reads the configured trajectory library, synthesizing a
// small one when the file is missing so a fresh checkout can run.
func loadLibrary(cfg *config.ExperimentConfig, rng *rand.Rand) *trajectory.Library {
	path := cfg.GetTrajectoryLibrary()
	lib, err := trajectory.LoadLibrary(path)
	if err == nil {
		return lib
	}
	monitoring.Logf("trajectory library %s unavailable (%v), synthesizing", path, err)

	lib = trajectory.NewLibrary(nil)
	synth := trajectory.NewSynthesizer(rng)
	synth.Width = float64(cfg.GetScreenWidth())
	synth.Height = float64(cfg.GetScreenHeight())
	synth.FillLibrary(lib,
		[]string{"block1", "block2"},
		[]string{"111111", "111211", "121112", "121213", "131113", "131212"},
		2, 12)
	return lib
}

// readIntents maps stdin lines onto input intents. A bare enter sends
// both confirm and stop; whichever the active state accepts applies.
func readIntents(ctx context.Context, r io.Reader, intents chan<- session.Intent) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "q", "quit":
			intents <- session.IntentCancel
			return
		default:
			intents <- session.IntentConfirm
			intents <- session.IntentStop
		}
	}
}

func migrateCmd(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the experiment config JSON")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Println("Usage: pursuit migrate [flags] <up|down|status|force <version>>")
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	database, err := db.Open(cfg.GetDatabasePath())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	fsys, err := db.MigrationsFS()
	if err != nil {
		log.Fatalf("Failed to load migrations: %v", err)
	}

	switch fs.Arg(0) {
	case "up":
		if err := database.MigrateUp(fsys); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("migrations applied")

	case "down":
		if err := database.MigrateDown(fsys); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("migration rolled back")

	case "status":
		ver, dirty, err := database.MigrateVersion(fsys)
		if err != nil {
			log.Fatalf("Failed to get migration status: %v", err)
		}
		fmt.Printf("version: %d dirty: %v\n", ver, dirty)

	case "force":
		if fs.NArg() < 2 {
			log.Fatal("Usage: pursuit migrate force <version>")
		}
		var ver int
		if _, err := fmt.Sscanf(fs.Arg(1), "%d", &ver); err != nil {
			log.Fatalf("Invalid version: %s", fs.Arg(1))
		}
		if err := database.MigrateForce(fsys, ver); err != nil {
			log.Fatalf("Force migration failed: %v", err)
		}
		log.Printf("version forced to %d", ver)

	default:
		log.Fatalf("Unknown migrate action: %s", fs.Arg(0))
	}
}

func summaryCmd(args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the experiment config JSON")
	sessionID := fs.String("session", "", "session id (default: most recent)")
	output := fs.String("o", "summary.html", "output path for the HTML report")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	database, err := db.Open(cfg.GetDatabasePath())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	store := db.NewStore(database)
	id := *sessionID
	participant := cfg.GetParticipantID()
	if id == "" {
		sessions, err := store.Sessions()
		if err != nil {
			log.Fatalf("Failed to list sessions: %v", err)
		}
		if len(sessions) == 0 {
			log.Fatal("No stored sessions")
		}
		id = sessions[0].ID
		participant = sessions[0].ParticipantID
	}

	records, err := store.Records(id)
	if err != nil {
		log.Fatalf("Failed to load records: %v", err)
	}
	rep := summary.Build(participant, records)

	out, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer out.Close()
	if err := summary.RenderHTML(out, rep); err != nil {
		log.Fatalf("Failed to render report: %v", err)
	}

	fmt.Printf("session %s: %d trials across %d blocks\n", id, rep.TotalTrials, len(rep.Blocks))
	for _, cs := range rep.Conditions {
		fmt.Printf("  %-16s n=%-3d mean RT %.1fms\n", cs.Condition, cs.Trials, cs.MeanReactionTime)
	}
	fmt.Printf("report written to %s\n", *output)
}
