package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/chriscow/voicemart/internal/config"
	"github.com/chriscow/voicemart/internal/server"
	"github.com/chriscow/voicemart/pkg/ai/tts"
	"github.com/chriscow/voicemart/pkg/cart"
	"github.com/chriscow/voicemart/pkg/catalog"
	"github.com/chriscow/voicemart/pkg/catalog/sqlite"
	"github.com/chriscow/voicemart/pkg/events"
	"github.com/chriscow/voicemart/pkg/plugin"
	_ "github.com/chriscow/voicemart/pkg/plugin/fake"   // Import to register fake plugins
	_ "github.com/chriscow/voicemart/pkg/plugin/openai" // Import to register OpenAI plugin
	"github.com/chriscow/voicemart/pkg/version"
	"github.com/chriscow/voicemart/pkg/voice"
)

var (
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer = nopCloser{}
)

var rootCmd = &cobra.Command{
	Use:   "voicemart",
	Short: "VoiceMart - voice commands for the storefront",
	Long: `voicemart hosts the storefront's voice assistant: it interprets speech
recognized in the browser as shopping commands and drives the page over a
websocket.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}

		path, _ := cmd.Flags().GetString("config")
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
		}
		logger, logCloser = setupLogger(cfg.Log)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logCloser.Close()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve voice sessions and the cart API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		logger.Info("starting voicemart",
			slog.String("version", version.Version),
			slog.String("commit", version.GitCommit),
			slog.String("addr", cfg.Server.Addr),
			slog.String("storage", cfg.Storage.Path),
			slog.String("feedback", cfg.Feedback.Provider))

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		newTTS, err := feedbackFactory()
		if err != nil {
			return err
		}

		srv, err := server.New(server.Config{
			Addr:            cfg.Server.Addr,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			AllowedOrigins:  cfg.Server.AllowedOrigins,
			Catalog:         store,
			Cart:            store,
			Phrases:         cfg.Phrases,
			Options:         cfg.Options(),
			NewTTS:          newTTS,
			Logger:          logger,
		})
		if err != nil {
			return err
		}
		return srv.Run(ctx)
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate [utterance...]",
	Short: "Run the assistant against scripted speech",
	Long: `simulate feeds utterances to the assistant as if the browser had
recognized them and prints every published event and spoken line. Utterances
come from the arguments or, with --script, from a file with one per line.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		script, _ := cmd.Flags().GetString("script")
		lines := args
		if script != "" {
			var err error
			if lines, err = readScript(script); err != nil {
				return err
			}
		}
		if len(lines) == 0 {
			return fmt.Errorf("nothing to simulate: pass utterances or --script")
		}
		synth, _ := cmd.Flags().GetString("tts")
		return runSimulation(cmd.Context(), lines, synth, cmd.OutOrStdout())
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <utterance...>",
	Short: "Show how an utterance is classified",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := voice.NewClassifier(phraseTable())
		out := cmd.OutOrStdout()
		for _, text := range args {
			command := c.Classify(text)
			fmt.Fprintf(out, "%-30q %-12s intent=%-14s phrase=%q payload=%q\n",
				text, command.Category, command.Intent, command.Phrase, command.Payload)
		}
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <name fragment>",
	Short: "Show the best catalog match for a spoken product name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		source, closeSource, err := catalogSource(ctx, cmd)
		if err != nil {
			return err
		}
		defer closeSource()

		fragment := strings.Join(args, " ")
		r := voice.NewResolver(source, cfg.Voice.MinConfidence)
		m, ok, err := r.Resolve(ctx, fragment)
		if err != nil {
			return err
		}
		verdict := "accepted"
		if !ok {
			verdict = fmt.Sprintf("rejected (below %d)", r.MinScore())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%q -> %s [%s] score=%d %s\n",
			fragment, m.Product.Name, m.Product.ID, m.Score, verdict)
		return nil
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Catalog storage commands",
}

var catalogSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the sample catalog into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := sqlite.New(cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		snap := catalog.SampleSnapshot()
		if force, _ := cmd.Flags().GetBool("force"); force {
			if err := store.Seed(ctx, snap); err != nil {
				return err
			}
			logger.Info("catalog replaced", slog.String("path", cfg.Storage.Path), slog.Int("products", snap.Len()))
			return nil
		}

		seeded, err := store.SeedIfEmpty(ctx, snap)
		if err != nil {
			return err
		}
		if !seeded {
			logger.Info("catalog already present, use --force to replace", slog.String("path", cfg.Storage.Path))
			return nil
		}
		logger.Info("catalog seeded", slog.String("path", cfg.Storage.Path), slog.Int("products", snap.Len()))
		return nil
	},
}

var pluginsCmd = &cobra.Command{
	Use:   "plugins [kind]",
	Short: "List registered speech providers",
	Long: `List all registered providers or those of one kind.
Available kinds: recognizer, tts`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := ""
		if len(args) > 0 {
			kind = args[0]
		}

		plugins := plugin.List(kind)
		out := cmd.OutOrStdout()
		if len(plugins) == 0 {
			fmt.Fprintf(out, "No plugins registered for kind: %s\n", kind)
			return nil
		}

		fmt.Fprintf(out, "%-11s %-10s %-10s %s\n", "KIND", "NAME", "VERSION", "DESCRIPTION")
		for _, p := range plugins {
			v := p.Version
			if v == "" {
				v = "N/A"
			}
			fmt.Fprintf(out, "%-11s %-10s %-10s %s\n", p.Kind, p.Name, v, p.Description)
		}
		return nil
	},
}

func openStore(ctx context.Context) (*sqlite.Store, error) {
	store, err := sqlite.New(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Seed {
		seeded, err := store.SeedIfEmpty(ctx, catalog.SampleSnapshot())
		if err != nil {
			store.Close()
			return nil, err
		}
		if seeded {
			logger.Info("seeded empty catalog with sample products")
		}
	}
	return store, nil
}

// feedbackFactory returns the per-session synthesizer constructor for the
// configured provider, or nil when the page speaks for itself.
func feedbackFactory() (func() (tts.TTS, error), error) {
	switch cfg.Feedback.Provider {
	case "browser":
		return nil, nil
	case "none":
		return func() (tts.TTS, error) { return nil, nil }, nil
	}

	providerCfg := map[string]any{
		"voice":   cfg.Feedback.Voice,
		"model":   cfg.Feedback.Model,
		"api_key": cfg.Feedback.APIKey,
	}
	// Fail at startup rather than on the first connection.
	if _, err := plugin.NewTTS(cfg.Feedback.Provider, providerCfg); err != nil {
		return nil, err
	}
	return func() (tts.TTS, error) {
		return plugin.NewTTS(cfg.Feedback.Provider, providerCfg)
	}, nil
}

func phraseTable() voice.PhraseTable {
	if cfg.Phrases != nil {
		return *cfg.Phrases
	}
	return voice.DefaultPhrases()
}

// catalogSource is the sqlite catalog when --db is given, else the sample.
func catalogSource(ctx context.Context, cmd *cobra.Command) (catalog.Source, func(), error) {
	db, _ := cmd.Flags().GetString("db")
	if db == "" {
		return catalog.NewMemory(catalog.SampleSnapshot()), func() {}, nil
	}
	store, err := sqlite.New(db)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

func readScript(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

func runSimulation(ctx context.Context, lines []string, synthName string, out io.Writer) error {
	rec, err := plugin.NewRecognizer("fake", map[string]any{"script": lines})
	if err != nil {
		return err
	}
	var synth tts.TTS
	if synthName != "none" {
		if synth, err = plugin.NewTTS(synthName, map[string]any{"frame_delay": "0s"}); err != nil {
			return err
		}
	}

	// Events and spoken lines arrive on different goroutines.
	out = &lockedWriter{w: out}
	finals := make(chan struct{}, len(lines))
	enc := json.NewEncoder(out)
	bus := events.NewBus(logger)
	bus.SubscribeAll(func(ev *events.Event) {
		if ev.Name == events.Transcript {
			if ev.Final {
				finals <- struct{}{}
			}
			return
		}
		_ = enc.Encode(ev)
	})

	opts := cfg.Options()
	opts.TranscriptClearAfter = -1
	opts.MuteWhileSpeaking = false
	a, err := voice.New(voice.Config{
		Recognizer: rec,
		TTS:        synth,
		Catalog:    catalog.NewMemory(catalog.SampleSnapshot()),
		Cart:       cart.NewMemory(),
		Bus:        bus,
		Phrases:    cfg.Phrases,
		Options:    opts,
		OnSpoken: func(u voice.Utterance) {
			status := "spoken"
			if u.Interrupted {
				status = "interrupted"
			}
			fmt.Fprintf(out, "  %s: %q\n", status, u.Text)
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = a.Run(runCtx) }()

	if err := a.Start(runCtx); err != nil {
		a.Close()
		return err
	}
	for range lines {
		select {
		case <-finals:
		case <-ctx.Done():
			a.Close()
			return ctx.Err()
		}
	}
	// State waits for the last command to finish.
	st := a.State()
	a.Flush()
	a.Close()

	fmt.Fprintf(out, "active=%t focus=%q history=%d\n", st.Active, st.FocusProductID, len(st.History))
	return nil
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func init() {
	rootCmd.PersistentFlags().String("config", "voicemart.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().String("env-file", ".env", "Path to a .env file")
	rootCmd.PersistentFlags().String("log-level", "", "Override log.level (debug, info, warn, error)")

	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	simulateCmd.Flags().String("script", "", "File with one utterance per line")
	simulateCmd.Flags().String("tts", "fake", "Synthesizer plugin for feedback, or none")
	resolveCmd.Flags().String("db", "", "sqlite catalog to search instead of the sample catalog")
	catalogSeedCmd.Flags().Bool("force", false, "Replace an existing catalog")

	catalogCmd.AddCommand(catalogSeedCmd)
	rootCmd.AddCommand(versionCmd, serveCmd, simulateCmd, classifyCmd, resolveCmd, catalogCmd, pluginsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
