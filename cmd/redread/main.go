// Package main is the entry point for the redread CLI, a host around the
// RSVP reading engine: it wires configuration, storage, the event bus, and a
// ticker-backed frame source into a reading session and drives it from the
// terminal. All rendering here is deliberately minimal; real front-ends
// attach through the WebSocket observer instead.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/LouPolish/Red-Read/internal/bus"
	"github.com/LouPolish/Red-Read/internal/config"
	"github.com/LouPolish/Red-Read/internal/logging"
	"github.com/LouPolish/Red-Read/internal/metrics"
	"github.com/LouPolish/Red-Read/internal/playback"
	"github.com/LouPolish/Red-Read/internal/session"
	"github.com/LouPolish/Red-Read/internal/store"
	"github.com/LouPolish/Red-Read/internal/tokenizer"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "redread",
		Short: "Red-Read is an RSVP speed reader",
		Long: "Red-Read presents one word at a time at a controlled rate,\n" +
			"anchoring the eye on each word's optimal recognition point.",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.redread/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newReadCmd())
	rootCmd.AddCommand(newTokenizeCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("redread %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration and installs the global logger from it.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if cfgPath != "" {
		cfg, err = config.LoadFromPath(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logging.Setup(logging.Options{Level: cfg.Logging.Level, Verbose: verbose})
	return cfg, nil
}

func newReadCmd() *cobra.Command {
	var (
		wpm      int
		mode     string
		observe  bool
		startPct float64
	)

	cmd := &cobra.Command{
		Use:   "read <file>",
		Short: "Read a plain-text file one word at a time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if wpm == 0 {
				wpm = cfg.Playback.Rate
			}
			if mode == "" {
				mode = cfg.Playback.Mode
			}

			text, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			st, err := store.Open(cfg.Storage.DataDir)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			eventBus := bus.New()
			defer eventBus.Close()

			stats := metrics.NewCollector(eventBus)
			stats.Start()
			defer stats.Stop()

			if observe || cfg.Observer.Enabled {
				obs := bus.NewObserver(eventBus, bus.ObserverConfig{
					Port:          cfg.Observer.Port,
					ReplayHistory: true,
					HistoryCount:  cfg.Observer.HistoryCount,
				})
				if err := obs.Start(); err != nil {
					return fmt.Errorf("start observer: %w", err)
				}
				defer obs.Stop()
			}

			frames := playback.NewTickerFrames(
				time.Duration(cfg.Playback.FrameIntervalMs) * time.Millisecond)
			hub := playback.NewSignalHub()

			reader := session.NewReader(session.Options{
				Frames:    frames,
				Lifecycle: hub,
				Bus:       eventBus,
				Store:     st,
				Rate:      wpm,
				Mode:      tokenizer.ParseMode(mode),
			})

			done := make(chan struct{})
			eventBus.Subscribe(bus.EventToken, func(e bus.Event) {
				fmt.Printf("\r\033[K%s", e.Word)
			})
			eventBus.Subscribe(bus.EventComplete, func(e bus.Event) {
				close(done)
			})

			title := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			if err := reader.Open(cmd.Context(), title, string(text)); err != nil {
				return err
			}
			defer reader.Close()

			if startPct > 0 {
				reader.SeekPercent(startPct)
			}

			log.Info().Str("title", title).Int("wpm", wpm).Str("mode", mode).Msg("starting playback")
			reader.Play()

			// SIGTSTP/SIGCONT approximate the hidden/resume pair a mobile
			// host would deliver; SIGINT ends the session with the
			// snapshot saved.
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGTSTP, syscall.SIGCONT)
			for {
				select {
				case <-done:
					fmt.Println()
					s := stats.Stats()
					log.Info().Int("words", s.TokensShown).
						Dur("reading_time", s.ReadingTime).
						Float64("effective_wpm", s.EffectiveWPM()).
						Msg("finished")
					return nil
				case sig := <-sigs:
					switch sig {
					case syscall.SIGTSTP:
						hub.Emit(playback.SignalHidden)
					case syscall.SIGCONT:
						hub.Emit(playback.SignalResume)
					default:
						fmt.Println()
						ps := reader.State()
						log.Info().Int("position", ps.Position).Msg("paused, progress saved")
						return nil
					}
				}
			}
		},
	}

	cmd.Flags().IntVar(&wpm, "wpm", 0, "playback rate in words per minute")
	cmd.Flags().StringVar(&mode, "mode", "", "timing profile: reading or skim")
	cmd.Flags().BoolVar(&observe, "observer", false, "expose playback events over WebSocket")
	cmd.Flags().Float64Var(&startPct, "start", 0, "start position as percent of the document")
	return cmd
}

func newTokenizeCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "tokenize <file>",
		Short: "Dump the token stream for a file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			tokens := tokenizer.Tokenize(string(text), tokenizer.ParseMode(mode))
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(tokens)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "reading", "timing profile: reading or skim")
	return cmd
}

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List stored reading sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.Storage.DataDir)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			infos, err := st.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Println("no stored sessions")
				return nil
			}

			for _, info := range infos {
				pct := 0.0
				if info.WordCount > 0 {
					pct = float64(info.Position) / float64(info.WordCount) * 100
				}
				fmt.Printf("%-36s  %-24s  %5.1f%%  %4d wpm  %-7s  %s\n",
					info.ID, info.Title, pct, info.Rate, info.Mode,
					info.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}
