package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/radiorecorder/allday/internal/api"
	"github.com/radiorecorder/allday/internal/autolink"
	"github.com/radiorecorder/allday/internal/config"
	"github.com/radiorecorder/allday/internal/domain"
	"github.com/radiorecorder/allday/internal/fetcher"
	"github.com/radiorecorder/allday/internal/page"
	"github.com/radiorecorder/allday/internal/schedule"
	"github.com/radiorecorder/allday/internal/store"
)

var (
	cfgFile  string
	dbPath   string
	verbose  bool
	settings *config.Settings
	logger   *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "allday",
		Short:         "Broadcast schedule page augmentation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "cache database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(autolinkCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(cacheCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func initConfig() error {
	var err error
	settings, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if dbPath != "" {
		settings.Store.Path = dbPath
	}

	level := slog.LevelInfo
	if verbose || settings.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	logger.Debug("configuration loaded",
		"store", settings.Store.Path,
		"ttl", settings.Store.TTL,
		"timeout", settings.Fetch.Timeout,
	)
	return nil
}

func getStore() (*store.Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(settings.Store.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(settings.Store.Path)
}

func newFetcher() *fetcher.Fetcher {
	return fetcher.New(settings.Fetch.Timeout, settings.Fetch.UserAgent, settings.Fetch.MaxBytes)
}

// newRenderer returns a renderer reading through the fetch cache
func newRenderer(s *store.Store) *page.Renderer {
	src := fetcher.NewCached(newFetcher(), s, settings.Store.TTL, logger)
	return page.New(src, settings.Page.NowIndicator, logger)
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = settings.Server.Addr
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := api.New(newRenderer(s), logger, addr)
			return server.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (default from config, :8080)")
	return cmd
}

func autolinkCmd() *cobra.Command {
	var location string

	cmd := &cobra.Command{
		Use:   "autolink",
		Short: "Make URLs and mail addresses in an HTML fragment on stdin clickable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), autolink.Autolink(string(in), location))
			return err
		},
	}

	cmd.Flags().StringVar(&location, "location", "", "page location used as mail subject")
	return cmd
}

func classifyCmd() *cobra.Command {
	var (
		listing string
		window  domain.Window
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a day listing as past, current and future broadcasts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readListing(cmd.Context(), listing)
			if err != nil {
				return err
			}
			raw, err := fetcher.ParseListingBytes(body)
			if err != nil {
				return err
			}

			if window.Now == "" {
				window.Now = time.Now().Format(time.RFC3339)
			}
			entries, err := schedule.Classify(raw, window)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No entries in listing.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %-3s %s\n",
					stateName(e.State), recordingMark(e.HasRecording), truncate(e.Label(settings.Page.NowIndicator), 60))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listing, "listing", "", "listing URL or file")
	cmd.Flags().StringVar(&window.Start, "start", "", "reference day start (ISO-8601)")
	cmd.Flags().StringVar(&window.End, "end", "", "reference day end (ISO-8601)")
	cmd.Flags().StringVar(&window.Now, "now", "", "reference instant (ISO-8601, default current time)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.MarkFlagRequired("listing")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

func readListing(ctx context.Context, listing string) ([]byte, error) {
	if strings.HasPrefix(listing, "http://") || strings.HasPrefix(listing, "https://") {
		return newFetcher().Get(ctx, listing)
	}
	body, err := os.ReadFile(listing)
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	return body, nil
}

func renderCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "render [url]",
		Short: "Render a broadcast schedule page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			html, err := newRenderer(s).RenderURL(context.Background(), args[0])
			if err != nil {
				return err
			}

			if out == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), html)
				return err
			}
			return os.WriteFile(out, []byte(html), 0644)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")
	return cmd
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the fetch cache",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List cached fetches",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			fetches, err := s.List(limit)
			if err != nil {
				return err
			}
			if len(fetches) == 0 {
				fmt.Println("Cache is empty.")
				return nil
			}
			for _, f := range fetches {
				fmt.Printf("%s  %s  %7d  %s\n", f.ID[:8], f.FetchedAt.Local().Format("2006-01-02 15:04:05"), f.Size, truncate(f.URL, 60))
			}
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "number of fetches to show")

	var maxAge time.Duration
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete cached fetches older than --max-age",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.Purge(maxAge)
			if err != nil {
				return err
			}
			fmt.Printf("Purged %d cached fetches\n", n)
			return nil
		},
	}
	purge.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "purge fetches older than this")

	cmd.AddCommand(list, purge)
	return cmd
}

func stateName(s domain.State) string {
	if s == domain.StateNone {
		return "-"
	}
	return string(s)
}

func recordingMark(has bool) string {
	if has {
		return "rec"
	}
	return ""
}

func truncate(s string, max int) string {
	// Replace newlines with spaces for display
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
