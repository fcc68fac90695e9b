package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/blackmichael/agent-manager/internal/backend"
	"github.com/blackmichael/agent-manager/internal/domain"
	"github.com/blackmichael/agent-manager/internal/poller"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		backendURL string
		status     bool
		logs       bool
		posts      bool
		start      int
		stop       bool
		scrape     string
		generate   bool
		publish    int64
		raw        string
		showRaw    bool
		timeout    time.Duration
		verbose    bool
	)

	flag.StringVar(&backendURL, "backend", envOrDefault("BACKEND_URL", backend.DefaultBaseURL), "Backend API root")
	flag.BoolVar(&status, "status", false, "Print whether the bot is running")
	flag.BoolVar(&logs, "logs", false, "Print the backend log lines")
	flag.BoolVar(&posts, "posts", false, "Print generated posts")
	flag.IntVar(&start, "start", 0, "Start the bot with this interval in minutes")
	flag.BoolVar(&stop, "stop", false, "Stop the bot")
	flag.StringVar(&scrape, "scrape", "", "Scrape listings for a location (e.g. Bali)")
	flag.BoolVar(&generate, "generate", false, "Generate captions for unprocessed listings")
	flag.Int64Var(&publish, "publish", 0, "Publish the post with this ID")
	flag.StringVar(&raw, "raw", "", "Print scraped records whose hotel or location matches")
	flag.BoolVar(&showRaw, "raw-all", false, "Print every scraped record")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Per-command timeout")
	flag.BoolVar(&verbose, "v", false, "Log requests to stderr")
	flag.Parse()

	if flag.NFlag() == 0 || (flag.NFlag() == 1 && isSet("backend")) {
		flag.Usage()
		return fmt.Errorf("no action given")
	}
	if isSet("start") && stop {
		return fmt.Errorf("-start and -stop are mutually exclusive")
	}

	logOut := io.Discard
	if verbose {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := context.Background()
	client := backend.NewClient(backendURL, nil)
	store := domain.NewStore(start)
	reconciler := poller.NewReconciler(client, store, 0, timeout, nil, logger)
	dispatcher := domain.NewDispatcher(client, store, nil, nil, nil, domain.DispatcherConfig{
		CommandTimeout: timeout,
	}, logger)
	defer dispatcher.Close()

	out := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer out.Flush()

	// Commands that toggle need the current running flag first.
	if status || isSet("start") || stop {
		if err := reconciler.RefreshStatus(ctx); err != nil {
			return failure(store, err)
		}
	}

	if isSet("start") {
		if store.Running() {
			return fmt.Errorf("bot is already running")
		}
		if err := dispatcher.ToggleBot(ctx); err != nil {
			return failure(store, err)
		}
		fmt.Fprintf(out, "Bot started, interval %d minutes\n", start)
	}

	if stop {
		if !store.Running() {
			return fmt.Errorf("bot is not running")
		}
		if err := dispatcher.ToggleBot(ctx); err != nil {
			return failure(store, err)
		}
		fmt.Fprintln(out, "Bot stopped")
	}

	if status {
		state := "stopped"
		if store.Running() {
			state = "running"
		}
		fmt.Fprintf(out, "Bot:\t%s\n", state)
	}

	if isSet("scrape") {
		if err := dispatcher.Scrape(ctx, scrape); err != nil {
			return failure(store, err)
		}
		fmt.Fprintf(out, "Scrape for %q finished\n", scrape)
	}

	if generate {
		if err := dispatcher.Generate(ctx); err != nil {
			return failure(store, err)
		}
		fmt.Fprintln(out, "Content generation finished")
	}

	if isSet("publish") {
		if err := dispatcher.Publish(ctx, publish); err != nil {
			return failure(store, err)
		}
		fmt.Fprintf(out, "Post %d published\n", publish)
	}

	if logs {
		if err := reconciler.RefreshLogs(ctx); err != nil {
			return failure(store, err)
		}
		for _, l := range store.Snapshot().Logs {
			fmt.Fprintln(out, string(l))
		}
	}

	if posts {
		if err := dispatcher.RefreshPosts(ctx); err != nil {
			return failure(store, err)
		}
		printPosts(out, store.Snapshot())
	}

	if raw != "" || showRaw {
		if err := dispatcher.LoadRawRecords(ctx); err != nil {
			return failure(store, err)
		}
		printRecords(out, domain.FilterRecords(store.Snapshot().Explorer.Records, raw))
	}

	return nil
}

// failure prefers the operator notice the command produced over the raw
// error.
func failure(store *domain.Store, err error) error {
	notices := store.Snapshot().Notices
	if len(notices) > 0 {
		return errors.New(notices[len(notices)-1].Message)
	}
	if domain.IsUnavailable(err) {
		return fmt.Errorf("%s (%w)", domain.MsgBackendUnreachable, err)
	}
	return err
}

func printPosts(w io.Writer, snap domain.Snapshot) {
	fmt.Fprintln(w, "ID\tSTATUS\tHOTEL")
	for _, p := range snap.Posts {
		fmt.Fprintf(w, "%d\t%s\t%s\n", p.ID, snap.PostStatusOf(p), p.HotelName)
	}
}

func printRecords(w io.Writer, records []domain.RawRecord) {
	fmt.Fprintln(w, "ID\tHOTEL\tLOCATION\tPRICE\tRATING\tPROCESSED")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\n",
			r.ID, r.HotelName, r.Location, r.DiscountedPrice, r.Rating, r.IsProcessed)
	}
}

func isSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
