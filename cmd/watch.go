package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/observerkit/internal/config"
	"github.com/zjrosen/observerkit/internal/log"
	"github.com/zjrosen/observerkit/internal/tracing"
	"github.com/zjrosen/observerkit/internal/watcher"
	"github.com/zjrosen/observerkit/pkg/center"
	"github.com/zjrosen/observerkit/pkg/dispatch"
	"github.com/zjrosen/observerkit/pkg/notify"
)

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Print file changes delivered through the notification center",
	Long: `Watch directories and print every change.

Each debounced fsnotify event is posted as a typed notification scoped to the
watcher that saw it. An observer receives it, inline or on a worker queue,
and prints it. Stop with Ctrl+C; a delivery summary is printed on exit.

Example:
  observerkit watch                      # paths from config (default: .)
  observerkit watch ./src ./docs         # watch two directories
  observerkit watch --async --workers 4  # deliver on a worker pool
  observerkit watch ./src --save         # remember ./src in the config file`,
	RunE: runWatch,
}

var watchSave bool

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Bool("async", false, "deliver on a worker queue instead of the watcher goroutine")
	watchCmd.Flags().Int("workers", 0, "worker goroutines for --async (overrides config)")
	watchCmd.Flags().Duration("debounce", 0, "coalesce events for a path within this window (overrides config)")
	watchCmd.Flags().Duration("dedupe", 0, "suppress identical events inside this window (overrides config)")
	watchCmd.Flags().BoolVar(&watchSave, "save", false, "store the given paths as watch.paths in the config file")

	_ = viper.BindPFlag("dispatch.async", watchCmd.Flags().Lookup("async"))
	_ = viper.BindPFlag("dispatch.workers", watchCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("watch.debounce", watchCmd.Flags().Lookup("debounce"))
	_ = viper.BindPFlag("watch.dedupe_window", watchCmd.Flags().Lookup("dedupe"))
}

var (
	opStyles = map[string]lipgloss.Style{
		"CREATE": lipgloss.NewStyle().Foreground(lipgloss.Color("#73F59F")).Bold(true),
		"WRITE":  lipgloss.NewStyle().Foreground(lipgloss.Color("#54A0FF")).Bold(true),
		"REMOVE": lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8787")).Bold(true),
		"RENAME": lipgloss.NewStyle().Foreground(lipgloss.Color("#FECA57")).Bold(true),
	}
	timeStyle    = lipgloss.NewStyle().Faint(true)
	pathStyle    = lipgloss.NewStyle()
	summaryStyle = lipgloss.NewStyle().Faint(true).Italic(true)
)

// renderEvent formats one delivery as "15:04:05.000  WRITE   path".
func renderEvent(ev watcher.FileEvent) string {
	op := ev.Op
	style, ok := opStyles[primaryOp(op)]
	if !ok {
		style = lipgloss.NewStyle()
	}
	return fmt.Sprintf("%s  %s  %s",
		timeStyle.Render(ev.At.Format("15:04:05.000")),
		style.Width(14).Render(op),
		pathStyle.Render(ev.Path),
	)
}

// primaryOp picks the style key for a combined op such as "CREATE|WRITE".
func primaryOp(op string) string {
	for _, name := range []string{"REMOVE", "RENAME", "CREATE", "WRITE"} {
		if strings.Contains(op, name) {
			return name
		}
	}
	return op
}

func renderSummary(stats center.Stats, printed int) string {
	return summaryStyle.Render(fmt.Sprintf("%d posted, %d printed, %d dropped, %d skipped after dispose",
		stats.Posts, printed, stats.Dropped, stats.Skipped))
}

// printer serializes writes from concurrent queue workers.
type printer struct {
	mu    sync.Mutex
	out   io.Writer
	count int
}

func (p *printer) handle(ev watcher.FileEvent, _ *watcher.Watcher) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, renderEvent(ev))
	p.count++
}

func (p *printer) printed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func runWatch(cmd *cobra.Command, args []string) error {
	paths := append([]string(nil), cfg.Watch.Paths...)
	if len(args) > 0 {
		paths = append([]string(nil), args...)
	}

	if watchSave {
		target := viper.ConfigFileUsed()
		if target == "" {
			target = localConfigPath
		}
		if err := config.SaveWatchPaths(target, paths); err != nil {
			return fmt.Errorf("saving watch paths: %w", err)
		}
		log.Info(log.CatConfig, "saved watch paths", "path", target, "paths", paths)
	}

	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", p, err)
		}
		paths[i] = abs
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingCfg := cfg.Tracing
	if tracingCfg.FilePath == "" {
		tracingCfg.FilePath = config.DefaultTracesFilePath()
	}
	provider, err := tracing.NewProvider(tracingCfg)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.ErrorErr(log.CatTrace, "tracing shutdown failed", err)
		}
	}()

	var centerOpts []center.Option
	var middleware []center.Middleware
	if provider.Enabled() {
		centerOpts = append(centerOpts, center.WithTracer(provider.Tracer()))
		middleware = append(middleware, tracing.DeliveryMiddleware(provider.Tracer()))
	}
	c := center.New(centerOpts...)

	var queue dispatch.Queue = dispatch.Inline
	drain := func() {}
	if cfg.Dispatch.Async {
		q := dispatch.NewOperationQueue(
			dispatch.WithName("watch"),
			dispatch.WithWorkers(cfg.Dispatch.Workers),
			dispatch.WithQueueSize(cfg.Dispatch.QueueSize),
		)
		var once sync.Once
		drain = func() {
			once.Do(func() {
				drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := q.Stop(drainCtx); err != nil {
					log.ErrorErr(log.CatDispatch, "queue did not drain", err)
				}
			})
		}
		defer drain()
		queue = q
	}

	w, err := watcher.New(watcher.Config{
		Paths:        paths,
		Debounce:     cfg.Watch.Debounce,
		DedupeWindow: cfg.Watch.DedupeWindow,
		Center:       c,
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	out := &printer{out: cmd.OutOrStdout()}
	obs := notify.Observe(ctx, w.Changes(), out.handle,
		notify.WithCenter(c),
		notify.WithQueue(queue),
		notify.WithMiddleware(middleware...),
	)

	if err := w.Start(ctx); err != nil {
		obs.Dispose()
		return err
	}

	_, _ = fmt.Fprintln(cmd.ErrOrStderr(), summaryStyle.Render("watching "+strings.Join(paths, ", ")))

	<-obs.Done()

	// Let queued deliveries print before the summary.
	drain()
	_, _ = fmt.Fprintln(cmd.ErrOrStderr(), renderSummary(c.Stats(), out.printed()))
	return nil
}
