package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gogpu/gg"
	"github.com/spf13/cobra"

	"github.com/san-kum/gasket/internal/config"
	"github.com/san-kum/gasket/internal/controller"
	"github.com/san-kum/gasket/internal/gasket"
	"github.com/san-kum/gasket/internal/logging"
	"github.com/san-kum/gasket/internal/render"
	"github.com/san-kum/gasket/internal/storage"
	"github.com/san-kum/gasket/internal/viz"
)

var (
	dataDir  string
	logLevel string

	// Config file and preset
	configFile string
	preset     string

	width, height   int
	padding         float64
	start, end, fps float64
	seed            int64
	depth           int
	minCurv         float64
	maxCurv         float64
	workers         int
	maxRetries      int
	previewInterval time.Duration
	previewWidth    int

	useTUI   bool
	writeGIF bool

	frameTime float64
	frameNum  int
	outPath   string
	gifFPS    float64
	gifWidth  int
	plotWidth int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "gasket",
		Short:         "animated apollonian gasket renderer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logging.ParseLevel(logLevel)}))
			logging.SetLogger(logger)
			gg.SetLogger(logger)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory (default from config, .gasket)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "render every frame of an animation",
		RunE:  renderRun,
	}
	addAnimationFlags(renderCmd)
	renderCmd.Flags().IntVar(&workers, "workers", 0, "render workers (0 = one per CPU)")
	renderCmd.Flags().IntVar(&maxRetries, "retries", controller.DefaultMaxRetries, "seeds to try after a degenerate packing")
	renderCmd.Flags().DurationVar(&previewInterval, "preview-interval", config.DefaultPreviewInterval, "minimum time between previews")
	renderCmd.Flags().IntVar(&previewWidth, "preview-width", config.DefaultPreviewWidth, "preview width in pixels")
	renderCmd.Flags().BoolVar(&useTUI, "tui", false, "show live progress")
	renderCmd.Flags().BoolVar(&writeGIF, "gif", false, "assemble animation.gif after rendering")

	frameCmd := &cobra.Command{
		Use:   "frame",
		Short: "render a single frame to png",
		RunE:  renderFrame,
	}
	addAnimationFlags(frameCmd)
	frameCmd.Flags().Float64Var(&frameTime, "at", 0, "time point to render")
	frameCmd.Flags().StringVarP(&outPath, "out", "o", "frame.png", "output file")

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "plot when circles appear",
		RunE:  plotSchedule,
	}
	addAnimationFlags(scheduleCmd)
	scheduleCmd.Flags().IntVar(&plotWidth, "width-chars", 60, "plot width in characters")

	svgCmd := &cobra.Command{
		Use:   "svg",
		Short: "export the packing as svg",
		RunE:  exportSVG,
	}
	addAnimationFlags(svgCmd)
	svgCmd.Flags().IntVar(&frameNum, "frame", storage.AllFrames, "only circles visible at this frame (-1 = all)")
	svgCmd.Flags().StringVarP(&outPath, "out", "o", "gasket.svg", "output file")

	gifCmd := &cobra.Command{
		Use:   "gif [run_id]",
		Short: "assemble a persisted run into an animated gif",
		Args:  cobra.ExactArgs(1),
		RunE:  assembleGIF,
	}
	gifCmd.Flags().Float64Var(&gifFPS, "fps", 0, "playback rate (default: the run's fps)")
	gifCmd.Flags().IntVar(&gifWidth, "scale", 0, "scale frames down to this width")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE\tDURATION\tFPS\tDEPTH\tSEED")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%dx%d\t%.1fs\t%.0f\t%d\t%d\n", name,
					p.Canvas.Width, p.Canvas.Height, p.Animation.End-p.Animation.Start,
					p.Animation.FPS, p.Gasket.Depth, p.Gasket.Seed)
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(renderCmd, frameCmd, scheduleCmd, svgCmd, gifCmd, listCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addAnimationFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().IntVar(&width, "width", d.Canvas.Width, "canvas width")
	cmd.Flags().IntVar(&height, "height", d.Canvas.Height, "canvas height")
	cmd.Flags().Float64Var(&padding, "padding", d.Canvas.Padding, "padding around the reference circle")
	cmd.Flags().Float64Var(&start, "start", d.Animation.Start, "start time")
	cmd.Flags().Float64Var(&end, "end", d.Animation.End, "end time")
	cmd.Flags().Float64Var(&fps, "fps", d.Animation.FPS, "frames per second")
	cmd.Flags().Int64Var(&seed, "seed", d.Gasket.Seed, "random seed")
	cmd.Flags().IntVar(&depth, "depth", d.Gasket.Depth, fmt.Sprintf("recursion depth (0-%d)", gasket.MaxDepth))
	cmd.Flags().Float64Var(&minCurv, "min-curvature", d.Gasket.MinCurvature, "smallest starting curvature")
	cmd.Flags().Float64Var(&maxCurv, "max-curvature", d.Gasket.MaxCurvature, "largest starting curvature")
}

// loadConfig layers defaults, preset, config file and explicitly set
// flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		if err := config.LoadInto(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}
	if changed("width") {
		cfg.Canvas.Width = width
	}
	if changed("height") {
		cfg.Canvas.Height = height
	}
	if changed("padding") {
		cfg.Canvas.Padding = padding
	}
	if changed("start") {
		cfg.Animation.Start = start
	}
	if changed("end") {
		cfg.Animation.End = end
	}
	if changed("fps") {
		cfg.Animation.FPS = fps
	}
	if changed("seed") {
		cfg.Gasket.Seed = seed
	}
	if changed("depth") {
		cfg.Gasket.Depth = depth
	}
	if changed("min-curvature") {
		cfg.Gasket.MinCurvature = minCurv
	}
	if changed("max-curvature") {
		cfg.Gasket.MaxCurvature = maxCurv
	}
	if changed("workers") {
		cfg.Pipeline.Workers = workers
	}
	if changed("retries") {
		cfg.Pipeline.MaxRetries = maxRetries
	}
	if changed("preview-interval") {
		cfg.Pipeline.PreviewInterval = previewInterval
	}
	if changed("preview-width") {
		cfg.Pipeline.PreviewWidth = previewWidth
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*storage.Store, error) {
	st := storage.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return nil, err
	}
	return st, nil
}

// prepare builds the animation for commands that do not render a run.
func prepare(cmd *cobra.Command) (*render.Animation, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	c := controller.New(storage.New(cfg.DataDir))
	anim, attempts, err := c.Prepare(cfg.ControllerOptions())
	if err != nil {
		return nil, err
	}
	if attempts > 1 {
		fmt.Fprintf(os.Stderr, "seed %d was degenerate, using seed %d\n", cfg.Gasket.Seed, anim.State.Seed)
	}
	return anim, nil
}

func renderRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := controller.New(st)
	opts := cfg.ControllerOptions()

	var report *controller.Report
	if useTUI {
		report, err = renderWithTUI(ctx, c, opts)
	} else {
		report, err = c.Run(ctx, opts)
	}
	if report != nil {
		fmt.Printf("run %s: %s, %d/%d frames in %s\n", report.RunID, report.Status,
			report.Persisted, report.Frames, report.Elapsed.Round(time.Millisecond))
		fmt.Printf("frames: %s\n", filepath.Join(report.Dir, "out%04d.png"))
	}
	if err != nil {
		return err
	}

	if writeGIF && report.Status == storage.StatusCompleted {
		run, err := st.Open(report.RunID)
		if err != nil {
			return err
		}
		path, err := run.WriteGIF(storage.GIFOptions{FPS: opts.Render.FPS})
		if err != nil {
			return err
		}
		fmt.Printf("gif: %s\n", path)
	}
	return nil
}

func renderWithTUI(ctx context.Context, c *controller.Controller, opts controller.Options) (*controller.Report, error) {
	type outcome struct {
		report *controller.Report
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := c.Run(ctx, opts)
		done <- outcome{r, err}
	}()

	frames := render.FrameCount(opts.Render.Start, opts.Render.End, opts.Render.FPS)
	m := viz.NewProgressModel("gasket", frames, c.Events(), c.Cancel)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		c.Cancel()
		<-done
		return nil, fmt.Errorf("tui: %w", err)
	}
	out := <-done
	return out.report, out.err
}

func renderFrame(cmd *cobra.Command, args []string) error {
	anim, err := prepare(cmd)
	if err != nil {
		return err
	}
	img, err := render.NewRenderer(anim).Render(cmd.Context(), frameTime)
	if err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return err
	}
	fmt.Printf("frame %d (t=%.3f) written to %s\n", anim.State.FrameIndex(frameTime), frameTime, outPath)
	return nil
}

func plotSchedule(cmd *cobra.Command, args []string) error {
	anim, err := prepare(cmd)
	if err != nil {
		return err
	}
	st := anim.State
	fmt.Println(viz.RevealCurve(anim.Schedule, st.Frames, plotWidth, 12))
	fmt.Printf("\n%d circles over %d frames, last reveal at frame %d\n",
		len(anim.Gasket.Generated), st.Frames, anim.Schedule.Last())
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	anim, err := prepare(cmd)
	if err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := storage.WriteSVG(f, anim, frameNum); err != nil {
		return err
	}
	fmt.Printf("svg written to %s\n", outPath)
	return nil
}

func assembleGIF(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st := storage.New(cfg.DataDir)
	run, err := st.Open(args[0])
	if err != nil {
		return err
	}

	rate := gifFPS
	if rate <= 0 {
		meta, err := run.Metadata()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if meta != nil {
			rate = meta.FPS
		}
	}

	path, err := run.WriteGIF(storage.GIFOptions{FPS: rate, Width: gifWidth})
	if err != nil {
		return err
	}
	fmt.Printf("gif written to %s\n", path)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runs, err := storage.New(cfg.DataDir).List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tSTATUS\tSEED\tSIZE\tFRAMES\tCIRCLES\tELAPSED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%dx%d\t%d/%d\t%d\t%.1fs\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Status,
			run.AcceptedSeed,
			run.Width, run.Height,
			run.Persisted, run.Frames,
			run.Circles,
			run.Elapsed,
		)
	}

	return w.Flush()
}
