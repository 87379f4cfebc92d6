package run

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/Overclock-Validator/solfuzz/pkg/demo"
	"github.com/Overclock-Validator/solfuzz/pkg/fuzz"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/textio"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"k8s.io/klog/v2"
)

var (
	Cmd = cobra.Command{
		Use:   "run",
		Short: "Fuzz the demo vault program",
		Args:  cobra.NoArgs,
		Run:   run,
	}

	configPath   string
	iterations   uint64
	workers      int
	seed         uint64
	artifactsDir string
	metricsAddr  string
	programLogs  bool
)

func init() {
	Cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path of a solfuzz.yaml config")
	Cmd.Flags().Uint64VarP(&iterations, "iterations", "n", 0, "Number of iterations (overrides config)")
	Cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of workers (overrides config)")
	Cmd.Flags().Uint64Var(&seed, "seed", 0, "Input generator seed (overrides config)")
	Cmd.Flags().StringVarP(&artifactsDir, "artifacts", "o", "", "Directory for crash inputs (overrides config)")
	Cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address")
	Cmd.Flags().BoolVar(&programLogs, "program-logs", false, "Echo program logs to stderr")
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(c *cobra.Command) (fuzz.Config, error) {
	cfg := fuzz.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = fuzz.LoadConfig(configPath); err != nil {
			return cfg, err
		}
	}

	flags := c.Flags()
	if flags.Changed("iterations") {
		cfg.Iterations = iterations
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("artifacts") {
		cfg.ArtifactsDir = artifactsDir
	}
	return cfg, cfg.Validate()
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	klog.Infof("serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		klog.Errorf("metrics server: %s", err)
	}
}

func run(c *cobra.Command, _ []string) {
	cfg, err := loadConfig(c)
	if err != nil {
		klog.Exitf("invalid configuration: %s", err)
	}

	reg := prometheus.NewRegistry()
	runner := fuzz.NewRunner(cfg, demo.Target(), reg)
	if metricsAddr != "" {
		go serveMetrics(metricsAddr, reg)
	}

	var logs *textio.PrefixWriter
	if programLogs {
		logs = textio.NewPrefixWriter(os.Stderr, "program: ")
		runner.LogWriter = logs
	}

	var (
		progress *mpb.Progress
		bar      *mpb.Bar
	)
	if fd := os.Stderr.Fd(); isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		progress = mpb.NewWithContext(c.Context(), mpb.WithOutput(os.Stderr), mpb.WithWidth(48))
		bar = progress.AddBar(int64(cfg.Iterations),
			mpb.PrependDecorators(
				decor.Name("vault "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Elapsed(decor.ET_STYLE_MMSS),
				decor.Any(func(decor.Statistics) string {
					return fmt.Sprintf(" %.0f it/s", runner.Rate())
				}),
			),
		)
		runner.OnIteration = bar.Increment
	}

	finding, err := runner.Run(c.Context())
	if bar != nil {
		if !bar.Completed() {
			bar.Abort(false)
		}
		progress.Wait()
	}
	if logs != nil {
		_ = logs.Flush()
	}
	if err != nil {
		klog.Exitf("fuzzing failed: %s", err)
	}

	if finding == nil {
		klog.Infof("no findings after %d iterations", runner.Completed())
		return
	}
	if finding.Artifact != "" {
		klog.Exitf("found a defect at iteration %d, replay with: solfuzz replay %s", finding.Iteration, finding.Artifact)
	}
	klog.Exitf("found a defect at iteration %d: %s", finding.Iteration, finding.Err)
}
