package fuzz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Overclock-Validator/solfuzz/pkg/lightclient"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"
)

// Finding is an iteration that ended in an error worth reporting.
type Finding struct {
	Iteration uint64
	Input     []byte
	Sequence  []string
	Stats     RunStats
	Err       error
	Artifact  string
}

type Runner[A any] struct {
	cfg     Config
	target  *Target[A]
	metrics *metrics

	// LogWriter receives program logs of every worker.
	LogWriter io.Writer
	// OnIteration is called after every completed iteration.
	OnIteration func()

	done    atomic.Uint64
	logOnce sync.Once
	logSink *syncWriter
}

func NewRunner[A any](cfg Config, target *Target[A], reg prometheus.Registerer) *Runner[A] {
	return &Runner[A]{
		cfg:     cfg,
		target:  target,
		metrics: newMetrics(target.Name, reg),
	}
}

// Completed returns the number of finished iterations.
func (r *Runner[A]) Completed() uint64 {
	return r.done.Load()
}

// Rate returns the moving average of iterations per second.
func (r *Runner[A]) Rate() float64 {
	return r.metrics.Rate()
}

func (r *Runner[A]) newClient() *lightclient.LightClient {
	cfg := r.cfg.ClientConfig()
	if r.LogWriter != nil {
		r.logOnce.Do(func() { r.logSink = &syncWriter{w: r.LogWriter} })
		cfg.LogWriter = r.logSink
	}
	return lightclient.New(cfg)
}

// Input derives the fuzzer input of an iteration from the configured seed.
func (r *Runner[A]) Input(iteration uint64) []byte {
	rng := rand.New(rand.NewPCG(r.cfg.Seed, iteration))
	input := make([]byte, r.cfg.InputLen)
	for i := range input {
		input[i] = byte(rng.Uint32())
	}
	return input
}

// Run executes up to cfg.Iterations iterations across cfg.Workers workers and
// stops at the first finding, which is returned.
func (r *Runner[A]) Run(ctx context.Context) (*Finding, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	clients := make(chan *lightclient.LightClient, r.cfg.Workers)
	for i := 0; i < r.cfg.Workers; i++ {
		clients <- r.newClient()
	}

	var (
		wg      sync.WaitGroup
		once    sync.Once
		finding *Finding
	)

	pool, err := ants.NewPoolWithFunc(r.cfg.Workers, func(i interface{}) {
		defer wg.Done()
		iteration := i.(uint64)
		if ctx.Err() != nil {
			return
		}

		client := <-clients
		defer func() { clients <- client }()

		f := r.iterate(client, iteration, r.Input(iteration))
		if f == nil {
			return
		}
		var panicErr *PanicError
		if errors.As(f.Err, &panicErr) {
			client = r.newClient()
		}
		once.Do(func() {
			finding = f
			cancel()
		})
	})
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	go r.sampleRate(ctx)

	klog.Infof("fuzzing %s with %d workers, %d iterations, seed %d", r.target.Name, r.cfg.Workers, r.cfg.Iterations, r.cfg.Seed)
	for iteration := uint64(0); iteration < r.cfg.Iterations && ctx.Err() == nil; iteration++ {
		wg.Add(1)
		if err = pool.Invoke(iteration); err != nil {
			wg.Done()
			klog.Errorf("submitting iteration %d: %s", iteration, err)
			break
		}
	}
	wg.Wait()

	if finding == nil {
		klog.Infof("fuzzing %s finished after %d iterations without findings", r.target.Name, r.Completed())
		return nil, nil
	}
	r.report(finding)
	return finding, nil
}

func (r *Runner[A]) sampleRate(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := r.done.Load()
			r.metrics.sample(float64(cur - last))
			last = cur
		}
	}
}

// iterate runs a single input and returns a finding if it produced one.
func (r *Runner[A]) iterate(client *lightclient.LightClient, iteration uint64, input []byte) *Finding {
	data, stats, err := r.execute(client, input)
	defer func() {
		r.done.Add(1)
		if r.OnIteration != nil {
			r.OnIteration()
		}
	}()

	if errors.Is(err, ErrNotEnoughData) {
		r.metrics.skippedInputs.Inc()
		return nil
	}
	r.metrics.observe(stats)
	if err == nil {
		return nil
	}

	r.metrics.findings.Inc()
	f := &Finding{Iteration: iteration, Input: input, Stats: stats, Err: err}
	if data != nil {
		f.Sequence = data.Sequence()
	}
	return f
}

func (r *Runner[A]) execute(client *lightclient.LightClient, input []byte) (data *FuzzData[A], stats RunStats, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Value: p, Stack: debug.Stack()}
		}
	}()

	client.CleanCtx()
	client.AddProgram(r.target.ProgramId, r.target.Program)

	data, err = r.target.Build(NewUnstructured(input))
	if err != nil {
		return nil, stats, err
	}
	stats, err = data.Run(client, r.target.ProgramId, r.cfg.AllowDuplicateTxs)
	return data, stats, err
}

func (r *Runner[A]) report(f *Finding) {
	klog.Errorf("finding in %s at iteration %d: %s", r.target.Name, f.Iteration, f.Err)
	for _, line := range f.Sequence {
		klog.Errorf("  %s", line)
	}
	var panicErr *PanicError
	if errors.As(f.Err, &panicErr) {
		klog.Errorf("%s", panicErr.Stack)
	}

	if r.cfg.ArtifactsDir == "" {
		return
	}
	path, err := WriteArtifact(r.cfg.ArtifactsDir, f.Input)
	if err != nil {
		klog.Errorf("writing crash artifact: %s", err)
		return
	}
	f.Artifact = path
	klog.Infof("crash input written to %s", path)
}

// Replay runs a single input on a fresh harness. It returns nil if the
// input does not reproduce a finding.
func (r *Runner[A]) Replay(input []byte) (*Finding, error) {
	data, stats, err := r.execute(r.newClient(), input)
	if errors.Is(err, ErrNotEnoughData) {
		return nil, fmt.Errorf("input of %d bytes is too short for %s", len(input), r.target.Name)
	}
	if err == nil {
		klog.Infof("replay of %s: %d processed, %d failed, %d skipped, no finding", r.target.Name, stats.Processed, stats.Failed, stats.Skipped)
		return nil, nil
	}
	f := &Finding{Input: input, Stats: stats, Err: err}
	if data != nil {
		f.Sequence = data.Sequence()
	}
	return f, nil
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
