// Package scheduler 基于 cron 表达式周期性执行任务，附带超时、重试、防重入与指标.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/wyfcoding/montecarlo/async"
	"github.com/wyfcoding/montecarlo/logging"
	"github.com/wyfcoding/montecarlo/metrics"
	"github.com/wyfcoding/montecarlo/retry"
)

var (
	// ErrJobNameEmpty 任务名称为空。
	ErrJobNameEmpty = errors.New("job name is empty")
	// ErrJobSpecInvalid cron 表达式非法。
	ErrJobSpecInvalid = errors.New("job cron spec is invalid")
	// ErrJobAlreadyExists 任务名称重复。
	ErrJobAlreadyExists = errors.New("job already exists")
	// ErrJobHandlerNil 任务处理函数为空。
	ErrJobHandlerNil = errors.New("job handler is nil")
	// ErrJobNotFound 任务不存在。
	ErrJobNotFound = errors.New("job not found")
)

// Job 定义定时任务函数原型。
type Job func(ctx context.Context) error

// JobConfig 定义任务调度参数。
type JobConfig struct {
	Name            string        // 任务名称（唯一）。
	Spec            string        // 标准 5 段 cron 表达式，也支持 @every 1h 之类的描述符。
	Timeout         time.Duration // 单次执行超时。
	Retry           retry.Config  // 瞬时失败的重试策略。
	RunOnStart      bool          // 启动时立即执行一次。
	AllowConcurrent bool          // 是否允许同一任务重叠执行。
}

// Scheduler 负责任务的统一调度与生命周期管理。
type Scheduler struct {
	logger  *logging.Logger
	cron    *cron.Cron
	mu      sync.Mutex
	jobs    map[string]*jobRunner
	metrics *schedulerMetrics
	ctx     context.Context
	cancel  context.CancelFunc
	startup sync.WaitGroup
}

type jobRunner struct {
	cfg     JobConfig
	handler Job
	running atomic.Bool
}

type schedulerMetrics struct {
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobRunning  *prometheus.GaugeVec
}

// New 创建调度器，m 为 nil 时不采集指标。
func New(logger *logging.Logger, m *metrics.Metrics) *Scheduler {
	if logger == nil {
		logger = logging.Default().WithModule("scheduler")
	}

	var sm *schedulerMetrics
	if m != nil {
		sm = &schedulerMetrics{
			jobRuns: m.NewCounterVec(prometheus.CounterOpts{
				Subsystem: "scheduler",
				Name:      "job_runs_total",
				Help:      "Total number of scheduled job runs",
			}, []string{"job", "status"}),
			jobDuration: m.NewHistogramVec(prometheus.HistogramOpts{
				Subsystem: "scheduler",
				Name:      "job_duration_seconds",
				Help:      "Scheduled job execution duration",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			}, []string{"job", "status"}),
			jobRunning: m.NewGaugeVec(prometheus.GaugeOpts{
				Subsystem: "scheduler",
				Name:      "job_running",
				Help:      "Current running jobs",
			}, []string{"job"}),
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	adapter := cronLogger{logger}
	return &Scheduler{
		logger:  logger,
		cron:    cron.New(cron.WithLogger(adapter), cron.WithChain(cron.Recover(adapter))),
		jobs:    make(map[string]*jobRunner),
		metrics: sm,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddJob 注册一个新的调度任务。
func (s *Scheduler) AddJob(cfg JobConfig, handler Job) error {
	if cfg.Name == "" {
		return ErrJobNameEmpty
	}
	if handler == nil {
		return ErrJobHandlerNil
	}
	if _, err := cron.ParseStandard(cfg.Spec); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrJobSpecInvalid, cfg.Spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[cfg.Name]; exists {
		return ErrJobAlreadyExists
	}

	runner := &jobRunner{cfg: cfg, handler: handler}
	if _, err := s.cron.AddFunc(cfg.Spec, func() { s.execute(s.ctx, runner) }); err != nil {
		return fmt.Errorf("%w: %w", ErrJobSpecInvalid, err)
	}
	s.jobs[cfg.Name] = runner
	s.logger.Info("scheduler job registered", "job", cfg.Name, "spec", cfg.Spec)
	return nil
}

// Start 启动调度器；RunOnStart 的任务在后台立即执行一次。
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, runner := range s.jobs {
		if runner.cfg.RunOnStart {
			s.startup.Add(1)
			async.SafeGo(func() {
				defer s.startup.Done()
				s.execute(s.ctx, runner)
			})
		}
	}
	s.cron.Start()
}

// Stop 停止触发新任务，取消正在执行的任务并等待其退出。
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	cronDone := s.cron.Stop().Done()
	done := make(chan struct{})
	go func() {
		<-cronDone
		s.startup.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Trigger 立即同步执行一次指定任务。
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	runner, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, runner)
}

func (s *Scheduler) execute(ctx context.Context, runner *jobRunner) error {
	name := runner.cfg.Name
	if !runner.cfg.AllowConcurrent {
		if !runner.running.CompareAndSwap(false, true) {
			s.logger.Warn("scheduler job skipped (already running)", "job", name)
			s.observe(name, "skipped", 0)
			return nil
		}
		defer runner.running.Store(false)
	}

	if runner.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runner.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	if s.metrics != nil {
		s.metrics.jobRunning.WithLabelValues(name).Inc()
		defer s.metrics.jobRunning.WithLabelValues(name).Dec()
	}
	err := retry.If(ctx, func() error { return runner.handler(ctx) }, retry.Transient, runner.cfg.Retry)
	if err != nil {
		s.observe(name, "failed", time.Since(start))
		s.logger.ErrorContext(ctx, "scheduler job failed", "job", name, "error", err)
		return err
	}

	s.observe(name, "success", time.Since(start))
	s.logger.DebugContext(ctx, "scheduler job succeeded", "job", name, "duration", time.Since(start))
	return nil
}

func (s *Scheduler) observe(job, status string, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.jobRuns.WithLabelValues(job, status).Inc()
	if status != "skipped" {
		s.metrics.jobDuration.WithLabelValues(job, status).Observe(elapsed.Seconds())
	}
}

// cronLogger 将 cron 的日志接口适配到 slog.
type cronLogger struct {
	l *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
