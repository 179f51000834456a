package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is a named unit of periodic work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
	// Every is the interval between runs. Jobs with a non-positive interval are skipped.
	Every time.Duration
	// RunOnStart runs the job once as soon as the scheduler starts.
	RunOnStart bool
}

// Scheduler runs registered jobs on their intervals, one job at a time.
type Scheduler struct {
	logger   *logrus.Logger
	jobs     []Job
	stopChan chan struct{}
	wg       sync.WaitGroup
	jobMutex sync.Mutex // Ensures sequential job execution
	timeout  time.Duration
	// ctx is the parent of every job run; Stop cancels it.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler whose job runs are bounded by timeout.
func NewScheduler(logger *logrus.Logger, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger:   logger,
		stopChan: make(chan struct{}),
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Add registers a job. It must be called before Start.
func (s *Scheduler) Add(job Job) {
	if job.Every <= 0 {
		s.logger.WithField("job", job.Name).Info("Job disabled, not scheduling")
		return
	}
	s.jobs = append(s.jobs, job)
}

// Start begins the scheduled jobs.
func (s *Scheduler) Start() {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runJob(job)
	}
}

func (s *Scheduler) runJob(job Job) {
	defer s.wg.Done()

	if job.RunOnStart {
		s.execute(job)
	}

	ticker := time.NewTicker(job.Every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.execute(job)
		}
	}
}

// execute runs one job under the shared mutex and logs its outcome.
func (s *Scheduler) execute(job Job) {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	if s.ctx.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.WithField("job", job.Name).Debug("Starting scheduled job")
	if err := job.Run(ctx); err != nil {
		s.logger.WithError(err).WithField("job", job.Name).Error("Scheduled job failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"job":      job.Name,
		"duration": time.Since(start).String(),
	}).Info("Scheduled job completed successfully")
}

// Stop cancels running jobs, stops the tickers and waits for the job goroutines.
func (s *Scheduler) Stop() {
	s.cancel()
	close(s.stopChan)
	s.wg.Wait()
}
