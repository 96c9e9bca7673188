package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"wadigest/pkg/bus"
	"wadigest/pkg/channel"
	"wadigest/pkg/config"
	"wadigest/pkg/greenapi"
	"wadigest/pkg/store"
	"wadigest/pkg/summary"
)

const (
	defaultHealthHost = "0.0.0.0"
	defaultHealthPort = 18790

	healthCheckInterval = 30 * time.Second
)

// Summarizer runs one summary for a chat.
type Summarizer interface {
	Summarize(ctx context.Context, chatID string, opts summary.RunOptions) (*summary.Run, error)
}

// SummaryStore reads stored summaries.
type SummaryStore interface {
	LatestSummary(ctx context.Context, chatID string) (store.Summary, error)
	ListSummaries(ctx context.Context, chatID string, limit int) ([]store.Summary, error)
	CountSummaries(ctx context.Context) (int64, error)
}

// GroupLister lists the WhatsApp groups of the instance.
type GroupLister interface {
	Groups(ctx context.Context) ([]greenapi.Contact, error)
}

// HealthChecker is one upstream dependency probed for readiness.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Runner is a background loop such as the summary scheduler.
type Runner interface {
	Run(ctx context.Context) error
}

// Deps are the collaborators of the gateway. Only Summaries is required.
type Deps struct {
	Summaries Summarizer
	Store     SummaryStore
	Groups    GroupLister
	Checks    map[string]HealthChecker
	Bus       *bus.MessageBus
	Scheduler Runner
}

type Service struct {
	cfg      *config.Config
	log      *slog.Logger
	deps     Deps
	channels []channel.Adapter
	counters *bus.Counters

	mu            sync.RWMutex
	startedAt     time.Time
	checkStates   map[string]checkState
	channelStates map[string]channelState
}

type checkState struct {
	LastOKAt time.Time `json:"last_ok_at,omitzero"`
	Error    string    `json:"error,omitempty"`
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Checks        map[string]checkState   `json:"checks"`
	Channels      map[string]channelState `json:"channels"`
}

func NewService(cfg *config.Config, deps Deps, adapters []channel.Adapter, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if deps.Summaries == nil {
		return nil, errors.New("summary service is required")
	}
	if deps.Bus == nil {
		deps.Bus = bus.NewMessageBus()
	}
	if log == nil {
		log = slog.Default()
	}

	checkStates := make(map[string]checkState, len(deps.Checks))
	for name := range deps.Checks {
		checkStates[name] = checkState{}
	}
	channelStates := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:           cfg,
		log:           log.With("component", "gateway.service"),
		deps:          deps,
		channels:      adapters,
		counters:      bus.NewCounters(),
		checkStates:   checkStates,
		channelStates: channelStates,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	if err := s.checkHealth(ctx); err != nil {
		return err
	}

	events, unsubscribe := s.deps.Bus.SubscribeEvents(ctx, 0)
	defer unsubscribe()
	go s.counters.Run(ctx, events)

	serverErrors := make(chan error, 1)
	go s.runHTTPServer(ctx, serverErrors)

	go func() {
		ticker := time.NewTicker(healthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.checkHealth(ctx); err != nil {
					s.log.Warn("Dependency health check failed", "error", err)
				}
			}
		}
	}()

	errCh := make(chan error, len(s.channels)+1)
	if s.deps.Scheduler != nil {
		go func() {
			if err := s.deps.Scheduler.Run(ctx); err != nil {
				errCh <- fmt.Errorf("run scheduler: %w", err)
			}
		}()
	}

	for _, adapter := range s.channels {
		s.setChannelState(adapter.Name(), channelState{Running: true})

		go func() {
			err := adapter.Run(ctx, s.handleInbound)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	case err := <-errCh:
		return err
	}
}

func (s *Service) runHTTPServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultHealthHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultHealthPort
	}

	addr := host + ":" + strconv.Itoa(port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway HTTP server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start http server: %w", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Checks:        maps.Clone(s.checkStates),
		Channels:      maps.Clone(s.channelStates),
	}
}

// isReady requires every dependency check to have passed and no enabled
// channel to have stopped.
func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, state := range s.checkStates {
		if state.LastOKAt.IsZero() || state.Error != "" {
			return false
		}
	}
	for _, state := range s.channelStates {
		if !state.Running {
			return false
		}
	}
	return true
}

// checkHealth probes every dependency and returns the first failure.
func (s *Service) checkHealth(ctx context.Context) error {
	names := slices.Sorted(maps.Keys(s.deps.Checks))

	var firstErr error
	for _, name := range names {
		err := s.deps.Checks[name].Health(ctx)

		s.mu.Lock()
		state := s.checkStates[name]
		if err != nil {
			state.Error = err.Error()
		} else {
			state.Error = ""
			state.LastOKAt = time.Now().UTC()
		}
		s.checkStates[name] = state
		s.mu.Unlock()

		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s health check failed: %w", name, err)
		}
	}
	return firstErr
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
