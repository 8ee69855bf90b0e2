package sessionService

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	imageService "Unwarp/internal/api/image/service"
	sessionApi "Unwarp/internal/api/session"
	"Unwarp/internal/entity"
	"Unwarp/pkg/utils"
)

type ISessionService interface {
	Create(ctx context.Context, req sessionApi.CreateSessionRequest) (sessionApi.CreateSessionResponse, error)
	Get(ctx context.Context, id string) (sessionApi.StateResponse, error)
	LoadImage(ctx context.Context, id string, req sessionApi.LoadImageRequest) (sessionApi.StateResponse, error)
	Apply(ctx context.Context, id string, g sessionApi.Gesture) (sessionApi.StateResponse, error)
	Process(ctx context.Context, id string) (sessionApi.StateResponse, error)
	Delete(ctx context.Context, id string) error
	Subscribe(id string) (<-chan sessionApi.StateResponse, func(), error)
	Close()
}

// entry guards one session. Every state change happens under mu and is
// pushed to the subscribers while the lock is still held, so they observe
// states in order.
type entry struct {
	mu          sync.Mutex
	session     entity.EditSession
	subscribers map[uint64]chan sessionApi.StateResponse
	closed      bool
}

func (e *entry) broadcast(state sessionApi.StateResponse) {
	for _, ch := range e.subscribers {
		select {
		case ch <- state:
		default:
		}
	}
}

func (e *entry) closeSubscribers() {
	e.closed = true
	for key, ch := range e.subscribers {
		close(ch)
		delete(e.subscribers, key)
	}
}

type sessionService struct {
	log          *logrus.Logger
	imageService imageService.IImageService
	utils        utils.IUtils
	ttl          time.Duration

	mu       sync.RWMutex
	sessions map[string]*entry
	subSeq   atomic.Uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionService keeps editing sessions in memory and starts a janitor
// that drops them once ttl has passed since creation.
func NewSessionService(
	log *logrus.Logger,
	is imageService.IImageService,
	utils utils.IUtils,
	ttl time.Duration,
) ISessionService {
	s := &sessionService{
		log:          log,
		imageService: is,
		utils:        utils,
		ttl:          ttl,
		sessions:     make(map[string]*entry),
		stop:         make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *sessionService) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

func (s *sessionService) janitor() {
	interval := time.Minute
	if s.ttl > 0 && s.ttl/2 < interval {
		interval = s.ttl / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			if n := s.sweep(now); n > 0 {
				s.log.WithFields(logrus.Fields{
					"expired": n,
				}).Info("Expired editing sessions removed")
			}
		}
	}
}

// sweep removes every session expired at now and reports how many went.
func (s *sessionService) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		e.mu.Lock()
		if e.session.Expired(now) {
			e.closeSubscribers()
			delete(s.sessions, id)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

func (s *sessionService) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, sessionApi.ErrSessionNotFound
	}

	e.mu.Lock()
	expired := e.session.Expired(time.Now())
	e.mu.Unlock()
	if expired {
		s.remove(id)
		return nil, sessionApi.ErrSessionNotFound
	}
	return e, nil
}

func (s *sessionService) remove(id string) bool {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		e.mu.Lock()
		e.closeSubscribers()
		e.mu.Unlock()
	}
	return ok
}

func (s *sessionService) Subscribe(id string) (<-chan sessionApi.StateResponse, func(), error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	key := s.subSeq.Add(1)
	ch := make(chan sessionApi.StateResponse, 16)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, nil, sessionApi.ErrSessionNotFound
	}
	e.subscribers[key] = ch
	e.mu.Unlock()

	unsubscribe := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if c, ok := e.subscribers[key]; ok {
			close(c)
			delete(e.subscribers, key)
		}
	}
	return ch, unsubscribe, nil
}
