package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/DagneMan123/simuAI-sub001/config"
	"github.com/DagneMan123/simuAI-sub001/internal/model"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// timeNow is a seam for tests.
var timeNow = time.Now

// Monitor states. Degradation is monotonic: a session never returns to ACTIVE.
const (
	MonitorActive         = "ACTIVE"
	MonitorDegraded       = "DEGRADED"
	MonitorForceSubmitted = "FORCE_SUBMITTED"
)

// MonitorService consumes classified integrity signals for active sessions,
// writes them to the ledger, and escalates. The force-submit callback fires at
// most once per session, ever, even under a burst of simultaneous signals.
type MonitorService interface {
	// Watch starts observing a session. onWarn receives each recorded event;
	// onForce is the forced-completion path.
	Watch(sessionID uint, onWarn func(event *model.ViolationEvent), onForce func())
	// Signal ingests one typed signal. Unknown sessions are dropped; duplicate
	// signals of one type inside the debounce window collapse into the first
	// event.
	Signal(sessionID uint, violationType model.ViolationType, occurredAt time.Time, dedupeKey string, metadata datatypes.JSON) error
	// Forget stops tracking a session. Called on completion; late signals for a
	// forgotten session are dropped as unknown.
	Forget(sessionID uint)
	State(sessionID uint) (string, bool)
}

type sessionMonitor struct {
	mu         sync.Mutex
	state      string
	violations int
	lastSeen   map[model.ViolationType]time.Time
	forced     bool
	onWarn     func(event *model.ViolationEvent)
	onForce    func()
}

type monitorService struct {
	mu       sync.Mutex
	sessions map[uint]*sessionMonitor
	ledger   LedgerService
	cfg      *config.Config
}

func NewMonitorService(ledger LedgerService, cfg *config.Config) MonitorService {
	return &monitorService{
		sessions: make(map[uint]*sessionMonitor),
		ledger:   ledger,
		cfg:      cfg,
	}
}

// classifySeverity maps signal types to severities. Classification of raw
// browser/OS state into these types happens upstream.
func classifySeverity(violationType model.ViolationType) model.Severity {
	switch violationType {
	case model.ViolationScreenRecord:
		return model.SeverityCritical
	case model.ViolationFullscreenExit:
		return model.SeverityHigh
	case model.ViolationTabSwitch, model.ViolationCopy, model.ViolationPaste, model.ViolationRestrictedKey:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func (s *monitorService) Watch(sessionID uint, onWarn func(event *model.ViolationEvent), onForce func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sessionID]; exists {
		return
	}
	s.sessions[sessionID] = &sessionMonitor{
		state:    MonitorActive,
		lastSeen: make(map[model.ViolationType]time.Time),
		onWarn:   onWarn,
		onForce:  onForce,
	}
	log.Info().Uint("sessionID", sessionID).Msg("Integrity monitor watching session")
}

func (s *monitorService) Signal(sessionID uint, violationType model.ViolationType, occurredAt time.Time, dedupeKey string, metadata datatypes.JSON) error {
	s.mu.Lock()
	m, exists := s.sessions[sessionID]
	s.mu.Unlock()
	if !exists {
		return fmt.Errorf("no active monitor for session %d", sessionID)
	}

	m.mu.Lock()
	if m.state == MonitorForceSubmitted {
		m.mu.Unlock()
		return nil
	}
	if last, seen := m.lastSeen[violationType]; seen && occurredAt.Sub(last) < s.cfg.Integrity.DebounceWindow {
		// Burst of the same signal type: keep the first, drop the rest.
		m.mu.Unlock()
		return nil
	}
	m.lastSeen[violationType] = occurredAt
	m.mu.Unlock()

	severity := classifySeverity(violationType)
	event, err := s.ledger.Record(sessionID, violationType, severity, dedupeKey, metadata)
	if err != nil {
		// The signal never made the ledger, so it must not burn its debounce
		// slot; a redelivery inside the window gets another try.
		m.mu.Lock()
		if last, seen := m.lastSeen[violationType]; seen && last.Equal(occurredAt) {
			delete(m.lastSeen, violationType)
		}
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.violations++
	if m.state == MonitorActive {
		m.state = MonitorDegraded
	}
	shouldForce := !m.forced &&
		(severity == model.SeverityCritical || m.violations >= s.cfg.Integrity.ForceThreshold)
	if shouldForce {
		m.forced = true
		m.state = MonitorForceSubmitted
	}
	violations := m.violations
	onWarn := m.onWarn
	onForce := m.onForce
	m.mu.Unlock()

	if onWarn != nil {
		onWarn(event)
	}
	if shouldForce {
		log.Warn().
			Uint("sessionID", sessionID).
			Str("type", string(violationType)).
			Int("violations", violations).
			Msg("Integrity threshold exceeded, forcing submission")
		if onForce != nil {
			onForce()
		}
	}
	return nil
}

func (s *monitorService) Forget(sessionID uint) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

func (s *monitorService) State(sessionID uint) (string, bool) {
	s.mu.Lock()
	m, exists := s.sessions[sessionID]
	s.mu.Unlock()
	if !exists {
		return "", false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, true
}
