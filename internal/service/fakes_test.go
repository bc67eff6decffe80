package service

import (
	"context"
	"sync"
	"time"

	"github.com/DagneMan123/simuAI-sub001/config"
	"github.com/DagneMan123/simuAI-sub001/internal/model"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Integrity.ForceThreshold = 3
	cfg.Integrity.DebounceWindow = 2 * time.Second
	cfg.Integrity.HighPenaltyPoints = 20
	cfg.Integrity.MediumPenaltyPoints = 10
	cfg.Evaluation.Workers = 1
	cfg.Evaluation.MaxAttempts = 3
	cfg.Evaluation.BaseBackoff = time.Millisecond
	cfg.Evaluation.QueueSize = 16
	return cfg
}

// --- violation repository fake ---

type fakeViolationRepo struct {
	mu        sync.Mutex
	nextID    uint
	events    []*model.ViolationEvent
	createErr error
}

func newFakeViolationRepo() *fakeViolationRepo {
	return &fakeViolationRepo{nextID: 1}
}

// failCreate makes the next Create call return err.
func (r *fakeViolationRepo) failCreate(err error) {
	r.mu.Lock()
	r.createErr = err
	r.mu.Unlock()
}

func (r *fakeViolationRepo) Create(event *model.ViolationEvent) (*model.ViolationEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		err := r.createErr
		r.createErr = nil
		return nil, err
	}
	for _, e := range r.events {
		if e.SessionID == event.SessionID && e.DedupeKey == event.DedupeKey {
			return e, nil
		}
	}
	event.ID = r.nextID
	r.nextID++
	stored := *event
	r.events = append(r.events, &stored)
	return &stored, nil
}

func (r *fakeViolationRepo) Update(event *model.ViolationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.events {
		if e.ID == event.ID {
			updated := *event
			r.events[i] = &updated
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeViolationRepo) FindByID(id uint) (*model.ViolationEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			found := *e
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeViolationRepo) FindAllBySession(sessionID uint, unresolvedOnly bool) ([]model.ViolationEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ViolationEvent
	for _, e := range r.events {
		if e.SessionID != sessionID {
			continue
		}
		if unresolvedOnly && e.Resolved {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (r *fakeViolationRepo) CountBySession(sessionID uint, unresolvedOnly bool) (int64, error) {
	events, _ := r.FindAllBySession(sessionID, unresolvedOnly)
	return int64(len(events)), nil
}

func (r *fakeViolationRepo) CountBySeverity(sessionID uint, severity model.Severity, unresolvedOnly bool) (int64, error) {
	events, _ := r.FindAllBySession(sessionID, unresolvedOnly)
	var count int64
	for _, e := range events {
		if e.Severity == severity {
			count++
		}
	}
	return count, nil
}

// --- simulation repository fake ---

type fakeSimulationRepo struct {
	mu          sync.Mutex
	nextID      uint
	simulations map[uint]*model.Simulation
}

func newFakeSimulationRepo() *fakeSimulationRepo {
	return &fakeSimulationRepo{nextID: 1, simulations: make(map[uint]*model.Simulation)}
}

func (r *fakeSimulationRepo) Create(simulation *model.Simulation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	simulation.ID = r.nextID
	r.nextID++
	for i := range simulation.Steps {
		simulation.Steps[i].ID = r.nextID
		simulation.Steps[i].SimulationID = simulation.ID
		r.nextID++
	}
	stored := *simulation
	r.simulations[simulation.ID] = &stored
	return nil
}

func (r *fakeSimulationRepo) Update(simulation *model.Simulation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.simulations[simulation.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *simulation
	r.simulations[simulation.ID] = &stored
	return nil
}

func (r *fakeSimulationRepo) FindByID(id uint) (*model.Simulation, error) {
	return r.FindByIDWithSteps(id)
}

func (r *fakeSimulationRepo) FindByIDWithSteps(id uint) (*model.Simulation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	simulation, ok := r.simulations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	found := *simulation
	return &found, nil
}

func (r *fakeSimulationRepo) FindAllPublishedWithStepCount() ([]struct {
	model.Simulation
	StepCount int
}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []struct {
		model.Simulation
		StepCount int
	}
	for _, simulation := range r.simulations {
		if !simulation.Published {
			continue
		}
		out = append(out, struct {
			model.Simulation
			StepCount int
		}{*simulation, len(simulation.Steps)})
	}
	return out, nil
}

// --- invitation repository fake ---

type fakeInvitationRepo struct {
	mu          sync.Mutex
	nextID      uint
	invitations []*model.Invitation
}

func newFakeInvitationRepo() *fakeInvitationRepo {
	return &fakeInvitationRepo{nextID: 1}
}

func (r *fakeInvitationRepo) Create(invitation *model.Invitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	invitation.ID = r.nextID
	r.nextID++
	stored := *invitation
	r.invitations = append(r.invitations, &stored)
	return nil
}

func (r *fakeInvitationRepo) Update(invitation *model.Invitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, inv := range r.invitations {
		if inv.ID == invitation.ID {
			updated := *invitation
			r.invitations[i] = &updated
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeInvitationRepo) FindByToken(token string) (*model.Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invitations {
		if inv.Token == token {
			found := *inv
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeInvitationRepo) findByStatus(simulationID, candidateID uint, status string) (*model.Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invitations {
		if inv.SimulationID == simulationID && inv.CandidateID != nil && *inv.CandidateID == candidateID && inv.Status == status {
			found := *inv
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeInvitationRepo) FindPending(simulationID, candidateID uint) (*model.Invitation, error) {
	return r.findByStatus(simulationID, candidateID, model.InvitationPending)
}

func (r *fakeInvitationRepo) FindAccepted(simulationID, candidateID uint) (*model.Invitation, error) {
	return r.findByStatus(simulationID, candidateID, model.InvitationAccepted)
}

func (r *fakeInvitationRepo) FindStalePending(now time.Time) ([]model.Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Invitation
	for _, inv := range r.invitations {
		if inv.Status == model.InvitationPending && inv.ExpiresAt.Before(now) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

// --- session repository fake ---

type fakeSessionRepo struct {
	mu       sync.Mutex
	nextID   uint
	sessions map[uint]*model.Session
	sims     *fakeSimulationRepo
}

func newFakeSessionRepo(sims *fakeSimulationRepo) *fakeSessionRepo {
	return &fakeSessionRepo{nextID: 1, sessions: make(map[uint]*model.Session), sims: sims}
}

func (r *fakeSessionRepo) Create(session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session.ID = r.nextID
	r.nextID++
	stored := *session
	r.sessions[session.ID] = &stored
	return nil
}

func (r *fakeSessionRepo) Update(session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *session
	r.sessions[session.ID] = &stored
	return nil
}

func (r *fakeSessionRepo) FindByID(id uint) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	found := *session
	return &found, nil
}

func (r *fakeSessionRepo) FindByIDWithSubmissions(id uint) (*model.Session, error) {
	return r.FindByID(id)
}

func (r *fakeSessionRepo) FindNonExpiredByPair(candidateID, simulationID uint) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.CandidateID == candidateID && session.SimulationID == simulationID && session.Status != model.SessionExpired {
			found := *session
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeSessionRepo) FindAllByCandidate(candidateID uint) ([]model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Session
	for _, session := range r.sessions {
		if session.CandidateID == candidateID {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) FindAllBySimulation(simulationID uint) ([]model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Session
	for _, session := range r.sessions {
		if session.SimulationID == simulationID {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) FindOverrunInProgress(now time.Time) ([]model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Session
	for _, session := range r.sessions {
		if session.Status != model.SessionInProgress {
			continue
		}
		simulation, err := r.sims.FindByIDWithSteps(session.SimulationID)
		if err != nil {
			continue
		}
		deadline := session.StartedAt.Add(time.Duration(simulation.DurationSeconds) * time.Second)
		if deadline.Before(now) {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) FindAllInProgress() ([]model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Session
	for _, session := range r.sessions {
		if session.Status == model.SessionInProgress {
			out = append(out, *session)
		}
	}
	return out, nil
}

// --- submission repository fake ---

type fakeSubmissionRepo struct {
	mu          sync.Mutex
	nextID      uint
	submissions map[uint]*model.Submission
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{nextID: 1, submissions: make(map[uint]*model.Submission)}
}

func (r *fakeSubmissionRepo) Create(submission *model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	submission.ID = r.nextID
	r.nextID++
	stored := *submission
	r.submissions[submission.ID] = &stored
	return nil
}

func (r *fakeSubmissionRepo) Update(submission *model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.submissions[submission.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *submission
	r.submissions[submission.ID] = &stored
	return nil
}

func (r *fakeSubmissionRepo) FindByID(id uint) (*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	submission, ok := r.submissions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	found := *submission
	return &found, nil
}

func (r *fakeSubmissionRepo) FindByIDWithStep(id uint) (*model.Submission, error) {
	return r.FindByID(id)
}

func (r *fakeSubmissionRepo) FindBySessionAndStep(sessionID, stepID uint) (*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, submission := range r.submissions {
		if submission.SessionID == sessionID && submission.StepID == stepID {
			found := *submission
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeSubmissionRepo) MarkScoring(id uint, version, attempt int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	submission, ok := r.submissions[id]
	if !ok || submission.Version != version || submission.EvaluationStatus == model.EvaluationScored {
		return false, nil
	}
	submission.EvaluationStatus = model.EvaluationScoring
	submission.Attempts = attempt
	return true, nil
}

func (r *fakeSubmissionRepo) StoreScore(id uint, version int, score float64, feedback string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	submission, ok := r.submissions[id]
	if !ok || submission.Version != version {
		return false, nil
	}
	submission.Score = &score
	submission.Feedback = &feedback
	submission.EvaluationStatus = model.EvaluationScored
	return true, nil
}

func (r *fakeSubmissionRepo) SetStatusIfVersion(id uint, version int, status string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	submission, ok := r.submissions[id]
	if !ok || submission.Version != version {
		return false, nil
	}
	submission.EvaluationStatus = status
	return true, nil
}

func (r *fakeSubmissionRepo) FindAllBySession(sessionID uint) ([]model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Submission
	for _, submission := range r.submissions {
		if submission.SessionID == sessionID {
			out = append(out, *submission)
		}
	}
	return out, nil
}

// --- generator fake ---

type fakeGenerator struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
}

func (g *fakeGenerator) Generate(_ context.Context, _ GenerateRequest) (*GenerateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx := g.calls
	g.calls++
	if idx < len(g.errs) && g.errs[idx] != nil {
		return nil, g.errs[idx]
	}
	text := "Score: 80\nFeedback:\nSolid work."
	if idx < len(g.responses) {
		text = g.responses[idx]
	}
	return &GenerateResult{Text: text, ModelID: "fake-model"}, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// --- evaluation queue fake ---

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []uint
}

func (q *fakeQueue) Enqueue(submissionID uint) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, submissionID)
}

func (q *fakeQueue) Start() {}
func (q *fakeQueue) Stop()  {}
