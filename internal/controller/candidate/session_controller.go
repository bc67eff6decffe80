package candidate

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/DagneMan123/simuAI-sub001/internal/apperr"
	"github.com/DagneMan123/simuAI-sub001/internal/dto"
	"github.com/DagneMan123/simuAI-sub001/internal/model"
	"github.com/DagneMan123/simuAI-sub001/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
)

type SessionController struct {
	sessionService    service.SessionService
	simulationService service.SimulationService
}

func NewSessionController(sessionService service.SessionService, simulationService service.SimulationService) *SessionController {
	return &SessionController{
		sessionService:    sessionService,
		simulationService: simulationService,
	}
}

// principalID reads the verified candidate identity. Authentication itself is
// the gateway's job; the engine trusts the forwarded header.
func principalID(ctx *gin.Context) (uint, bool) {
	idStr := ctx.GetHeader("X-User-ID")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Missing or invalid X-User-ID header"})
		return 0, false
	}
	return uint(id), true
}

func pathID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid " + name + " format"})
		return 0, false
	}
	return uint(id), true
}

// mapDomainError translates the engine's typed errors to HTTP statuses.
func mapDomainError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrStepNotFound):
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, apperr.ErrAccessDenied):
		ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, apperr.ErrAlreadyStarted):
		ctx.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, apperr.ErrInvalidState):
		ctx.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, apperr.ErrResultNotAvailable):
		ctx.JSON(http.StatusAccepted, gin.H{"status": "pending"})
	default:
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
}

// ListSimulations godoc
// @Summary (Candidate) List published simulations
// @Tags Candidate - Sessions
// @Produce json
// @Success 200 {array} dto.SimulationSummaryDTO
// @Failure 500 {object} dto.ErrorResponse
// @Router /simulations [get]
func (c *SessionController) ListSimulations(ctx *gin.Context) {
	simulations, err := c.simulationService.ListPublished()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to retrieve simulations"})
		return
	}
	ctx.JSON(http.StatusOK, simulations)
}

// GetSimulation godoc
// @Summary (Candidate) Get a simulation's candidate view
// @Description Steps are returned without their grading spec.
// @Tags Candidate - Sessions
// @Produce json
// @Param simulation_id path int true "Simulation ID"
// @Success 200 {object} dto.SimulationResponseDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /simulations/{simulation_id} [get]
func (c *SessionController) GetSimulation(ctx *gin.Context) {
	simulationID, ok := pathID(ctx, "simulation_id")
	if !ok {
		return
	}
	view, err := c.simulationService.CandidateView(simulationID)
	if err != nil {
		mapDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// StartSession godoc
// @Summary (Candidate) Start a session for a simulation
// @Description Requires a pending invitation or a published simulation. A second start for the same pair returns 409.
// @Tags Candidate - Sessions
// @Produce json
// @Param simulation_id path int true "Simulation ID"
// @Success 201 {object} dto.SessionResponseDTO
// @Failure 403 {object} dto.ErrorResponse "No valid invitation"
// @Failure 404 {object} dto.ErrorResponse "Unknown simulation"
// @Failure 409 {object} dto.ErrorResponse "Already started"
// @Router /simulations/{simulation_id}/sessions [post]
func (c *SessionController) StartSession(ctx *gin.Context) {
	candidateID, ok := principalID(ctx)
	if !ok {
		return
	}
	simulationID, ok := pathID(ctx, "simulation_id")
	if !ok {
		return
	}

	session, err := c.sessionService.Start(candidateID, simulationID)
	if err != nil {
		mapDomainError(ctx, err)
		return
	}

	var resp dto.SessionResponseDTO
	copier.Copy(&resp, session)
	ctx.JSON(http.StatusCreated, resp)
}

// SubmitStep godoc
// @Summary (Candidate) Submit one step of an in-progress session
// @Description Idempotent per (session, step): a resubmission overwrites content and unions integrity flags. Scoring is asynchronous.
// @Tags Candidate - Sessions
// @Accept json
// @Produce json
// @Param session_id path int true "Session ID"
// @Param step_id path int true "Step ID"
// @Param submission body dto.StepSubmitDTO true "Step content and flags"
// @Success 202 {object} dto.SubmissionResponseDTO
// @Failure 404 {object} dto.ErrorResponse "Step not in this session's simulation"
// @Failure 409 {object} dto.ErrorResponse "Session not in progress"
// @Router /sessions/{session_id}/steps/{step_id} [post]
func (c *SessionController) SubmitStep(ctx *gin.Context) {
	sessionID, ok := pathID(ctx, "session_id")
	if !ok {
		return
	}
	stepID, ok := pathID(ctx, "step_id")
	if !ok {
		return
	}

	var req dto.StepSubmitDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	submission, err := c.sessionService.SubmitStep(sessionID, stepID, req.Content, req.IntegrityFlags)
	if err != nil {
		mapDomainError(ctx, err)
		return
	}

	var resp dto.SubmissionResponseDTO
	copier.Copy(&resp, submission)
	ctx.JSON(http.StatusAccepted, resp)
}

// CompleteSession godoc
// @Summary (Candidate) Complete an in-progress session
// @Description Idempotent: completing a finished session returns its existing result.
// @Tags Candidate - Sessions
// @Produce json
// @Param session_id path int true "Session ID"
// @Success 200 {object} service.Result
// @Failure 404 {object} dto.ErrorResponse
// @Router /sessions/{session_id}/complete [post]
func (c *SessionController) CompleteSession(ctx *gin.Context) {
	sessionID, ok := pathID(ctx, "session_id")
	if !ok {
		return
	}

	result, err := c.sessionService.Complete(sessionID, model.TriggerCandidate)
	if err != nil {
		mapDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetResult godoc
// @Summary (Candidate) Get the result of a completed session
// @Tags Candidate - Sessions
// @Produce json
// @Param session_id path int true "Session ID"
// @Success 200 {object} service.Result
// @Success 202 {object} map[string]string "Session still in progress"
// @Failure 404 {object} dto.ErrorResponse
// @Router /sessions/{session_id}/result [get]
func (c *SessionController) GetResult(ctx *gin.Context) {
	sessionID, ok := pathID(ctx, "session_id")
	if !ok {
		return
	}

	result, err := c.sessionService.Result(sessionID)
	if err != nil {
		mapDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// ListMySessions godoc
// @Summary (Candidate) List own sessions
// @Tags Candidate - Sessions
// @Produce json
// @Success 200 {array} dto.SessionResponseDTO
// @Failure 500 {object} dto.ErrorResponse
// @Router /my/sessions [get]
func (c *SessionController) ListMySessions(ctx *gin.Context) {
	candidateID, ok := principalID(ctx)
	if !ok {
		return
	}
	sessions, err := c.sessionService.SessionsForCandidate(candidateID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to retrieve sessions"})
		return
	}
	resp := make([]dto.SessionResponseDTO, 0, len(sessions))
	for i := range sessions {
		var item dto.SessionResponseDTO
		copier.Copy(&item, &sessions[i])
		resp = append(resp, item)
	}
	ctx.JSON(http.StatusOK, resp)
}

// IngestSignal godoc
// @Summary (Candidate) Ingest one integrity signal
// @Description Fire-and-forget. Duplicate deliveries with the same dedupe key collapse into one ledger entry.
// @Tags Candidate - Sessions
// @Accept json
// @Param session_id path int true "Session ID"
// @Param signal body dto.SignalDTO true "Typed signal"
// @Success 202
// @Failure 400 {object} dto.ErrorResponse
// @Router /sessions/{session_id}/signals [post]
func (c *SessionController) IngestSignal(ctx *gin.Context) {
	sessionID, ok := pathID(ctx, "session_id")
	if !ok {
		return
	}

	var req dto.SignalDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	dedupeKey := req.DedupeKey
	if dedupeKey == "" {
		dedupeKey = uuid.NewString()
	}

	log.Debug().Uint("sessionID", sessionID).Str("type", req.Type).Msg("Integrity signal received")
	c.sessionService.Signal(sessionID, model.ViolationType(req.Type), req.OccurredAt, dedupeKey, req.Metadata)
	ctx.Status(http.StatusAccepted)
}
