package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/DagneMan123/simuAI-sub001/internal/apperr"
	"github.com/DagneMan123/simuAI-sub001/internal/dto"
	"github.com/DagneMan123/simuAI-sub001/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
)

type SimulationController struct {
	simulationService service.SimulationService
	ledgerService     service.LedgerService
	sessionService    service.SessionService
}

func NewSimulationController(simulationService service.SimulationService, ledgerService service.LedgerService, sessionService service.SessionService) *SimulationController {
	return &SimulationController{
		simulationService: simulationService,
		ledgerService:     ledgerService,
		sessionService:    sessionService,
	}
}

func ownerID(ctx *gin.Context) (uint, bool) {
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

// CreateSimulation godoc
// @Summary (Admin) Create a simulation with its steps
// @Tags Admin - Simulations
// @Accept json
// @Produce json
// @Param simulation body dto.SimulationCreateDTO true "Simulation with ordered steps"
// @Success 201 {object} dto.SimulationResponseDTO
// @Failure 400 {object} dto.ErrorResponse
// @Router /admin/simulations [post]
func (c *SimulationController) CreateSimulation(ctx *gin.Context) {
	owner, ok := ownerID(ctx)
	if !ok {
		return
	}
	var req dto.SimulationCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to bind SimulationCreateDTO")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	resp, err := c.simulationService.Create(owner, req)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// GenerateSimulation godoc
// @Summary (Admin) Draft a simulation from a job description
// @Description Steps are drafted by the generation capability and persisted unpublished.
// @Tags Admin - Simulations
// @Accept json
// @Produce json
// @Param request body dto.SimulationGenerateDTO true "Job description and requirements"
// @Success 201 {object} dto.SimulationResponseDTO
// @Failure 503 {object} dto.ErrorResponse "Generation capability unavailable"
// @Router /admin/simulations/generate [post]
func (c *SimulationController) GenerateSimulation(ctx *gin.Context) {
	owner, ok := ownerID(ctx)
	if !ok {
		return
	}
	var req dto.SimulationGenerateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	resp, err := c.simulationService.Generate(ctx.Request.Context(), owner, req)
	if err != nil {
		if errors.Is(err, apperr.ErrEvaluationDeferred) {
			ctx.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Generation capability unavailable, try again later"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// PublishSimulation godoc
// @Summary (Admin) Publish a simulation
// @Tags Admin - Simulations
// @Produce json
// @Param simulation_id path int true "Simulation ID"
// @Success 204
// @Failure 403 {object} dto.ErrorResponse "Not the owning author"
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/simulations/{simulation_id}/publish [post]
func (c *SimulationController) PublishSimulation(ctx *gin.Context) {
	owner, ok := ownerID(ctx)
	if !ok {
		return
	}
	simulationID, ok := pathID(ctx, "simulation_id")
	if !ok {
		return
	}

	if err := c.simulationService.Publish(owner, simulationID); err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
		case errors.Is(err, apperr.ErrAccessDenied):
			ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Error: err.Error()})
		default:
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		}
		return
	}
	ctx.Status(http.StatusNoContent)
}

// CreateInvitation godoc
// @Summary (Admin) Invite a candidate to a simulation
// @Tags Admin - Simulations
// @Accept json
// @Produce json
// @Param simulation_id path int true "Simulation ID"
// @Param invitation body dto.InvitationCreateDTO true "Candidate id or email plus TTL"
// @Success 201 {object} dto.InvitationResponseDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/simulations/{simulation_id}/invitations [post]
func (c *SimulationController) CreateInvitation(ctx *gin.Context) {
	simulationID, ok := pathID(ctx, "simulation_id")
	if !ok {
		return
	}
	var req dto.InvitationCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	resp, err := c.simulationService.Invite(simulationID, req)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
			return
		}
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// ListSessions godoc
// @Summary (Admin) List sessions for a simulation
// @Tags Admin - Simulations
// @Produce json
// @Param simulation_id path int true "Simulation ID"
// @Success 200 {array} dto.SessionResponseDTO
// @Failure 500 {object} dto.ErrorResponse
// @Router /admin/simulations/{simulation_id}/sessions [get]
func (c *SimulationController) ListSessions(ctx *gin.Context) {
	simulationID, ok := pathID(ctx, "simulation_id")
	if !ok {
		return
	}
	sessions, err := c.simulationService.SessionsForSimulation(simulationID)
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

// ListViolations godoc
// @Summary (Admin) List a session's violation events
// @Tags Admin - Integrity
// @Produce json
// @Param session_id path int true "Session ID"
// @Success 200 {array} dto.ViolationEventDTO
// @Failure 500 {object} dto.ErrorResponse
// @Router /admin/sessions/{session_id}/violations [get]
func (c *SimulationController) ListViolations(ctx *gin.Context) {
	sessionID, ok := pathID(ctx, "session_id")
	if !ok {
		return
	}
	events, err := c.ledgerService.EventsForSession(sessionID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to retrieve violation events"})
		return
	}
	resp := make([]dto.ViolationEventDTO, 0, len(events))
	for i := range events {
		var item dto.ViolationEventDTO
		copier.Copy(&item, &events[i])
		resp = append(resp, item)
	}
	ctx.JSON(http.StatusOK, resp)
}

// ResolveViolation godoc
// @Summary (Admin) Acknowledge one violation event
// @Description Marks the event resolved and recomputes the session's integrity score; the ledger row itself is immutable and the session stays closed.
// @Tags Admin - Integrity
// @Produce json
// @Param violation_id path int true "Violation event ID"
// @Success 200 {object} dto.ViolationEventDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/violations/{violation_id}/resolve [post]
func (c *SimulationController) ResolveViolation(ctx *gin.Context) {
	violationID, ok := pathID(ctx, "violation_id")
	if !ok {
		return
	}
	event, err := c.sessionService.ResolveViolation(violationID)
	if err != nil {
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
		return
	}
	var resp dto.ViolationEventDTO
	copier.Copy(&resp, event)
	ctx.JSON(http.StatusOK, resp)
}
