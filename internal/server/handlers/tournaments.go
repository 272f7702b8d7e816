package handlers

import (
	"errors"
	"net/http"

	"arena-platform/backend/internal/bracket"
	"arena-platform/backend/internal/coordinator"
	"arena-platform/backend/internal/locks"
	"arena-platform/backend/internal/models"
	"arena-platform/backend/internal/store"
	"arena-platform/backend/internal/validation"

	"github.com/gin-gonic/gin"
)

// HandleCreateTournament creates a new open tournament
func HandleCreateTournament(c *gin.Context, coord *coordinator.Coordinator) {
	var req models.CreateTournamentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := validation.ValidateTournamentName(req.Name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidateTournamentFormat(req.Format); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("user_id")
	tournament, err := coord.CreateTournament(c.Request.Context(), req, &userID)
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tournament)
}

// HandleListTournaments returns tournaments, with an optional status filter
func HandleListTournaments(c *gin.Context, coord *coordinator.Coordinator) {
	status := c.Query("status")
	if status != "" {
		allowed := []string{"open", "seeded", "in_progress", "completed", "cancelled"}
		if err := validation.ValidateEnum(status, allowed, "status"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	records, err := coord.ListTournaments(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, records)
}

// HandleGetTournament returns one tournament row
func HandleGetTournament(c *gin.Context, coord *coordinator.Coordinator) {
	record, err := coord.GetTournament(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// HandleGetBracket returns the full bracket snapshot. Clients call this
// to resynchronize after a queue_overflow marker.
func HandleGetBracket(c *gin.Context, coord *coordinator.Coordinator) {
	tournament, err := coord.GetBracketSnapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}
	c.JSON(http.StatusOK, tournament)
}

// HandleGetStandings returns the group stage ranking table
func HandleGetStandings(c *gin.Context, coord *coordinator.Coordinator) {
	standings, err := coord.Standings(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}
	c.JSON(http.StatusOK, standings)
}

// HandleRegisterParticipant registers the calling user for a tournament
func HandleRegisterParticipant(c *gin.Context, coord *coordinator.Coordinator) {
	userID := c.GetString("user_id")
	if err := coord.RegisterParticipant(c.Request.Context(), c.Param("id"), userID); err != nil {
		respondCoordinatorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Registered"})
}

// HandleUnregisterParticipant withdraws the calling user before seeding
func HandleUnregisterParticipant(c *gin.Context, coord *coordinator.Coordinator) {
	userID := c.GetString("user_id")
	if err := coord.UnregisterParticipant(c.Request.Context(), c.Param("id"), userID); err != nil {
		respondCoordinatorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Unregistered"})
}

// HandleSeedTournament builds the bracket
func HandleSeedTournament(c *gin.Context, coord *coordinator.Coordinator) {
	if err := coord.SeedTournament(c.Request.Context(), c.Param("id")); err != nil {
		respondCoordinatorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tournament seeded"})
}

// HandleStartMatch moves a ready match into play.
func HandleStartMatch(c *gin.Context, coord *coordinator.Coordinator) {
	err := coord.StartMatch(c.Request.Context(), c.Param("id"), c.Param("matchId"))
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Match started"})
}

// HandleReportResult submits a match result
func HandleReportResult(c *gin.Context, coord *coordinator.Coordinator) {
	var req models.ReportResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := validation.ValidateScore(req.Score); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := coord.ReportMatchResult(c.Request.Context(), c.Param("id"), c.Param("matchId"), req.WinnerID, req.Score)
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Result recorded"})
}

// HandleConfirmResult finalizes a reported result
func HandleConfirmResult(c *gin.Context, coord *coordinator.Coordinator) {
	err := coord.ConfirmMatchResult(c.Request.Context(), c.Param("id"), c.Param("matchId"))
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Result confirmed"})
}

// HandleDisputeResult opens a dispute on a reported result
func HandleDisputeResult(c *gin.Context, coord *coordinator.Coordinator) {
	var req models.DisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if _, err := validation.ValidateSafeString(req.Reason, 1, 500, "reason"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := coord.DisputeMatchResult(c.Request.Context(), c.Param("id"), c.Param("matchId"), req.Reason)
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Dispute opened"})
}

// HandleResolveDispute settles a disputed result
func HandleResolveDispute(c *gin.Context, coord *coordinator.Coordinator) {
	var req models.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	err := coord.ResolveMatchDispute(c.Request.Context(), c.Param("id"), c.Param("matchId"), req.WinnerID, req.Score)
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Dispute resolved"})
}

// respondCoordinatorError maps domain errors to HTTP statuses. Engine
// rejections are client errors; a lock timeout tells the caller to
// retry with backoff.
func respondCoordinatorError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrTournamentNotFound), errors.Is(err, bracket.ErrMatchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, bracket.ErrMatchAlreadyFinal),
		errors.Is(err, bracket.ErrAlreadyRegistered),
		errors.Is(err, bracket.ErrParticipantsFrozen),
		errors.Is(err, bracket.ErrInvalidSeedState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, locks.ErrLockTimeout):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Tournament busy, retry shortly"})
	case errors.Is(err, bracket.ErrMatchNotReady),
		errors.Is(err, bracket.ErrInvalidWinner),
		errors.Is(err, bracket.ErrMatchNotReported),
		errors.Is(err, bracket.ErrMatchNotDisputed),
		errors.Is(err, bracket.ErrTooFewParticipants),
		errors.Is(err, bracket.ErrNotRegistered),
		errors.Is(err, bracket.ErrTournamentNotStarted),
		errors.Is(err, bracket.ErrTournamentCompleted),
		errors.Is(err, bracket.ErrTournamentCancelled),
		errors.Is(err, coordinator.ErrInvalidFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
	}
}
