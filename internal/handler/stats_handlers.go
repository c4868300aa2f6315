package handler

import (
	"net/http"

	"github.com/mtlprog/teamtask/internal/handler/dto"
	"github.com/mtlprog/teamtask/internal/middleware"
)

// handleGetStats returns task counts for the caller's visible scope.
// @Summary Get statistics
// @Description Counts visible tasks by status and how many are overdue
// @Tags stats
// @Produce json
// @Success 200 {object} dto.StatsResponse
// @Security BearerAuth
// @Router /stats [get]
func (h *Handler) handleGetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := middleware.GetIdentityFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required")
		return
	}

	summary, err := h.taskService.Summary(ctx, identity)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToStatsResponse(summary.Total, summary.ByStatus, summary.Overdue))
}
