// Recording HTTP handlers.
//
// This file exposes the reporting endpoints backed by provider recordings:
//   - GET /api/calls/get-recording  (filtered, paginated, enriched list)
//   - GET /api/calls/audio-stats    (rolling day counts)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-call-router/internal/services"
	"github.com/tbourn/go-call-router/internal/utils"
)

// RecordingsResponse is a page of enriched recordings.
type RecordingsResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"Filtered Recordings List"`
	services.RecordingPage
}

// AudioStatsResponse wraps the rolling recording counts.
type AudioStatsResponse struct {
	Success bool                `json:"success" example:"true"`
	Message string              `json:"message" example:"Stats List"`
	Data    services.AudioStats `json:"data"`
}

// GetRecordings godoc
// @ID          getRecordings
// @Summary     List recordings
// @Description Lists provider recordings joined with local call metadata. Unknown calls show "Unknown". nextPage is set whenever the page is full.
// @Tags        Recordings
// @Produce     json
// @Param       date        query  string  false  "Single day (YYYY-MM-DD)"           example(2024-06-15)
// @Param       dateAfter   query  string  false  "Created on or after (YYYY-MM-DD)"
// @Param       dateBefore  query  string  false  "Created before (YYYY-MM-DD)"
// @Param       page        query  int     false  "Zero-based page"  minimum(0) default(0)
// @Param       pageSize    query  int     false  "Items per page"   minimum(1) maximum(1000) default(10)
// @Success     200  {object}  handlers.RecordingsResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /calls/get-recording [get]
func (h *Handlers) GetRecordings(c *gin.Context) {
	q := services.RecordingQuery{
		Date:       strings.TrimSpace(c.Query("date")),
		DateAfter:  strings.TrimSpace(c.Query("dateAfter")),
		DateBefore: strings.TrimSpace(c.Query("dateBefore")),
		Page:       utils.AtoiDefault(c.Query("page"), 0),
		PageSize:   utils.AtoiDefault(c.Query("pageSize"), 10),
	}
	page, err := h.recordings.FilteredRecordings(c.Request.Context(), q)
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, RecordingsResponse{
		Success:       true,
		Message:       "Filtered Recordings List",
		RecordingPage: *page,
	})
}

// AudioStats godoc
// @ID          audioStats
// @Summary     Recording counts
// @Description Counts recordings received today, yesterday, and over the last 7 and 30 days.
// @Tags        Recordings
// @Produce     json
// @Success     200  {object}  handlers.AudioStatsResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /calls/audio-stats [get]
func (h *Handlers) AudioStats(c *gin.Context) {
	st, err := h.recordings.AudioStats(c.Request.Context())
	if err != nil {
		failFrom(c, err)
		return
	}
	ok(c, http.StatusOK, AudioStatsResponse{Success: true, Message: "Stats List", Data: st})
}
