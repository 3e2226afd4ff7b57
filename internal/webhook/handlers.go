package webhook

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/voxaide/switchboard/internal/call"
	"github.com/voxaide/switchboard/internal/conference"
	"github.com/voxaide/switchboard/internal/healthchecker"
	"github.com/voxaide/switchboard/internal/insights"
	"github.com/voxaide/switchboard/internal/logging"
	"github.com/voxaide/switchboard/internal/prometheus"
	"github.com/voxaide/switchboard/internal/provider"
	"go.uber.org/zap"
)

type Handler struct {
	Calls       *call.Service
	Conferences *conference.Service
	Insights    *insights.Service
}

func NewHandler(
	calls *call.Service,
	conferences *conference.Service,
	insightsService *insights.Service,
) *Handler {
	return &Handler{
		Calls:       calls,
		Conferences: conferences,
		Insights:    insightsService,
	}
}

func (handler *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/readyz", func(c *gin.Context) {
		if err := healthchecker.CheckAll(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	webhooks := router.Group("/webhooks")
	webhooks.POST("/twilio", handler.handleTwilioWebhook)
	webhooks.POST("/vapi", handler.handleVapiWebhook)

	api := router.Group("/api/v1")
	api.POST("/calls", handler.makeCall)
	api.GET("/calls/:id", handler.getCall)
	api.PATCH("/calls/:id/status", handler.updateCallStatus)
	api.GET("/calls/:id/analytics", handler.getCallAnalytics)
	api.POST("/calls/:id/insights", handler.analyzeCall)
	api.POST("/insights/trends", handler.analyzeTrends)
	api.POST("/schedules", handler.scheduleCall)
	api.DELETE("/schedules/:id", handler.cancelSchedule)
	api.POST("/conferences", handler.createConference)
	api.GET("/conferences/:id", handler.getConference)
	api.POST("/conferences/:id/participants", handler.addParticipants)
	api.DELETE("/conferences/:id/participants/:participantID", handler.removeParticipant)
	api.POST("/conferences/:id/participants/:participantID/mute", handler.muteParticipant)
	api.POST("/conferences/:id/participants/:participantID/admit", handler.admitParticipant)
	api.POST("/conferences/:id/end", handler.endConference)
}

func (handler *Handler) handleTwilioWebhook(c *gin.Context) {
	event, err := NormalizeTwilioEvent(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	handler.dispatchEvent(c, event)
}

func (handler *Handler) handleVapiWebhook(c *gin.Context) {
	event, err := NormalizeVapiEvent(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	handler.dispatchEvent(c, event)
}

// dispatchEvent routes one normalized event into the orchestrator. Incoming
// calls answer with the provider's voice response body; everything else
// acknowledges with an empty 200 so the vendor stops redelivering.
func (handler *Handler) dispatchEvent(c *gin.Context, event Event) {
	prometheus.WebhookEventsTotal.WithLabelValues(string(event.Vendor), string(event.Kind)).Inc()

	ctx := c.Request.Context()

	switch event.Kind {
	case KindIncoming:
		response, err := handler.Calls.HandleIncomingCall(ctx, event.Vendor, event.CallID, event.From)
		if err != nil {
			handler.fail(c, event, err)
			return
		}

		c.Data(http.StatusOK, response.ContentType, []byte(response.Body))
	case KindStatus:
		err := handler.Calls.HandleStatusEvent(ctx, event.Vendor, event.CallID, event.Status, event.DurationSeconds)
		if err != nil {
			handler.fail(c, event, err)
			return
		}

		c.Status(http.StatusOK)
	case KindRecording:
		if err := handler.Calls.HandleRecording(ctx, event.Vendor, event.CallID, event.RecordingURL); err != nil {
			handler.fail(c, event, err)
			return
		}

		c.Status(http.StatusOK)
	case KindTranscription:
		if err := handler.Calls.HandleTranscription(ctx, event.Vendor, event.CallID, event.Transcript); err != nil {
			handler.fail(c, event, err)
			return
		}

		c.Status(http.StatusOK)
	case KindAnalytics:
		if _, err := handler.Calls.GetCallAnalytics(ctx, event.CallID); err != nil {
			handler.fail(c, event, err)
			return
		}

		c.Status(http.StatusOK)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrUnknownEvent.Error()})
	}
}

func (handler *Handler) fail(c *gin.Context, event Event, err error) {
	logging.Logger.Error("[dispatchEvent] Webhook event failed",
		zap.String("vendor", string(event.Vendor)),
		zap.String("kind", string(event.Kind)),
		zap.String("call_id", event.CallID),
		zap.String("error", err.Error()),
	)

	c.JSON(statusFromError(err), gin.H{"error": err.Error()})
}

type makeCallRequest struct {
	UserID               string `json:"user_id"`
	To                   string `json:"to"      binding:"required"`
	From                 string `json:"from"`
	Provider             string `json:"provider"`
	Message              string `json:"message"`
	RecordingEnabled     bool   `json:"recording_enabled"`
	TranscriptionEnabled bool   `json:"transcription_enabled"`
}

func (handler *Handler) makeCall(c *gin.Context) {
	var request makeCallRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	placed, err := handler.Calls.MakeCall(c.Request.Context(), call.MakeCallRequest{
		UserID:               request.UserID,
		To:                   request.To,
		From:                 request.From,
		Provider:             provider.Vendor(request.Provider),
		Message:              request.Message,
		RecordingEnabled:     request.RecordingEnabled,
		TranscriptionEnabled: request.TranscriptionEnabled,
	})
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, placed)
}

func (handler *Handler) getCall(c *gin.Context) {
	found, err := handler.Calls.GetCall(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, found)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (handler *Handler) updateCallStatus(c *gin.Context) {
	var request updateStatusRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := handler.Calls.UpdateCallStatus(c.Request.Context(), c.Param("id"), provider.Status(request.Status))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusOK)
}

func (handler *Handler) getCallAnalytics(c *gin.Context) {
	analytics, err := handler.Calls.GetCallAnalytics(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "application/json", analytics)
}

func (handler *Handler) analyzeCall(c *gin.Context) {
	analysis, err := handler.Insights.AnalyzeCall(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, analysis)
}

type analyzeTrendsRequest struct {
	CallIDs []string `json:"call_ids" binding:"required"`
}

func (handler *Handler) analyzeTrends(c *gin.Context) {
	var request analyzeTrendsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	analysis, err := handler.Insights.AnalyzeTrends(c.Request.Context(), request.CallIDs)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, analysis)
}

type scheduleCallRequest struct {
	UserID               string               `json:"user_id"`
	To                   string               `json:"to"           binding:"required"`
	From                 string               `json:"from"`
	Provider             string               `json:"provider"`
	Message              string               `json:"message"`
	RecordingEnabled     bool                 `json:"recording_enabled"`
	TranscriptionEnabled bool                 `json:"transcription_enabled"`
	ScheduledAt          string               `json:"scheduled_at" binding:"required"`
	Timezone             string               `json:"timezone"     binding:"required"`
	Recurrence           *call.RecurrenceRule `json:"recurrence"`
	Reminder             *call.ReminderRule   `json:"reminder"`
}

func (handler *Handler) scheduleCall(c *gin.Context) {
	var request scheduleCallRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scheduled, err := handler.Calls.ScheduleCall(c.Request.Context(), call.ScheduleCallRequest{
		UserID:               request.UserID,
		To:                   request.To,
		From:                 request.From,
		Provider:             provider.Vendor(request.Provider),
		Message:              request.Message,
		RecordingEnabled:     request.RecordingEnabled,
		TranscriptionEnabled: request.TranscriptionEnabled,
		ScheduledAt:          request.ScheduledAt,
		Timezone:             request.Timezone,
		Recurrence:           request.Recurrence,
		Reminder:             request.Reminder,
	})
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, scheduled)
}

func (handler *Handler) cancelSchedule(c *gin.Context) {
	if err := handler.Calls.CancelScheduledCall(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusOK)
}

type createConferenceRequest struct {
	Provider             string   `json:"provider" binding:"required"`
	Name                 string   `json:"name"`
	PhoneNumbers         []string `json:"phone_numbers"`
	RecordingEnabled     bool     `json:"recording_enabled"`
	TranscriptionEnabled bool     `json:"transcription_enabled"`
	MaxParticipants      int      `json:"max_participants"`
	WaitingRoom          bool     `json:"waiting_room"`
	MuteOnEntry          bool     `json:"mute_on_entry"`
}

func (handler *Handler) createConference(c *gin.Context) {
	var request createConferenceRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, roster, err := handler.Conferences.CreateConference(
		c.Request.Context(),
		provider.Vendor(request.Provider),
		provider.ConferenceOptions{
			Name:                 request.Name,
			RecordingEnabled:     request.RecordingEnabled,
			TranscriptionEnabled: request.TranscriptionEnabled,
			MaxParticipants:      request.MaxParticipants,
			WaitingRoom:          request.WaitingRoom,
			MuteOnEntry:          request.MuteOnEntry,
		},
		request.PhoneNumbers,
	)
	if err != nil {
		if created == nil {
			c.JSON(statusFromError(err), gin.H{"error": err.Error()})
			return
		}

		// The conference and roster exist even though some invitations
		// failed; hand both back so the caller can reconcile.
		c.JSON(statusFromError(err), gin.H{
			"error":        err.Error(),
			"conference":   created,
			"participants": roster,
		})

		return
	}

	c.JSON(http.StatusCreated, gin.H{"conference": created, "participants": roster})
}

func (handler *Handler) getConference(c *gin.Context) {
	found, participants, err := handler.Conferences.GetConference(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conference": found, "participants": participants})
}

type addParticipantsRequest struct {
	PhoneNumbers []string `json:"phone_numbers" binding:"required"`
}

func (handler *Handler) addParticipants(c *gin.Context) {
	var request addParticipantsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	joined, err := handler.Conferences.AddParticipants(c.Request.Context(), c.Param("id"), request.PhoneNumbers)
	if err != nil {
		// Fan-out is sequential and stops on first failure; report who made
		// it in so the caller can reconcile.
		c.JSON(statusFromError(err), gin.H{"error": err.Error(), "joined": joined})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"joined": joined})
}

func (handler *Handler) removeParticipant(c *gin.Context) {
	err := handler.Conferences.RemoveParticipant(c.Request.Context(), c.Param("id"), c.Param("participantID"))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusOK)
}

type muteParticipantRequest struct {
	Muted *bool `json:"muted" binding:"required"`
}

func (handler *Handler) muteParticipant(c *gin.Context) {
	var request muteParticipantRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := handler.Conferences.MuteParticipant(
		c.Request.Context(),
		c.Param("id"),
		c.Param("participantID"),
		*request.Muted,
	)
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusOK)
}

func (handler *Handler) admitParticipant(c *gin.Context) {
	err := handler.Conferences.AdmitParticipant(c.Request.Context(), c.Param("id"), c.Param("participantID"))
	if err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusOK)
}

func (handler *Handler) endConference(c *gin.Context) {
	if err := handler.Conferences.EndConference(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(statusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusOK)
}

// statusFromError maps the service error taxonomy to HTTP statuses:
// unsupported capabilities 501, unknown records 404, bad input 400, provider
// rejections bubble their upstream status as 502 unless they carried one.
func statusFromError(err error) int {
	var providerErr *provider.ProviderError

	switch {
	case errors.Is(err, provider.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, call.ErrCallNotFound),
		errors.Is(err, call.ErrScheduledCallNotFound),
		errors.Is(err, conference.ErrConferenceNotFound),
		errors.Is(err, conference.ErrParticipantNotFound):
		return http.StatusNotFound
	case errors.Is(err, provider.ErrMissingDestination),
		errors.Is(err, provider.ErrMissingCallID),
		errors.Is(err, call.ErrUnknownVendor),
		errors.Is(err, call.ErrInvalidTimezone),
		errors.Is(err, call.ErrInvalidScheduleTime),
		errors.Is(err, call.ErrPastScheduleTime),
		errors.Is(err, call.ErrScheduleNotCancelable),
		errors.Is(err, conference.ErrUnknownVendor),
		errors.Is(err, conference.ErrNoParticipants),
		errors.Is(err, conference.ErrTooManyParticipants),
		errors.Is(err, conference.ErrConferenceEnded),
		errors.Is(err, insights.ErrNoTranscript),
		errors.Is(err, insights.ErrNoAnalytics):
		return http.StatusBadRequest
	case errors.As(err, &providerErr):
		if providerErr.StatusCode >= http.StatusBadRequest &&
			providerErr.StatusCode < http.StatusInternalServerError {
			return http.StatusBadRequest
		}

		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
