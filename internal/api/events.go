package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bynour1/projet-planni/internal/api/middleware"
	"github.com/bynour1/projet-planni/internal/model"
	"github.com/bynour1/projet-planni/internal/store"
)

type attendeeRequest struct {
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	CanEdit bool   `json:"canEdit"`
}

type createEventRequest struct {
	Title       string            `json:"title" binding:"required"`
	Description string            `json:"description"`
	StartAt     string            `json:"startAt" binding:"required"`
	EndAt       string            `json:"endAt" binding:"required"`
	Timezone    string            `json:"timezone"`
	Location    string            `json:"location"`
	Recurrence  string            `json:"recurrence"`
	Attendees   []attendeeRequest `json:"attendees"`
}

type rsvpRequest struct {
	Status string `json:"status" binding:"required"`
}

type grantEditRequest struct {
	Contact string `json:"contact" binding:"required"`
	CanEdit *bool  `json:"canEdit" binding:"required"`
}

// handleCreateEvent 创建日历事件并邀请参与者，成功后广播 events:created。
func (s *Server) handleCreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Données manquantes"})
		return
	}
	if req.EndAt < req.StartAt {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Période invalide"})
		return
	}

	organizer := middleware.Contact(c)
	event := &model.Event{
		CalendarID:     c.Param("id"),
		OrganizerEmail: organizer,
		Title:          req.Title,
		Description:    req.Description,
		StartAt:        req.StartAt,
		EndAt:          req.EndAt,
		Timezone:       req.Timezone,
		Location:       req.Location,
		Recurrence:     req.Recurrence,
	}

	ctx := c.Request.Context()
	id, err := s.events.Create(ctx, event)
	if err != nil {
		s.logger.Error("create event failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}

	for _, a := range req.Attendees {
		raw := a.Email
		if raw == "" {
			raw = a.Phone
		}
		contact, err := model.ParseContact(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Contact invalide", "eventId": id})
			return
		}
		attendee := &model.Attendee{EventID: id, CanEdit: a.CanEdit, InvitedBy: organizer}
		v := contact.Value
		if contact.IsEmail() {
			attendee.Email = &v
		} else {
			attendee.Phone = &v
		}
		if err := s.events.AddAttendee(ctx, attendee); err != nil {
			s.logger.Error("add attendee failed", slog.Uint64("event_id", uint64(id)), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
			return
		}
	}

	s.hub.Publish("events:created", event)
	c.JSON(http.StatusOK, gin.H{"success": true, "eventId": id, "event": event})
}

// handleListEvents 列出日历下的事件，支持 start / end 过滤。
func (s *Server) handleListEvents(c *gin.Context) {
	events, err := s.events.ListForCalendar(c.Request.Context(), c.Param("id"), c.Query("start"), c.Query("end"))
	if err != nil {
		s.logger.Error("list events failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "events": events})
}

// handleRSVP 当前用户回复事件邀请，广播 events:updated。
func (s *Server) handleRSVP(c *gin.Context) {
	eventID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Identifiant invalide"})
		return
	}
	var req rsvpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Données manquantes"})
		return
	}
	if req.Status != model.AttendeeAccepted && req.Status != model.AttendeeDeclined {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Statut invalide"})
		return
	}

	contact, err := model.ParseContact(middleware.Contact(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Contact invalide"})
		return
	}

	if err := s.events.SetRSVP(c.Request.Context(), uint(eventID), contact, req.Status); err != nil {
		if errors.Is(err, store.ErrAttendeeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Participant introuvable"})
			return
		}
		s.logger.Error("rsvp failed", slog.Uint64("event_id", eventID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}

	s.hub.Publish("events:updated", gin.H{"eventId": eventID, "contact": contact.Value, "status": req.Status})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Réponse enregistrée"})
}

// handleGrantEdit 授予或收回参与者的编辑权限。
func (s *Server) handleGrantEdit(c *gin.Context) {
	eventID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Identifiant invalide"})
		return
	}
	var req grantEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Données manquantes"})
		return
	}
	contact, err := model.ParseContact(req.Contact)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Contact invalide"})
		return
	}

	if err := s.events.SetPermission(c.Request.Context(), uint(eventID), contact, *req.CanEdit); err != nil {
		if errors.Is(err, store.ErrAttendeeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Participant introuvable"})
			return
		}
		s.logger.Error("grant edit failed", slog.Uint64("event_id", eventID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}

	s.hub.Publish("events:updated", gin.H{"eventId": eventID, "contact": contact.Value, "canEdit": *req.CanEdit})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Permission mise à jour"})
}
