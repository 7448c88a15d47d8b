package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bynour1/projet-planni/internal/model"
)

type planningEventRequest struct {
	Jour  string              `json:"jour" binding:"required"`
	Event model.PlanningEvent `json:"event"`
}

type planningIndexRequest struct {
	Jour  string              `json:"jour" binding:"required"`
	Index *int                `json:"index" binding:"required"`
	Event model.PlanningEvent `json:"event"`
}

type planningReplaceRequest struct {
	Planning model.Planning `json:"planning" binding:"required"`
}

// handleGetPlanning 返回完整排班表（日期 → 事件列表）。
func (s *Server) handleGetPlanning(c *gin.Context) {
	planning, err := s.plannings.Get(c.Request.Context())
	if err != nil {
		s.logger.Error("get planning failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "planning": planning})
}

// handleAddPlanningEvent 在指定日期追加一个排班事件并广播最新排班。
func (s *Server) handleAddPlanningEvent(c *gin.Context) {
	var req planningEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Données manquantes"})
		return
	}

	ctx := c.Request.Context()
	planning, err := s.plannings.Get(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}
	planning[req.Jour] = append(planning[req.Jour], req.Event)
	if err := s.plannings.Replace(ctx, planning); err != nil {
		s.logger.Error("save planning failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}

	s.hub.Publish("planning:update", planning)
	c.JSON(http.StatusOK, gin.H{"success": true, "planning": planning})
}

// handleUpdatePlanningEvent 按 (jour, index) 原位替换一个排班事件。
func (s *Server) handleUpdatePlanningEvent(c *gin.Context) {
	var req planningIndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Données manquantes"})
		return
	}

	ctx := c.Request.Context()
	planning, err := s.plannings.Get(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}
	events := planning[req.Jour]
	if *req.Index < 0 || *req.Index >= len(events) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Événement non trouvé"})
		return
	}
	events[*req.Index] = req.Event
	if err := s.plannings.Replace(ctx, planning); err != nil {
		s.logger.Error("save planning failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}

	s.hub.Publish("planning:update", planning)
	c.JSON(http.StatusOK, gin.H{"success": true, "planning": planning})
}

// handleDeletePlanningEvent 按 (jour, index) 删除一个排班事件，当天清空则整行消失。
func (s *Server) handleDeletePlanningEvent(c *gin.Context) {
	var req planningIndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Données manquantes"})
		return
	}

	ctx := c.Request.Context()
	planning, err := s.plannings.Get(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}
	events := planning[req.Jour]
	if *req.Index < 0 || *req.Index >= len(events) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Événement non trouvé"})
		return
	}
	events = append(events[:*req.Index], events[*req.Index+1:]...)
	if len(events) == 0 {
		delete(planning, req.Jour)
	} else {
		planning[req.Jour] = events
	}
	if err := s.plannings.Replace(ctx, planning); err != nil {
		s.logger.Error("save planning failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}

	s.hub.Publish("planning:update", planning)
	c.JSON(http.StatusOK, gin.H{"success": true, "planning": planning})
}

// handleReplacePlanning 整表替换排班（前端拖拽保存走这里）。
func (s *Server) handleReplacePlanning(c *gin.Context) {
	var req planningReplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Données manquantes"})
		return
	}

	if err := s.plannings.Replace(c.Request.Context(), req.Planning); err != nil {
		s.logger.Error("replace planning failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}

	s.hub.Publish("planning:update", req.Planning)
	c.JSON(http.StatusOK, gin.H{"success": true, "planning": req.Planning})
}
