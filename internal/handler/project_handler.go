package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"skillswap/internal/model"
)

type Projects interface {
	SubmitLink(ctx context.Context, projectID, userID int64, link string) (*model.Project, error)
	MyProjects(ctx context.Context, userID int64) ([]model.Project, error)
	MyProject(ctx context.Context, projectID, userID int64) (*model.Project, error)
}

type ProjectHandler struct {
	projects Projects
	logger   *zap.Logger
}

func NewProjectHandler(projects Projects, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

// SubmitLink handles POST /projects/:projectId/link
func (h *ProjectHandler) SubmitLink(c *gin.Context) {
	id, valid := pathID(c, "projectId")
	if !valid {
		return
	}
	var req struct {
		Link string `json:"link" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "link is required")
		return
	}
	p, err := h.projects.SubmitLink(c.Request.Context(), id, currentUser(c), req.Link)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Project link submitted successfully", p)
}

// MyProjects handles GET /projects
func (h *ProjectHandler) MyProjects(c *gin.Context) {
	list, err := h.projects.MyProjects(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Projects fetched successfully", list)
}

// MyProject handles GET /projects/:projectId
func (h *ProjectHandler) MyProject(c *gin.Context) {
	id, valid := pathID(c, "projectId")
	if !valid {
		return
	}
	p, err := h.projects.MyProject(c.Request.Context(), id, currentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Project fetched successfully", p)
}
