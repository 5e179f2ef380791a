package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clumsystudios/rarity-tracker/internal/database"
	"github.com/clumsystudios/rarity-tracker/internal/models"
)

type ProjectHandler struct{}

func NewProjectHandler() *ProjectHandler {
	return &ProjectHandler{}
}

func (h *ProjectHandler) ListProjects(c *gin.Context) {
	db := database.GetDB()

	var projects []models.Project
	if err := db.Order("created_at ASC").Find(&projects).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := database.GetDB()

	// Creation is find-or-create by name: re-registering a studio returns
	// the existing project.
	var project models.Project
	if err := db.Where("name = ?", req.Name).First(&project).Error; err == nil {
		c.JSON(http.StatusOK, project)
		return
	}

	project = models.Project{Name: req.Name}
	if err := db.Create(&project).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *ProjectHandler) GetProject(c *gin.Context) {
	db := database.GetDB()

	var project models.Project
	if err := db.First(&project, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) ListProjectCollections(c *gin.Context) {
	db := database.GetDB()

	var collections []models.Collection
	if err := db.Where("project_id = ?", c.Param("id")).Order("created_at ASC").Find(&collections).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, collections)
}
