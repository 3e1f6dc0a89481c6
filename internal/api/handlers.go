package api

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"londonsqft/server/internal/database"
	"londonsqft/server/internal/models"
)

// StatisticsReader is the read side of the staging database
type StatisticsReader interface {
	GetDistrictStatistics() ([]models.DistrictStatistic, error)
	GetDistrictStatistic(district string) (*models.DistrictStatistic, error)
	GetStageStatuses() ([]models.StageStatus, error)
}

type Handler struct {
	reader StatisticsReader
	logger *logrus.Logger
}

func NewHandler(reader StatisticsReader, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		reader: reader,
		logger: logger,
	}
}

func (h *Handler) GetDistricts(c *gin.Context) {
	stats, err := h.reader.GetDistrictStatistics()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get district statistics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get district statistics"})
		return
	}
	if stats == nil {
		stats = []models.DistrictStatistic{}
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetDistrict(c *gin.Context) {
	district := strings.ToUpper(strings.TrimSpace(c.Param("district")))

	stat, err := h.reader.GetDistrictStatistic(district)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No statistics for district " + district})
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("district", district).Error("Failed to get district statistic")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get district statistic"})
		return
	}

	c.JSON(http.StatusOK, stat)
}

// GetStages reports the progress of every pipeline stage
func (h *Handler) GetStages(c *gin.Context) {
	statuses, err := h.reader.GetStageStatuses()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get stage statuses")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stage statuses"})
		return
	}

	c.JSON(http.StatusOK, statuses)
}
