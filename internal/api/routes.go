package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func SetupRoutes(router *gin.Engine, reader StatisticsReader, logger *logrus.Logger) {
	handler := NewHandler(reader, logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/districts", handler.GetDistricts)
		api.GET("/districts/:district", handler.GetDistrict)
		api.GET("/stages", handler.GetStages)
	}
}
