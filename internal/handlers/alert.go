package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/driving-alerts/internal/logging"
	"github.com/PratikDhanave/driving-alerts/internal/store"
)

// RegisterAlertRoutes registers the alert lookup endpoint.
//
// GET /alerts/:alertId
func RegisterAlertRoutes(r gin.IRoutes, st store.AlertStore) {
	log := logging.WithComponent("http")

	r.GET("/alerts/:alertId", func(c *gin.Context) {
		alertID := c.Param("alertId")

		alert, err := st.FindAlertByID(c.Request.Context(), alertID)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		if err != nil {
			log.Error().Err(err).Str("alert_id", alertID).Msg("error retrieving alert")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}

		c.JSON(http.StatusOK, alert)
	})
}
