package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/chatprobe/models"
	"github.com/use-agent/chatprobe/store"
)

// ListExperiments returns a handler for GET /api/v1/experiments.
// Query param: limit (default 20).
func ListExperiments(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if st == nil {
			storeUnavailable(c)
			return
		}

		limit := 20
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}

		experiments, err := st.ListExperiments(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorEnvelope{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "experiments": experiments})
	}
}

// GetExperiment returns a handler for GET /api/v1/experiments/:id, including
// the experiment's runs.
func GetExperiment(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if st == nil {
			storeUnavailable(c)
			return
		}

		id := c.Param("id")
		exp, err := st.GetExperiment(id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorEnvelope{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()},
			})
			return
		}
		if exp == nil {
			c.JSON(http.StatusNotFound, models.ErrorEnvelope{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: "experiment not found"},
			})
			return
		}

		runs, err := st.ListRuns(id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorEnvelope{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "experiment": exp, "runs": runs})
	}
}

func storeUnavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, models.ErrorEnvelope{
		Success: false,
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeInternal,
			Message: "experiment store is not configured",
		},
	})
}
