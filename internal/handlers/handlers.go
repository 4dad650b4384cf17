package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rrekapalli/Hi-Doc-sub002/internal/models"
	"github.com/rrekapalli/Hi-Doc-sub002/internal/store"
)

// writeStoreError maps store failures onto API responses: validation
// failures become 400s, missing entities 404s, anything else the fallback
// 500 message.
func writeStoreError(c *gin.Context, err error, fallback string) {
	switch {
	case store.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case store.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// degenerateWarning is returned alongside otherwise-successful writes when
// an enabled, non-PRN dose time has no upcoming occurrence left (window in
// the past, or a day-of-week set that never matches).
const degenerateWarning = "schedule has no upcoming occurrence"

func hasDegenerate(enabled bool, times ...models.DoseTime) bool {
	if !enabled {
		return false
	}
	for _, dt := range times {
		if !dt.PRN && dt.NextTriggerTs == nil {
			return true
		}
	}
	return false
}
