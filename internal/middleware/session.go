package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuetprep/examd/internal/response"
	"github.com/cuetprep/examd/internal/service"
)

// CheckSingleDeviceLogin validates the JWT's JTI against the active login
// in Redis. A mismatch means the login was superseded or reset — the
// request is rejected so a second device cannot ride an old token into a
// live exam.
func CheckSingleDeviceLogin(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if err := authService.ValidateCandidateLogin(c.Request.Context(), claims.CandidateID, claims.ID); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Next()
	}
}
