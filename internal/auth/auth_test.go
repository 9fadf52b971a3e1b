package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", Middleware(testSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"operator_id": OperatorID(c),
			"stand_id":    StandID(c),
		})
	})
	return r
}

func TestMiddlewareResolvesClaims(t *testing.T) {
	router := setupRouter()
	token := signToken(t, testSecret, jwt.MapClaims{
		"operator_id": 7,
		"stand_id":    3,
		"exp":         time.Now().Add(time.Hour).Unix(),
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"operator_id":7,"stand_id":3}`, w.Body.String())
}

func TestMiddlewareRejects(t *testing.T) {
	router := setupRouter()

	testCases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abcdef"},
		{"garbage token", "Bearer not-a-jwt"},
		{
			"wrong secret",
			"Bearer " + signToken(t, "other-secret", jwt.MapClaims{"operator_id": 7, "stand_id": 3}),
		},
		{
			"missing stand claim",
			"Bearer " + signToken(t, testSecret, jwt.MapClaims{"operator_id": 7}),
		},
		{
			"expired",
			"Bearer " + signToken(t, testSecret, jwt.MapClaims{
				"operator_id": 7, "stand_id": 3, "exp": time.Now().Add(-time.Hour).Unix(),
			}),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}
