package utils

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		query          string
		page, limit    int
		expectedOffset int
	}{
		{"", 1, 10, 0},
		{"page=3&limit=20", 3, 20, 40},
		{"page=0&limit=-5", 1, 10, 0},
		{"page=x&limit=y", 1, 10, 0},
		{"page=2&limit=500", 2, 100, 100},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)

			p := NewPagination(c)
			assert.Equal(t, tc.page, p.Page)
			assert.Equal(t, tc.limit, p.Limit)
			assert.Equal(t, tc.expectedOffset, p.Offset)
		})
	}
}

func TestPaginationSetTotal(t *testing.T) {
	p := &Pagination{Page: 1, Limit: 10}
	p.SetTotal(21)
	assert.Equal(t, int64(21), p.Total)
	assert.Equal(t, 3, p.LastPage)

	p.SetTotal(0)
	assert.Equal(t, 0, p.LastPage)
}

func TestAppErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NotFoundError("Transaction not found", nil))

	assert.True(t, IsNotFoundError(wrapped))
	assert.False(t, IsConflictError(wrapped))
	assert.True(t, IsSignatureError(SignatureError(ErrInvalidSignature, nil)))
	assert.True(t, IsGatewayError(GatewayError("stripe is unreachable", errors.New("dial tcp"))))
	assert.True(t, IsConfigurationError(ConfigurationError(ErrGatewayUnavailable, nil)))
	assert.True(t, IsValidationError(ValidationFailedError(ErrInvalidVPA, nil)))
	assert.False(t, IsAppError(errors.New("plain")))

	appErr := GetAppError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	RespondError(c, ConflictError("Transaction is already COMPLETED", nil), "fallback")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Transaction is already COMPLETED")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	RespondError(c, errors.New("disk full"), "Failed to record payment")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to record payment")
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(decimal.RequireFromString("10.50")))
	assert.True(t, IsValidationError(ValidateAmount(decimal.Zero)))
	assert.True(t, IsValidationError(ValidateAmount(decimal.RequireFromString("-1"))))
	assert.True(t, IsValidationError(ValidateAmount(decimal.RequireFromString("1.005"))))
}

func TestValidateCurrencyAndCustomer(t *testing.T) {
	assert.NoError(t, ValidateCurrency(NormalizeCurrency(" inr ")))
	assert.Error(t, ValidateCurrency("RUPEE"))

	assert.NoError(t, ValidateCustomer("", ""))
	assert.NoError(t, ValidateCustomer("buyer@example.com", "+919876543210"))

	err := ValidateCustomer("nope", "12")
	require.Error(t, err)
	var fields FieldValidationErrors
	require.True(t, errors.As(err, &fields))
	assert.Len(t, fields, 1)
	assert.Equal(t, "customer.email", fields[0].Field)
}
