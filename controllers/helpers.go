package controllers

import (
	"errors"
	"io"
	"strconv"

	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/gin-gonic/gin"
)

// paramID reads a positive numeric path parameter, answering 400 otherwise.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.LogError("Invalid %s parameter %q", name, c.Param(name))
		utils.BadRequest(c, "Invalid "+name, nil)
		return 0, false
	}
	return uint(id), true
}

// bindOptionalJSON binds a body that may be absent altogether.
func bindOptionalJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ownedBy hides transactions of other organizations behind a 404.
func ownedBy(txn *models.PaymentTransaction, orgID uint) error {
	if txn.OrganizationID != orgID {
		return utils.NotFoundError("Transaction not found", nil)
	}
	return nil
}
