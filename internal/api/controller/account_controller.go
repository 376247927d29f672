package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gp1080/MrGamePlayer-sub001/internal/api/models"
	"github.com/gp1080/MrGamePlayer-sub001/internal/api/response"
	"github.com/gp1080/MrGamePlayer-sub001/internal/api/service"
)

// AccountController handles account-related HTTP requests.
type AccountController struct {
	accountService service.AccountService
}

// NewAccountController creates a new AccountController.
func NewAccountController(accountService service.AccountService) *AccountController {
	return &AccountController{accountService: accountService}
}

// Register handles the account registration endpoint.
func (ac *AccountController) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := ac.accountService.Register(c.Request.Context(), &req); err != nil {
		response.ErrorResponse(c, http.StatusConflict, err.Error())
		return
	}

	response.SuccessResponse(c, gin.H{"message": "Account created successfully"})
}

// Login handles the login endpoint.
func (ac *AccountController) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := ac.accountService.Login(c.Request.Context(), &req)
	if err != nil {
		response.ErrorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	response.SuccessResponse(c, resp)
}

// GuestLogin returns a generated player identity for wallet-less users.
func (ac *AccountController) GuestLogin(c *gin.Context) {
	playerID, err := ac.accountService.GuestLogin(c.Request.Context())
	if err != nil {
		response.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.SuccessResponse(c, gin.H{"player_id": playerID})
}
