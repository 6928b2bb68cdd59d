package routers

import (
	"errors"
	"io"

	"creativemind-api/internal/ledger"
	"creativemind-api/internal/middleware"
	"creativemind-api/internal/payments"
	"creativemind-api/internal/providers"
	"creativemind-api/internal/setup"
	"creativemind-api/internal/shared"
	"creativemind-api/internal/users"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type UserRouter struct {
	ids        *users.Service
	ledger     *ledger.Store
	payments   *payments.Service
	stagingDir string
	log        *zap.SugaredLogger
}

func RegisterUserRoutes(e *echo.Group, ids *users.Service, lg *ledger.Store, pay *payments.Service, stagingDir string, umw *middleware.UserManager, log *zap.SugaredLogger) {
	ur := &UserRouter{ids: ids, ledger: lg, payments: pay, stagingDir: stagingDir, log: log}

	open := e.Group("/api/user")
	open.POST("/register", ur.Register)
	open.POST("/login", ur.Login)

	authed := e.Group("/api/user", umw.ExtractUser, umw.RequireUser)
	authed.GET("/credits", ur.Credits)
	authed.POST("/pay", ur.Pay)
	authed.POST("/verify", ur.Verify)
	authed.GET("/profile", ur.GetProfile)
	authed.PUT("/profile", ur.UpdateProfile)
	authed.PUT("/password", ur.UpdatePassword)
	authed.POST("/profile-image", ur.UploadProfileImage)
	authed.GET("/credit-history", ur.CreditHistory)
}

func (ur *UserRouter) Register(cc echo.Context) error {
	c := cc.(*setup.Context)

	var req users.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, shared.ErrInvalidRequest)
	}

	token, user, err := ur.ids.Register(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(200, map[string]any{
		"success": true,
		"token":   token,
		"user":    map[string]string{"name": user.Name, "username": user.Username},
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (ur *UserRouter) Login(cc echo.Context) error {
	c := cc.(*setup.Context)

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, shared.ErrInvalidRequest)
	}

	token, err := ur.ids.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(200, map[string]any{"success": true, "token": token})
}

func (ur *UserRouter) Credits(cc echo.Context) error {
	c := cc.(*setup.Context)

	balance, err := ur.ledger.GetBalance(c.Request().Context(), c.User.UserID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(200, map[string]any{
		"success": true,
		"credits": balance,
		"user":    map[string]string{"name": c.User.Name},
	})
}

type payRequest struct {
	PlanID string `json:"planId"`
}

func (ur *UserRouter) Pay(cc echo.Context) error {
	c := cc.(*setup.Context)

	var req payRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, shared.ErrInvalidRequest)
	}

	order, err := ur.payments.CreateCheckout(c.Request().Context(), c.User.UserID, req.PlanID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(200, map[string]any{"success": true, "order": order})
}

type verifyRequest struct {
	OrderID string `json:"orderId"`
}

func (ur *UserRouter) Verify(cc echo.Context) error {
	c := cc.(*setup.Context)

	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, shared.ErrInvalidRequest)
	}

	if _, err := ur.payments.VerifyPayment(c.Request().Context(), c.User.UserID, req.OrderID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(200, map[string]any{"success": true, "message": "Credits Added"})
}

func (ur *UserRouter) GetProfile(cc echo.Context) error {
	c := cc.(*setup.Context)

	profile, err := ur.ids.GetProfile(c.Request().Context(), c.User.UserID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(200, map[string]any{"success": true, "profile": profile})
}

func (ur *UserRouter) UpdateProfile(cc echo.Context) error {
	c := cc.(*setup.Context)

	var req users.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, shared.ErrInvalidRequest)
	}

	profile, err := ur.ids.UpdateProfile(c.Request().Context(), c.User.UserID, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(200, map[string]any{"success": true, "profile": profile})
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (ur *UserRouter) UpdatePassword(cc echo.Context) error {
	c := cc.(*setup.Context)

	var req updatePasswordRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, shared.ErrInvalidRequest)
	}

	if err := ur.ids.UpdatePassword(c.Request().Context(), c.User.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return respondError(c, err)
	}

	return c.JSON(200, map[string]any{"success": true, "message": "Password updated successfully"})
}

// UploadProfileImage stages the upload before handing it to the profile
// service; the staged copy is released on every exit path.
func (ur *UserRouter) UploadProfileImage(cc echo.Context) error {
	c := cc.(*setup.Context)

	file, err := c.FormFile("image")
	if err != nil {
		return respondError(c, shared.InvalidInput("no file uploaded"))
	}
	if file.Size > shared.MaxUploadBytes {
		return respondError(c, shared.InvalidInput("file size too large, maximum size is 5MB"))
	}

	src, err := file.Open()
	if err != nil {
		return respondError(c, errors.Join(errors.New("failed opening upload"), err))
	}
	defer func() {
		_ = src.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(src, shared.MaxUploadBytes+1))
	if err != nil {
		return respondError(c, errors.Join(errors.New("failed reading upload"), err))
	}

	staged, err := providers.Stage(ur.stagingDir, "profile-*", data, ur.log)
	if err != nil {
		return respondError(c, errors.Join(errors.New("failed staging upload"), err))
	}
	defer staged.Release()

	stagedData, err := staged.Read()
	if err != nil {
		return respondError(c, errors.Join(errors.New("failed reading staged upload"), err))
	}

	profile, err := ur.ids.SetProfileImage(c.Request().Context(), c.User.UserID, stagedData, file.Header.Get("Content-Type"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(200, map[string]any{
		"success": true,
		"profile": profile,
		"message": "Profile image updated successfully",
	})
}

func (ur *UserRouter) CreditHistory(cc echo.Context) error {
	c := cc.(*setup.Context)

	entries, err := ur.ledger.CreditHistory(c.Request().Context(), c.User.UserID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(200, map[string]any{"success": true, "transactions": entries})
}
