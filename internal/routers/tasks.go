package routers

import (
	"errors"
	"io"
	"net/http"

	"creativemind-api/internal/chats"
	"creativemind-api/internal/ledger"
	"creativemind-api/internal/middleware"
	"creativemind-api/internal/providers"
	"creativemind-api/internal/setup"
	"creativemind-api/internal/shared"
	"creativemind-api/internal/tasks"

	"github.com/labstack/echo/v4"
)

type TaskRouter struct {
	ex     *tasks.Executor
	chats  *chats.Store
	ledger *ledger.Store
}

func RegisterTaskRoutes(e *echo.Group, ex *tasks.Executor, ch *chats.Store, lg *ledger.Store, umw *middleware.UserManager) {
	tr := &TaskRouter{ex: ex, chats: ch, ledger: lg}

	api := e.Group("/api", umw.ExtractUser, umw.RequireUser)
	api.POST("/image/generate-image", tr.GenerateImage)
	api.POST("/image/remove-background", tr.RemoveBackground)
	api.POST("/tts/generate", tr.TextToSpeech)
	api.POST("/chatbot/chat", tr.Chat)
	api.GET("/chatbot/history", tr.ChatHistory)
	api.DELETE("/chatbot/chat/:chat_id", tr.DeleteChat)
}

// respondTaskError is respondError plus the balance hint on credit
// exhaustion, so the caller can route straight to a top-up flow.
func (tr *TaskRouter) respondTaskError(c *setup.Context, err error) error {
	rerr := shared.Classify(err)
	if rerr.Kind == shared.KindInsufficientCredits {
		balance, berr := tr.ledger.GetBalance(c.Request().Context(), c.User.UserID)
		if berr != nil {
			balance = 0
		}
		return c.JSON(rerr.StatusCode, map[string]any{
			"success":       false,
			"message":       rerr.Message(),
			"creditBalance": balance,
		})
	}
	return respondError(c, err)
}

type generateImageRequest struct {
	Prompt string `json:"prompt"`
}

func (tr *TaskRouter) GenerateImage(cc echo.Context) error {
	c := cc.(*setup.Context)

	var req generateImageRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, shared.ErrInvalidRequest)
	}

	out, err := tr.ex.Run(c.Request().Context(), c.User, providers.CapabilityImageGeneration, tasks.Input{Prompt: req.Prompt})
	if err != nil {
		return tr.respondTaskError(c, err)
	}

	return c.JSON(200, map[string]any{
		"success":       true,
		"message":       "Image Generated",
		"creditBalance": out.NewBalance,
		"resultImage":   out.Result.ImageURL,
	})
}

func (tr *TaskRouter) RemoveBackground(cc echo.Context) error {
	c := cc.(*setup.Context)

	file, err := c.FormFile("image")
	if err != nil {
		return respondError(c, shared.InvalidInput("no image file provided"))
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

	out, err := tr.ex.Run(c.Request().Context(), c.User, providers.CapabilityBackgroundRemoval, tasks.Input{
		Image:     data,
		ImageMIME: file.Header.Get("Content-Type"),
	})
	if err != nil {
		return tr.respondTaskError(c, err)
	}

	return c.JSON(200, map[string]any{
		"success":        true,
		"message":        "Background removed successfully",
		"creditBalance":  out.NewBalance,
		"processedImage": out.Result.ProcessedImageDataURL,
	})
}

type textToSpeechRequest struct {
	Text string `json:"text"`
}

func (tr *TaskRouter) TextToSpeech(cc echo.Context) error {
	c := cc.(*setup.Context)

	var req textToSpeechRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, shared.ErrInvalidRequest)
	}

	out, err := tr.ex.Run(c.Request().Context(), c.User, providers.CapabilityTextToSpeech, tasks.Input{Text: req.Text})
	if err != nil {
		return tr.respondTaskError(c, err)
	}

	return c.JSON(200, map[string]any{
		"audioUrl":      out.Result.AudioDataURL,
		"creditBalance": out.NewBalance,
	})
}

type chatRequest struct {
	Messages []shared.ChatMessage `json:"messages"`
	ChatID   string               `json:"chatId,omitempty"`
}

func (tr *TaskRouter) Chat(cc echo.Context) error {
	c := cc.(*setup.Context)

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, shared.ErrInvalidRequest)
	}

	out, err := tr.ex.Run(c.Request().Context(), c.User, providers.CapabilityChatCompletion, tasks.Input{
		Messages: req.Messages,
		ChatID:   req.ChatID,
	})
	if err != nil {
		return tr.respondTaskError(c, err)
	}

	return c.JSON(200, map[string]any{
		"message":       out.Result.AssistantMessage,
		"chatId":        out.Session.ID,
		"creditBalance": out.NewBalance,
	})
}

func (tr *TaskRouter) ChatHistory(cc echo.Context) error {
	c := cc.(*setup.Context)

	history, err := tr.chats.ListActive(c.Request().Context(), c.User.UserID, shared.ChatHistoryLimit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(200, map[string]any{
		"success": true,
		"history": history,
	})
}

func (tr *TaskRouter) DeleteChat(cc echo.Context) error {
	c := cc.(*setup.Context)

	chatID := c.Param("chat_id")
	if chatID == "" {
		return respondError(c, shared.InvalidInput("chat id is required"))
	}

	if err := tr.chats.SoftDelete(c.Request().Context(), c.User.UserID, chatID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]any{"success": false, "message": "chat not found"})
		}
		return respondError(c, err)
	}

	return c.JSON(200, map[string]any{
		"success": true,
		"message": "Chat deleted successfully",
	})
}
