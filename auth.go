package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Requests coming from the dashboard UI. Bot ids travel in the body on the
// auth routes, matching the dialog's fetch calls.
type botIDRequest struct {
	BotID string `json:"botId"`
}

type verifyCodeRequest struct {
	BotID string `json:"botId"`
	Code  string `json:"code"`
}

type verifyPasswordRequest struct {
	BotID    string `json:"botId"`
	Password string `json:"password"`
}

type verifySessionRequest struct {
	BotID         string `json:"botId"`
	SessionString string `json:"sessionString"`
}

type qrWaitRequest struct {
	BotID   string `json:"botId"`
	Timeout int    `json:"timeout"`
}

// sendCodeHandler starts the code flow. The returned phone_code_hash ties
// the later verify call to this request and is kept on the row.
func sendCodeHandler(c *gin.Context) {
	var req botIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(BadRequest("missing_bot_id"))
		return
	}

	bot, ok := ownedBot(c, req.BotID)
	if !ok {
		return
	}

	res, err := backend.SendCode(bot)
	if err != nil {
		logger.Error(bot.ID, "send code:", err)
		bot.storeAuthError(errorMessage(err))
		c.JSON(UpstreamFailure(err))
		return
	}

	if err := bot.markCodeRequested(res.PhoneCodeHash); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"code_type": res.CodeType,
		"message":   res.Info,
	})
}

// verifyCodeHandler completes the code flow. Three outcomes: session
// obtained, password still required, or failure.
func verifyCodeHandler(c *gin.Context) {
	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		c.AbortWithStatusJSON(BadRequest("missing_code"))
		return
	}

	bot, ok := ownedBot(c, req.BotID)
	if !ok {
		return
	}

	if bot.PhoneCodeHash == "" {
		c.AbortWithStatusJSON(BadRequest("code_not_requested"))
		return
	}

	res, err := backend.VerifyCode(bot, req.Code)
	if err != nil {
		logger.Error(bot.ID, "verify code:", err)
		bot.storeAuthError(errorMessage(err))
		c.JSON(UpstreamFailure(err))
		return
	}

	// 2FA escalation is not a failure, the row stays untouched
	if res.RequiresPassword {
		c.JSON(http.StatusOK, gin.H{"needsPassword": true})
		return
	}

	finishAuthorization(c, bot, res.SessionString)
}

// verifyPasswordHandler completes 2FA
func verifyPasswordHandler(c *gin.Context) {
	var req verifyPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
		c.AbortWithStatusJSON(BadRequest("missing_password"))
		return
	}

	bot, ok := ownedBot(c, req.BotID)
	if !ok {
		return
	}

	res, err := backend.VerifyPassword(bot, req.Password)
	if err != nil {
		logger.Error(bot.ID, "verify password:", err)
		bot.storeAuthError(errorMessage(err))
		c.JSON(UpstreamFailure(err))
		return
	}

	finishAuthorization(c, bot, res.SessionString)
}

// verifySessionHandler validates a pasted string-session before persisting
// it. The groups fetch acts as the validity probe, a dead token must never
// be stored as if it were live.
func verifySessionHandler(c *gin.Context) {
	var req verifySessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionString == "" {
		c.AbortWithStatusJSON(BadRequest("missing_session"))
		return
	}

	bot, ok := ownedBot(c, req.BotID)
	if !ok {
		return
	}

	if _, err := backend.FetchGroups(bot, req.SessionString); err != nil {
		logger.Error(bot.ID, "session probe:", err)
		c.AbortWithStatusJSON(BadRequest("invalid_session"))
		return
	}

	if err := bot.storeSession(req.SessionString); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": getLocalizedMessage("session_authorized"),
	})
}

// importSessionHandler streams an uploaded session file to the backend
func importSessionHandler(c *gin.Context) {
	botID := c.PostForm("botId")
	fileHeader, err := c.FormFile("sessionFile")
	if err != nil || botID == "" {
		c.AbortWithStatusJSON(BadRequest("missing_session_file"))
		return
	}

	bot, ok := ownedBot(c, botID)
	if !ok {
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.Error(err)
		return
	}
	defer file.Close()

	res, err := backend.ImportSession(bot, fileHeader.Filename, file)
	if err != nil {
		logger.Error(bot.ID, "import session:", err)
		bot.storeAuthError(errorMessage(err))
		c.JSON(UpstreamFailure(err))
		return
	}

	finishAuthorization(c, bot, res.SessionString)
}

// qrGenerateHandler relays a QR payload from the backend
func qrGenerateHandler(c *gin.Context) {
	var req botIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(BadRequest("missing_bot_id"))
		return
	}

	bot, ok := ownedBot(c, req.BotID)
	if !ok {
		return
	}

	res, err := backend.GenerateQR(bot)
	if err != nil {
		logger.Error(bot.ID, "qr generate:", err)
		c.JSON(UpstreamFailure(err))
		return
	}

	if err := bot.markAuthAttempt(); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"qr_code":    res.QRCode,
		"expires_in": res.ExpiresIn,
	})
}

// qrCheckHandler polls the QR login status once and persists the session
// when the scan completed
func qrCheckHandler(c *gin.Context) {
	var req botIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(BadRequest("missing_bot_id"))
		return
	}

	bot, ok := ownedBot(c, req.BotID)
	if !ok {
		return
	}

	res, err := backend.CheckQR(bot.ID)
	if err != nil {
		logger.Error(bot.ID, "qr check:", err)
		c.JSON(UpstreamFailure(err))
		return
	}

	if res.Authorized && res.SessionString != "" {
		if err := bot.storeSession(res.SessionString); err != nil {
			c.Error(err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"authorized":        res.Authorized,
		"requires_password": res.RequiresPassword,
	})
}

// qrWaitHandler runs the QR polling loop server-side: a bounded loop with
// an explicit deadline instead of dialog-lifecycle timers
func qrWaitHandler(c *gin.Context) {
	var req qrWaitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(BadRequest("missing_bot_id"))
		return
	}

	bot, ok := ownedBot(c, req.BotID)
	if !ok {
		return
	}

	deadline := time.Duration(req.Timeout) * time.Second
	if deadline <= 0 || deadline > qrWaitMax {
		deadline = qrWaitDefault
	}

	res, err := PollQRLogin(c.Request.Context(), backend, bot.ID, qrPollInterval, deadline)
	if err == errQRExpired {
		c.JSON(http.StatusOK, gin.H{
			"expired": true,
			"message": getLocalizedMessage("qr_expired"),
		})
		return
	}
	if err != nil {
		c.JSON(UpstreamFailure(err))
		return
	}

	// QR login cannot finish 2FA, point the user at the code flow
	if res.RequiresPassword {
		c.JSON(http.StatusOK, gin.H{
			"requires_password": true,
			"message":           getLocalizedMessage("qr_password_required"),
		})
		return
	}

	finishAuthorization(c, bot, res.SessionString)
}

// finishAuthorization persists a login that produced a session string and
// keeps the authorized/session pairing intact
func finishAuthorization(c *gin.Context, bot *Bot, session string) {
	if session == "" {
		logger.Error(bot.ID, "backend confirmed login without a session string")
		bot.storeAuthError(getLocalizedMessage("invalid_backend_reply"))
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error: getLocalizedMessage("invalid_backend_reply"),
		})
		return
	}

	if err := bot.storeSession(session); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
