package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type roleBody struct {
	UserID int    `json:"userId"`
	Role   string `json:"role"`
}

// requireAdmin gates the console on the admin marker. Anything less than a
// full match gets the same generic refusal.
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isAdminUser(currentUser(c).ID) {
			c.AbortWithStatusJSON(Forbidden())
			return
		}
	}
}

func adminStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"totalUsers":    countUsers(),
		"totalBots":     countBots(),
		"activeBots":    countActiveBots(),
		"totalMessages": sumMessagesToday(),
	})
}

type chartPoint struct {
	Date     string `json:"date"`
	Messages int    `json:"messages"`
	NewUsers int    `json:"newUsers"`
}

// adminChartsHandler buckets the last 7 days. Half-open day ranges so
// midnight rows land in exactly one bucket.
func adminChartsHandler(c *gin.Context) {
	now := time.Now()
	points := make([]chartPoint, 0, 7)

	for i := 6; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		to := from.AddDate(0, 0, 1)

		points = append(points, chartPoint{
			Date:     from.Format("02.01"),
			Messages: countMessageLogsBetween(from, to),
			NewUsers: countUsersBetween(from, to),
		})
	}

	c.JSON(http.StatusOK, points)
}

func adminUsersHandler(c *gin.Context) {
	users := getAllUsers()

	type userRow struct {
		UserProfile
		BotCount int `json:"bot_count"`
	}

	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, userRow{
			UserProfile: u,
			BotCount:    countBotsForUser(u.ID),
		})
	}

	c.JSON(http.StatusOK, rows)
}

func adminUserRoleHandler(c *gin.Context) {
	var req roleBody
	if err := c.ShouldBindJSON(&req); err != nil || req.Role == "" {
		c.AbortWithStatusJSON(BadRequest("invalid_role_payload"))
		return
	}

	user := getUserByID(req.UserID)
	if user.ID == 0 {
		c.AbortWithStatusJSON(BadRequest("user_not_found"))
		return
	}

	if err := user.setRole(req.Role); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func adminBotsHandler(c *gin.Context) {
	bots := getAllBots()

	type botRow struct {
		Bot
		UserEmail string `json:"user_email"`
	}

	rows := make([]botRow, 0, len(bots))
	for _, b := range bots {
		email := getUserByID(b.UserID).Email
		if email == "" {
			email = "Unknown"
		}

		rows = append(rows, botRow{Bot: b, UserEmail: email})
	}

	c.JSON(http.StatusOK, rows)
}

func adminRemoveBotHandler(c *gin.Context) {
	bot := getBotByID(c.Param("id"))
	if bot.ID == "" {
		c.AbortWithStatusJSON(NotFound())
		return
	}

	if err := bot.deleteBot(); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
