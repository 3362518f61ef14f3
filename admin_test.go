package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmin_forbiddenForRegularUser(t *testing.T) {
	for _, path := range []string{"/api/admin/stats", "/api/admin/users", "/api/admin/bots"} {
		rr := performRequest("GET", path, "owner-token", nil)
		assert.Equal(t, http.StatusForbidden, rr.Code, path)
	}
}

func TestAdmin_stats(t *testing.T) {
	orm.DB.Delete(BotGroup{})
	orm.DB.Delete(Bot{})

	counts := []int{5, 0, 10}
	for i, sent := range counts {
		bot := createTestBot(ownerUser, "+4810020035"+strconv.Itoa(i))
		require.NoError(t, orm.DB.Model(bot).Where("id = ?", bot.ID).
			Update("messages_sent_today", sent).Error)
		if i == 0 {
			require.NoError(t, bot.setStatus(StatusRunning))
		}
	}

	rr := performRequest("GET", "/api/admin/stats", "admin-token", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	res := decodeBody(t, rr)
	assert.Equal(t, float64(3), res["totalUsers"])
	assert.Equal(t, float64(3), res["totalBots"])
	assert.Equal(t, float64(1), res["activeBots"])
	assert.Equal(t, float64(15), res["totalMessages"])
}

func TestAdmin_charts(t *testing.T) {
	orm.DB.Delete(MessageLog{})

	now := time.Now()
	for i := 0; i < 2; i++ {
		log := MessageLog{BotID: "chart-bot", GroupID: "g1", Status: "sent", SentAt: &now}
		require.NoError(t, log.create())
	}
	backdated := MessageLog{BotID: "chart-bot", GroupID: "g1", Status: "sent"}
	require.NoError(t, backdated.create())
	threeDaysAgo := now.AddDate(0, 0, -3)
	require.NoError(t, orm.DB.Model(&backdated).Where("id = ?", backdated.ID).
		Update("created_at", threeDaysAgo).Error)

	rr := performRequest("GET", "/api/admin/stats/charts", "admin-token", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var points []chartPoint
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &points))
	require.Len(t, points, 7)

	assert.Equal(t, 2, points[6].Messages)
	assert.Equal(t, 1, points[3].Messages)
	// every seeded account registered today
	assert.Equal(t, 3, points[6].NewUsers)
}

func TestAdmin_usersList(t *testing.T) {
	rr := performRequest("GET", "/api/admin/users", "admin-token", nil)

	require.Equal(t, http.StatusOK, rr.Code)

	var rows []struct {
		Email    string `json:"email"`
		BotCount int    `json:"bot_count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	require.Len(t, rows, 3)

	byEmail := map[string]int{}
	for _, r := range rows {
		byEmail[r.Email] = r.BotCount
	}
	assert.Equal(t, countBotsForUser(ownerUser.ID), byEmail["owner@test.local"])
	assert.Equal(t, 0, byEmail["other@test.local"])
}

func TestAdmin_userRole(t *testing.T) {
	rr := performRequest("POST", "/api/admin/users/role", "admin-token",
		strings.NewReader(`{"userId": `+strconv.Itoa(otherUser.ID)+`, "role": "moderator"}`))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "moderator", getUserByID(otherUser.ID).Role)

	rr = performRequest("POST", "/api/admin/users/role", "admin-token",
		strings.NewReader(`{"userId": 999999, "role": "admin"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdmin_botsList(t *testing.T) {
	bot := createTestBot(otherUser, "+48100200360")

	rr := performRequest("GET", "/api/admin/bots", "admin-token", nil)

	require.Equal(t, http.StatusOK, rr.Code)

	var rows []struct {
		ID        string `json:"id"`
		UserEmail string `json:"user_email"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))

	found := false
	for _, r := range rows {
		if r.ID == bot.ID {
			found = true
			assert.Equal(t, "other@test.local", r.UserEmail)
		}
	}
	assert.True(t, found)
}

func TestAdmin_removeBot(t *testing.T) {
	bot := createTestBot(otherUser, "+48100200361")

	rr := performRequest("DELETE", "/api/admin/bots/"+bot.ID, "admin-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, getBotByID(bot.ID).ID)

	rr = performRequest("DELETE", "/api/admin/bots/does-not-exist", "admin-token", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
