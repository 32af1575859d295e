// internal/api/handlers_test.go
package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/drawatale/drawatale-backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootAndHealth(t *testing.T) {
	a := newTestAPI(t, nil)

	w := a.do(http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Draw-a-Tale API is running!", decode[map[string]string](t, w)["message"])

	w = a.do(http.MethodGet, "/api/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["llm_ready"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestRequestIDHeader(t *testing.T) {
	a := newTestAPI(t, nil)

	w := a.do(http.MethodGet, "/api/health", nil, "")
	assert.Len(t, w.Header().Get(requestIDHeader), 27)

	r := newRequest(http.MethodGet, "/api/health")
	r.Header.Set(requestIDHeader, "client-chosen")
	w = serve(a, r)
	assert.Equal(t, "client-chosen", w.Header().Get(requestIDHeader))
}

func TestAuthFlow(t *testing.T) {
	a := newTestAPI(t, nil)
	token := a.signUp("Kid@Example.com")

	w := a.do(http.MethodPost, "/api/auth/register", gin.H{
		"email": "kid@example.com", "username": "again", "password": "secret1",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	errBody := decode[APIResponse](t, w)
	assert.False(t, errBody.Success)
	assert.Equal(t, "Email already registered", errBody.Error.Message)

	w = a.do(http.MethodPost, "/api/auth/register", gin.H{
		"email": "short@example.com", "username": "s", "password": "abc",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Password must be at least 6 characters", decode[APIResponse](t, w).Error.Message)

	w = a.do(http.MethodPost, "/api/auth/register", gin.H{
		"email": "long@example.com", "username": "l", "password": strings.Repeat("a", 73),
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Password must be at most 72 bytes", decode[APIResponse](t, w).Error.Message)

	w = a.do(http.MethodPost, "/api/auth/login", gin.H{"email": "kid@example.com", "password": "wrong-pass"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Incorrect email or password", decode[APIResponse](t, w).Error.Message)

	w = a.do(http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[map[string]interface{}](t, w)
	assert.Equal(t, "kid@example.com", me["email"])
	assert.Equal(t, models.UserTypeChild, me["user_type"])
	assert.NotContains(t, me, "hashed_password")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	a := newTestAPI(t, nil)

	for _, path := range []string{"/api/auth/me", "/api/drawings", "/api/stories", "/api/ai/interests", "/api/llm/status"} {
		w := a.do(http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		body := decode[APIResponse](t, w)
		assert.Equal(t, ErrorUnauthorized, body.Error.Code, path)
	}

	w := a.do(http.MethodGet, "/api/drawings", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Could not validate credentials", decode[APIResponse](t, w).Error.Message)

	w = a.do(http.MethodGet, "/api/quests", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	quests := decode[map[string][]models.Quest](t, w)["quests"]
	require.Len(t, quests, 3)
	assert.Equal(t, "The Quest for Lines", quests[0].Title)
	assert.Equal(t, "Color Master", quests[2].Title)
}

func TestDrawingCRUD(t *testing.T) {
	a := newTestAPI(t, nil)
	token := a.signUp("draw@example.com")

	w := a.do(http.MethodPost, "/api/drawings", gin.H{
		"title":       "Rocket",
		"description": "flying to the moon",
		"time_lapse":  []gin.H{{"tool": "pencil", "timestamp": 1000}},
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Drawing](t, w)
	assert.NotEmpty(t, created.ID)
	assert.JSONEq(t, "{}", string(created.CanvasData))

	w = a.do(http.MethodGet, "/api/drawings/"+created.ID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Rocket", decode[models.Drawing](t, w).Title)

	w = a.do(http.MethodPut, "/api/drawings/"+created.ID, gin.H{"title": "Big Rocket"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.Drawing](t, w)
	assert.Equal(t, "Big Rocket", updated.Title)
	assert.Equal(t, "flying to the moon", updated.Description)

	w = a.do(http.MethodGet, "/api/drawings", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Drawing](t, w), 1)

	other := a.signUp("other@example.com")
	w = a.do(http.MethodGet, "/api/drawings/"+created.ID, nil, other)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodDelete, "/api/drawings/"+created.ID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Drawing deleted successfully", decode[map[string]string](t, w)["message"])

	w = a.do(http.MethodGet, "/api/drawings/"+created.ID, nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Drawing not found", decode[APIResponse](t, w).Error.Message)
}

func TestInvalidBody(t *testing.T) {
	a := newTestAPI(t, nil)
	token := a.signUp("body@example.com")

	r := newRequest(http.MethodPost, "/api/drawings")
	r.Header.Set("Authorization", "Bearer "+token)
	r.Body = http.NoBody
	w := serve(a, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorInvalidBody, decode[APIResponse](t, w).Error.Code)
}

func TestGenerateStoryFallsBackToTemplate(t *testing.T) {
	a := newTestAPI(t, nil)
	token := a.signUp("story@example.com")

	w := a.do(http.MethodPost, "/api/stories/generate", gin.H{"prompt": ""}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Story prompt is required", decode[APIResponse](t, w).Error.Message)

	w = a.do(http.MethodPost, "/api/stories/generate", gin.H{"prompt": "a dinosaur in the forest"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	story := decode[models.Story](t, w)
	assert.Equal(t, "The Amazing Adventure of friendly dinosaur", story.Title)
	assert.Len(t, story.Pages, 3)
	assert.Equal(t, models.GeneratedWithTemplate, story.GeneratedWith)
	assert.Contains(t, story.Themes, "dinosaur")

	w = a.do(http.MethodGet, "/api/stories", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Story](t, w), 1)
}

func TestGenerateStoryRateLimitedPerUser(t *testing.T) {
	a := newTestAPI(t, nil)
	token := a.signUp("limit@example.com")
	other := a.signUp("limit2@example.com")

	// The empty prompt is rejected after the limiter has counted it.
	for i := 0; i < 2; i++ {
		w := a.do(http.MethodPost, "/api/stories/generate", gin.H{"prompt": ""}, token)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
	w := a.do(http.MethodPost, "/api/stories/generate", gin.H{"prompt": "a cat"}, token)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, ErrorRateLimited, decode[APIResponse](t, w).Error.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = a.do(http.MethodPost, "/api/stories/generate", gin.H{"prompt": "a cat"}, other)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateStory(t *testing.T) {
	a := newTestAPI(t, nil)
	token := a.signUp("write@example.com")

	w := a.do(http.MethodPost, "/api/stories", gin.H{"content": "no title"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/api/stories", gin.H{
		"title":       "My Story",
		"content":     "Once upon a time",
		"user_prompt": "a fox",
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "My Story", decode[models.Story](t, w).Title)
}

func TestQuestProgress(t *testing.T) {
	a := newTestAPI(t, nil)
	token := a.signUp("quest@example.com")

	w := a.do(http.MethodPost, "/api/progress", gin.H{"quest_id": "quest_9"}, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodPost, "/api/progress", gin.H{"quest_id": "quest_1", "status": "done"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/api/progress", gin.H{"quest_id": "quest_1", "completion_percentage": 40}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.ProgressInProgress, decode[models.QuestProgress](t, w).Status)

	for i := 0; i < 2; i++ {
		w = a.do(http.MethodPost, "/api/progress", gin.H{"quest_id": "quest_1", "status": "completed"}, token)
		require.Equal(t, http.StatusOK, w.Code)
	}
	done := decode[models.QuestProgress](t, w)
	assert.Equal(t, 100.0, done.CompletionPercentage)
	assert.Equal(t, []string{"Line Master"}, done.BadgesEarned)

	w = a.do(http.MethodGet, "/api/progress", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.QuestProgress](t, w), 1)
}

func TestAIEndpoints(t *testing.T) {
	a := newTestAPI(t, nil)
	token := a.signUp("ai@example.com")

	w := a.do(http.MethodGet, "/api/ai/interests", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	empty := decode[models.InterestProfile](t, w)
	assert.Len(t, empty.Interests, 11)
	assert.Empty(t, empty.TopInterests)

	w = a.do(http.MethodPost, "/api/drawings", gin.H{"title": "astronaut", "description": "on the moon"}, token)
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(http.MethodGet, "/api/ai/interests", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[models.InterestProfile](t, w)
	assert.Equal(t, []string{"space"}, profile.TopInterests)
	assert.InDelta(t, 2.0/4.0*100, profile.Interests["space"], 1e-9)

	w = a.do(http.MethodGet, "/api/ai/recommendations", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	recs := decode[map[string][]models.Recommendation](t, w)["recommendations"]
	require.NotEmpty(t, recs)
	assert.LessOrEqual(t, len(recs), 10)
	assert.Equal(t, "space", recs[0].Category)

	w = a.do(http.MethodPost, "/api/ai/analyze-drawing", gin.H{"time_lapse": []gin.H{}}, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"no_data"}`, w.Body.String())

	w = a.do(http.MethodPost, "/api/ai/analyze-drawing", gin.H{
		"time_lapse": []gin.H{
			{"tool": "pencil", "timestamp": 0},
			{"tool": "rainbow", "timestamp": 60000},
		},
		"duration": 60,
	}, token)
	require.Equal(t, http.StatusOK, w.Code)
	analysis := decode[map[string]interface{}](t, w)
	assert.Equal(t, 2.0, analysis["total_actions"])

	w = a.do(http.MethodGet, "/api/ai/drawing-hints?quest_id=quest_2", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	hints := decode[models.DrawingHints](t, w)
	assert.Equal(t, "beginner", hints.SkillLevel)
	assert.NotEmpty(t, hints.Hints)

	w = a.do(http.MethodGet, "/api/ai/drawing-hints?quest_id=nope", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLLMManagement(t *testing.T) {
	a := newTestAPI(t, nil)
	token := a.signUp("llm@example.com")

	w := a.do(http.MethodGet, "/api/llm/status", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]interface{}](t, w)["ready"])

	w = a.do(http.MethodGet, "/api/llm/providers", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[map[string]interface{}](t, w), "providers")

	admin := map[string]string{adminTokenHeader: testAdminToken}
	w = a.doWithHeaders(http.MethodPut, "/api/llm/config", gin.H{"provider": "no-such-provider", "api_key": "k"}, token, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[APIResponse](t, w)
	assert.Equal(t, ErrorLLMConfigInvalid, body.Error.Code)
	assert.Equal(t, "Unknown provider: no-such-provider", body.Error.Message)

	w = a.doWithHeaders(http.MethodPut, "/api/llm/config", gin.H{}, token, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLLMConfigRequiresAdminToken(t *testing.T) {
	a := newTestAPI(t, nil)
	token := a.signUp("child@example.com")
	update := gin.H{"provider": "openai", "api_key": "sk-child"}

	w := a.do(http.MethodPut, "/api/llm/config", update, token)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, ErrorForbidden, decode[APIResponse](t, w).Error.Code)

	w = a.doWithHeaders(http.MethodPut, "/api/llm/config", update, token, map[string]string{adminTokenHeader: "guess"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodGet, "/api/llm/status", nil, token)
	assert.Equal(t, false, decode[map[string]interface{}](t, w)["ready"])
}

func TestLLMConfigClosedWithoutAdminToken(t *testing.T) {
	cfg := testConfig()
	cfg.AdminToken = ""
	a := newTestAPI(t, cfg)
	token := a.signUp("op@example.com")

	w := a.doWithHeaders(http.MethodPut, "/api/llm/config", gin.H{"provider": "openai"}, token,
		map[string]string{adminTokenHeader: ""})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Runtime configuration is disabled", decode[APIResponse](t, w).Error.Message)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestAPI(t, nil)
	token := a.signUp("metrics@example.com")

	a.do(http.MethodPost, "/api/stories/generate", gin.H{"prompt": "a whale"}, token)

	w := a.do(http.MethodGet, "/api/metrics", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]interface{}](t, w)
	counters, ok := body["counters"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1.0, counters["stories.generated."+models.GeneratedWithTemplate])
	assert.Greater(t, counters["api.requests.total"], 0.0)
	assert.Equal(t, 0.0, body["live_sessions"])
}
