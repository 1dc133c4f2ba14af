package http

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"webchess/internal/server/core"
	"webchess/internal/server/processor"
	"webchess/internal/server/service"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	svc := service.New(nil, service.Config{WaitTimeout: 200 * time.Millisecond}, zerolog.Nop())
	proc := processor.New(svc, processor.Config{}, zerolog.Nop())
	t.Cleanup(func() {
		_ = proc.Close()
		_ = svc.Shutdown(time.Second)
	})
	return NewFiberApp(proc, svc, true, zerolog.Nop())
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func createHumanGame(t *testing.T, app *fiber.App) core.GameResponse {
	t.Helper()
	status, body := do(t, app, fiber.MethodPost, "/api/v1/games", `{"white":{"type":1},"black":{"type":1}}`)
	require.Equal(t, fiber.StatusCreated, status, string(body))
	return decode[core.GameResponse](t, body)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	status, body := do(t, app, fiber.MethodGet, "/health", "")
	require.Equal(t, fiber.StatusOK, status)
	health := decode[map[string]any](t, body)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "disabled", health["storage"])
	assert.EqualValues(t, 0, health["computerGames"])
}

func TestGameLifecycle(t *testing.T) {
	app := newTestApp(t)
	game := createHumanGame(t, app)
	base := "/api/v1/games/" + game.GameID

	status, body := do(t, app, fiber.MethodPost, base+"/moves", `{"move":"e2e4"}`)
	require.Equal(t, fiber.StatusOK, status, string(body))
	moved := decode[core.GameResponse](t, body)
	assert.Equal(t, []string{"e4"}, moved.SAN)
	assert.Equal(t, "Black to move", moved.Status)

	status, body = do(t, app, fiber.MethodGet, base, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "b", decode[core.GameResponse](t, body).Turn)

	status, body = do(t, app, fiber.MethodGet, base+"/board", "")
	require.Equal(t, fiber.StatusOK, status)
	board := decode[core.BoardResponse](t, body)
	assert.Equal(t, "P", board.Squares[4][4])

	status, body = do(t, app, fiber.MethodGet, base+"/legal?square=b8", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[core.LegalMovesResponse](t, body).Moves, 2)

	status, body = do(t, app, fiber.MethodPost, base+"/undo", "")
	require.Equal(t, fiber.StatusOK, status, string(body))
	assert.Empty(t, decode[core.GameResponse](t, body).Moves)

	status, _ = do(t, app, fiber.MethodDelete, base, "")
	assert.Equal(t, fiber.StatusNoContent, status)

	status, body = do(t, app, fiber.MethodGet, base, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, core.ErrGameNotFound, decode[core.ErrorResponse](t, body).Code)
}

func TestRequestErrors(t *testing.T) {
	app := newTestApp(t)
	game := createHumanGame(t, app)
	base := "/api/v1/games/" + game.GameID

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{name: "bad game id", method: fiber.MethodGet, path: "/api/v1/games/123", status: fiber.StatusBadRequest, code: core.ErrInvalidRequest},
		{name: "missing players", method: fiber.MethodPost, path: "/api/v1/games", body: `{}`, status: fiber.StatusBadRequest, code: core.ErrInvalidRequest},
		{name: "bad player type", method: fiber.MethodPost, path: "/api/v1/games", body: `{"white":{"type":3},"black":{"type":1}}`, status: fiber.StatusBadRequest, code: core.ErrInvalidRequest},
		{name: "bad depth", method: fiber.MethodPost, path: "/api/v1/games", body: `{"white":{"type":1},"black":{"type":2,"depth":9}}`, status: fiber.StatusBadRequest, code: core.ErrInvalidRequest},
		{name: "bad fen", method: fiber.MethodPost, path: "/api/v1/games", body: `{"white":{"type":1},"black":{"type":1},"fen":"nope"}`, status: fiber.StatusBadRequest, code: core.ErrInvalidFEN},
		{name: "malformed json", method: fiber.MethodPost, path: base + "/moves", body: `{"move":`, status: fiber.StatusBadRequest, code: core.ErrInvalidRequest},
		{name: "short move", method: fiber.MethodPost, path: base + "/moves", body: `{"move":"e2"}`, status: fiber.StatusBadRequest, code: core.ErrInvalidRequest},
		{name: "illegal move", method: fiber.MethodPost, path: base + "/moves", body: `{"move":"e2e5"}`, status: fiber.StatusBadRequest, code: core.ErrInvalidMove},
		{name: "bad square", method: fiber.MethodGet, path: base + "/legal?square=k9", status: fiber.StatusBadRequest, code: core.ErrInvalidSquare},
		{name: "unknown game", method: fiber.MethodGet, path: "/api/v1/games/3f8e1c9a-5b7d-4e2f-9a1b-0c6d8e4f2a7b/board", status: fiber.StatusNotFound, code: core.ErrGameNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status, string(body))
			assert.Equal(t, tt.code, decode[core.ErrorResponse](t, body).Code)
		})
	}
}

func TestContentType(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/games", strings.NewReader("white=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestLongPoll(t *testing.T) {
	app := newTestApp(t)
	game := createHumanGame(t, app)
	base := "/api/v1/games/" + game.GameID

	// Caller is behind, answered immediately
	start := time.Now()
	status, _ := do(t, app, fiber.MethodGet, base+"?wait=true&moveCount=5", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Less(t, time.Since(start), 150*time.Millisecond)

	// Caller is current, held until the wait times out
	start = time.Now()
	status, body := do(t, app, fiber.MethodGet, base+"?wait=true&moveCount=0", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Empty(t, decode[core.GameResponse](t, body).Moves)
}

func TestLongPollWakesOnComputerMove(t *testing.T) {
	app := newTestApp(t)

	status, body := do(t, app, fiber.MethodPost, "/api/v1/games", `{"white":{"type":1},"black":{"type":2,"mode":"random"}}`)
	require.Equal(t, fiber.StatusCreated, status, string(body))
	game := decode[core.GameResponse](t, body)
	base := "/api/v1/games/" + game.GameID

	status, body = do(t, app, fiber.MethodPost, base+"/moves", `{"move":"g1f3"}`)
	require.Equal(t, fiber.StatusOK, status, string(body))

	status, body = do(t, app, fiber.MethodGet, base+"?wait=true&moveCount=1", "")
	require.Equal(t, fiber.StatusOK, status)
	reply := decode[core.GameResponse](t, body)
	require.Len(t, reply.Moves, 2)
	require.NotNil(t, reply.LastMove)
	assert.Equal(t, "b", reply.LastMove.PlayerColor)
}
