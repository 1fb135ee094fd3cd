package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-discuss/internal/dto"
	"github.com/noah-isme/gema-discuss/internal/handler"
)

func compileContract(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "contracts", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)
	return schema
}

func readPayload(t *testing.T, resp *http.Response) interface{} {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload
}

func TestDiscussCommandContract(t *testing.T) {
	schema := compileContract(t, "discuss_command.schema.json")

	responses := []dto.DiscussCommandResponse{
		{Outcome: "created", DiscussionID: "disc-1", DiscussionName: "Ship v2", URL: "https://chat.example.com/channel/disc-1"},
		{Outcome: "joined", DiscussionID: "disc-1", URL: "https://chat.example.com/channel/disc-1", Message: "A discussion already exists, please join [here](https://chat.example.com/channel/disc-1).", Notified: true},
		{Outcome: "rejected", Message: "you must provide a discussion name", Notified: true},
		{Outcome: "failed", Message: "something went wrong while starting the discussion, please try again later"},
		{Outcome: "created", DiscussionID: "disc-2", URL: "https://chat.example.com/group/disc-2", PersistenceGap: true},
	}

	for _, response := range responses {
		app := newCommandApp(&mockCommandService{response: response}, "u-alice", "member")
		resp := postJSON(t, app, "/api/v1/commands/discuss", dto.DiscussCommandRequest{RoomID: "room-general"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, schema.Validate(readPayload(t, resp)), "outcome %s", response.Outcome)
	}
}

func TestAssociationContract(t *testing.T) {
	schema := compileContract(t, "association.schema.json")

	now := time.Now().UTC()
	svc := &mockAssociationService{rows: map[string]dto.AssociationResponse{
		"msg-1": {
			ThreadID:       "msg-1",
			Status:         "complete",
			DiscussionID:   "disc-1",
			DiscussionName: "ship-v2",
			DisplayName:    "Ship v2",
			ParentRoomID:   "room-general",
			URL:            "https://chat.example.com/channel/disc-1",
			ClaimedAt:      now,
			CreatedAt:      now,
		},
		"msg-2": {ThreadID: "msg-2", Status: "pending", ClaimedBy: "inv-1", ClaimedAt: now, CreatedAt: now},
	}}

	app := fiber.New()
	handler.NewAssociationHandler(svc, zerolog.Nop()).Register(app.Group("/api/v1/admin/associations"))

	for _, threadID := range []string{"msg-1", "msg-2"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/admin/associations/"+threadID, nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, schema.Validate(readPayload(t, resp)), "thread %s", threadID)
	}
}
