package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/gp1080/MrGamePlayer-sub001/internal/api/controller"
	apirepository "github.com/gp1080/MrGamePlayer-sub001/internal/api/repository"
	"github.com/gp1080/MrGamePlayer-sub001/internal/api/service"
	"github.com/gp1080/MrGamePlayer-sub001/internal/broadcast"
	"github.com/gp1080/MrGamePlayer-sub001/internal/client"
	"github.com/gp1080/MrGamePlayer-sub001/internal/coordinator"
	"github.com/gp1080/MrGamePlayer-sub001/internal/db"
	"github.com/gp1080/MrGamePlayer-sub001/internal/registry"
	"github.com/gp1080/MrGamePlayer-sub001/internal/room"
	"github.com/gp1080/MrGamePlayer-sub001/pkg/proto"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	require.NoError(t, db.Initialize(pool))

	accountController := controller.NewAccountController(
		service.NewAccountService(apirepository.NewAccountRepository(pool)),
	)

	reg := registry.New()
	dir := room.NewDirectory()
	engine := broadcast.New(reg, dir)
	coord := coordinator.New(reg, dir, engine, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go coord.Run(ctx)

	ts := httptest.NewServer(NewServer(coord, dir, accountController).Engine())
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestServer_SessionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	created := make(chan string, 4)
	alicePlayers := make(chan []string, 16)
	aliceErrors := make(chan string, 4)
	alice, err := client.Dial(ctx, wsURL(ts), client.Handlers{
		OnRoomCreated:   func(roomID string) { created <- roomID },
		OnPlayersUpdate: func(players []string) { alicePlayers <- players },
		OnError:         func(msg string) { aliceErrors <- msg },
	})
	require.NoError(t, err)
	defer alice.Close()

	bobPlayers := make(chan []string, 16)
	bobStarting := make(chan proto.GameStartingPayload, 4)
	bobErrors := make(chan string, 4)
	bob, err := client.Dial(ctx, wsURL(ts), client.Handlers{
		OnPlayersUpdate: func(players []string) { bobPlayers <- players },
		OnGameStarting:  func(p proto.GameStartingPayload) { bobStarting <- p },
		OnError:         func(msg string) { bobErrors <- msg },
	})
	require.NoError(t, err)
	defer bob.Close()

	require.NoError(t, alice.Authenticate("0xalice"))
	require.NoError(t, bob.Authenticate("0xbob"))

	require.NoError(t, alice.CreateRoom(proto.CreateRoomPayload{Name: "lobby"}))
	roomID := waitFor(t, created, "ROOM_CREATED")
	require.NotEmpty(t, roomID)

	require.NoError(t, bob.JoinRoom(roomID, ""))
	players := waitFor(t, bobPlayers, "PLAYERS_UPDATE after join")
	require.Equal(t, []string{"0xalice", "0xbob"}, players)

	// Only the creator may start the game.
	require.NoError(t, bob.StartGame(roomID, []string{"rps"}, 3))
	require.Equal(t, "Only the room creator can start the game",
		waitFor(t, bobErrors, "rejection of non-creator start"))

	require.NoError(t, alice.StartGame(roomID, []string{"rps"}, 3))
	starting := waitFor(t, bobStarting, "GAME_STARTING")
	require.Equal(t, roomID, starting.RoomID)
	require.Equal(t, []string{"rps"}, starting.Games)

	// State updates fan out as snapshots and land in both synchronizers.
	require.NoError(t, alice.SendUpdate(proto.PlayerState{Position: proto.Vec2{X: 3, Y: 4}}))
	require.Eventually(t, func() bool {
		pos, ok := bob.Synchronizer().Position("0xalice")
		if !ok {
			return false
		}
		return pos.X == 3 && pos.Y == 4
	}, 3*time.Second, 10*time.Millisecond, "bob never saw alice's position")

	// The REST directory view shows the live room, without any password.
	resp, err := http.Get(ts.URL + "/api/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Success bool `json:"success"`
		Extras  struct {
			Rooms []proto.RoomSummary `json:"rooms"`
		} `json:"extras"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	require.True(t, listing.Success)
	require.Len(t, listing.Extras.Rooms, 1)
	require.Equal(t, roomID, listing.Extras.Rooms[0].ID)
	require.Equal(t, 2, listing.Extras.Rooms[0].PlayerCount)
}

func TestServer_ChatRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	created := make(chan string, 4)
	alice, err := client.Dial(ctx, wsURL(ts), client.Handlers{
		OnRoomCreated: func(roomID string) { created <- roomID },
	})
	require.NoError(t, err)
	defer alice.Close()

	chats := make(chan proto.ChatPayload, 4)
	bobPlayers := make(chan []string, 16)
	bob, err := client.Dial(ctx, wsURL(ts), client.Handlers{
		OnChat:          func(p proto.ChatPayload) { chats <- p },
		OnPlayersUpdate: func(players []string) { bobPlayers <- players },
	})
	require.NoError(t, err)
	defer bob.Close()

	require.NoError(t, alice.Authenticate("0xalice"))
	require.NoError(t, bob.Authenticate("0xbob"))

	require.NoError(t, alice.CreateRoom(proto.CreateRoomPayload{RoomID: "chatty"}))
	roomID := waitFor(t, created, "ROOM_CREATED")
	require.NoError(t, bob.JoinRoom(roomID, ""))
	waitFor(t, bobPlayers, "PLAYERS_UPDATE after join")

	require.NoError(t, alice.SendChat(roomID, "gl hf"))

	chat := waitFor(t, chats, "CHAT_MESSAGE")
	require.Equal(t, roomID, chat.RoomID)
	require.Equal(t, "0xalice", chat.Data.Sender)
	require.Equal(t, "gl hf", chat.Data.Content)
}

func TestServer_AccountAPI(t *testing.T) {
	ts := newTestServer(t)

	register := func(body string) *http.Response {
		resp, err := http.Post(ts.URL+"/api/register", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		return resp
	}

	resp := register(`{"username":"alice","walletAddress":"0xalice","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Duplicate usernames are rejected.
	resp = register(`{"username":"alice","walletAddress":"0xother","password":"hunter22"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	login := func(body string) *http.Response {
		resp, err := http.Post(ts.URL+"/api/login", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		return resp
	}

	resp = login(`{"username":"alice","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = login(`{"username":"alice","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Extras struct {
			Token         string `json:"token"`
			WalletAddress string `json:"walletAddress"`
		} `json:"extras"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	require.NotEmpty(t, body.Extras.Token)
	require.Equal(t, "0xalice", body.Extras.WalletAddress)

	resp, err := http.Post(ts.URL+"/api/guest", "application/json", nil)
	require.NoError(t, err)
	var guest struct {
		Extras struct {
			PlayerID string `json:"player_id"`
		} `json:"extras"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&guest))
	resp.Body.Close()
	require.True(t, strings.HasPrefix(guest.Extras.PlayerID, "guest-"))
}
