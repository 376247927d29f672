package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gp1080/MrGamePlayer-sub001/internal/api/controller"
	"github.com/gp1080/MrGamePlayer-sub001/internal/api/response"
	"github.com/gp1080/MrGamePlayer-sub001/internal/coordinator"
	"github.com/gp1080/MrGamePlayer-sub001/internal/room"
)

var tracer = otel.Tracer("server")

// Server owns the single listening port: the websocket upgrade at /ws
// and the HTTP account/directory API.
type Server struct {
	coordinator       *coordinator.Coordinator
	directory         *room.Directory
	accountController *controller.AccountController
	upgrader          websocket.Upgrader
}

func NewServer(coord *coordinator.Coordinator, dir *room.Directory, accounts *controller.AccountController) *Server {
	return &Server{
		coordinator:       coord,
		directory:         dir,
		accountController: accounts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Engine builds the gin router.
func (s *Server) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/ws", s.handleWebSocket)

	api := engine.Group("/api")
	{
		api.GET("/rooms", s.handleListRooms)
		api.POST("/register", s.accountController.Register)
		api.POST("/login", s.accountController.Login)
		api.POST("/guest", s.accountController.GuestLogin)
	}
	return engine
}

// handleWebSocket upgrades the connection and hands it to the
// coordinator. Authentication happens later, over the socket itself.
func (s *Server) handleWebSocket(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "server.handleWebSocket", trace.WithAttributes(
		attribute.String("http.url", c.Request.URL.String()),
	))
	defer span.End()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upgrade connection", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to upgrade connection")
		return
	}

	go s.readPump(conn)
}

// readPump is the only reader of a socket. Every frame goes to the
// coordinator; a read error of any kind means the connection is gone
// and its memberships must be cleaned up.
func (s *Server) readPump(conn *websocket.Conn) {
	defer func() {
		conn.Close()
		s.coordinator.NotifyClosed(conn)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("connection error", "error", err)
			}
			return
		}
		s.coordinator.Submit(conn, raw)
	}
}

// handleListRooms serves the redacted room directory over plain HTTP so
// lobby pages can poll without holding a socket.
func (s *Server) handleListRooms(c *gin.Context) {
	response.SuccessResponse(c, gin.H{"rooms": s.directory.Summaries()})
}
