// Package gateway exposes a session over HTTP: a JSON turn endpoint, a
// websocket endpoint for interactive chat, and a health check.
package gateway

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/becomeliminal/recall/provider"
	"github.com/becomeliminal/recall/session"
)

// TurnRequest is the body of POST /api/v1/turn.
type TurnRequest struct {
	Message string `json:"message" binding:"required"`
}

// TurnResponse reports one completed turn to the client.
type TurnResponse struct {
	Response     string `json:"response"`
	Grounded     bool   `json:"grounded"`
	RelatedCount int    `json:"related_count"`
	NotesAdded   int    `json:"notes_added"`
	Compressed   bool   `json:"compressed"`
}

// Server serializes turns onto a single session. One conversation, one
// writer: turns take the write lock so concurrent requests queue rather
// than interleave their snapshot writes, and read endpoints take the
// read lock so they never observe a half-applied turn.
type Server struct {
	session  *session.Session
	upgrader websocket.Upgrader

	mu sync.RWMutex
}

func New(s *session.Session) *Server {
	return &Server{
		session: s,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		s.mu.RLock()
		messages := s.session.Conversation().Len()
		notes := len(s.session.Conversation().Notes())
		s.mu.RUnlock()

		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"messages": messages,
			"notes":    notes,
		})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/turn", s.handleTurn)
		api.GET("/notes", s.handleNotes)
	}

	router.GET("/ws", s.handleWS)

	return router
}

// Run starts the server on the given address and blocks.
func (s *Server) Run(addr string) error {
	log.Printf("[GATEWAY] listening on %s", addr)
	return s.Router().Run(addr)
}

func (s *Server) runTurn(ctx context.Context, message string) (*session.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.RunTurn(ctx, message)
}

func (s *Server) handleTurn(c *gin.Context) {
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	turn, err := s.runTurn(c.Request.Context(), req.Message)
	if err != nil {
		status := http.StatusInternalServerError
		if provider.IsTerminal(err) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, turnResponse(turn))
}

func (s *Server) handleNotes(c *gin.Context) {
	s.mu.RLock()
	notes := s.session.Conversation().Notes()
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Text()
	}
	s.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{"notes": out})
}

// handleWS runs one turn per inbound text frame and replies with a
// TurnResponse frame, or {"error": ...} when the turn fails.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[GATEWAY] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[GATEWAY] websocket read failed: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage || len(data) == 0 {
			continue
		}

		turn, err := s.runTurn(c.Request.Context(), string(data))
		if err != nil {
			log.Printf("[GATEWAY] turn failed: %v", err)
			if writeErr := conn.WriteJSON(gin.H{"error": err.Error()}); writeErr != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(turnResponse(turn)); err != nil {
			return
		}
	}
}

func turnResponse(turn *session.Turn) TurnResponse {
	return TurnResponse{
		Response:     turn.Response,
		Grounded:     turn.Grounded,
		RelatedCount: turn.RelatedCount,
		NotesAdded:   turn.NotesAdded,
		Compressed:   turn.Compressed,
	}
}
