package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-temitour/pkg/hub"
	"github.com/teslashibe/go-temitour/pkg/journal"
)

// handleStatus returns the tour's current state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// handleDisplay returns the current display signals
func (s *Server) handleDisplay(c *fiber.Ctx) error {
	if s.src.Display == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "display not configured",
		})
	}
	return c.JSON(s.src.Display.Signals())
}

// handleRuns lists recent journal runs. ?limit=N caps the list.
func (s *Server) handleRuns(c *fiber.Ctx) error {
	if s.src.Runs == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "journal not configured",
		})
	}
	runs, err := s.src.Runs.RecentRuns(c.UserContext(), c.QueryInt("limit", 20))
	if err != nil {
		s.log.Warn("list runs", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if runs == nil {
		runs = []journal.Run{}
	}
	return c.JSON(runs)
}

// handleHealth reports liveness and whether the robot link is up
func (s *Server) handleHealth(c *fiber.Ctx) error {
	connected := s.src.Bridge == nil || s.src.Bridge.Connected()
	status := fiber.StatusOK
	if !connected {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"ok":               connected,
		"bridge_connected": connected,
	})
}

// handleStatusWS streams status frames
func (s *Server) handleStatusWS(c *websocket.Conn) {
	if err := c.WriteJSON(s.Status()); err != nil {
		return
	}
	s.serve(s.statusHub, c)
}

// handleDisplayWS streams display signal changes. The hub replays the
// last change on connect.
func (s *Server) handleDisplayWS(c *websocket.Conn) {
	if s.src.Display != nil {
		if err := c.WriteJSON(s.src.Display.Signals()); err != nil {
			return
		}
	}
	s.serve(s.displayHub, c)
}

func (s *Server) serve(h *hub.Hub, c *websocket.Conn) {
	client := hub.NewClient(h, c)
	if client == nil {
		return
	}
	client.Run()
}
