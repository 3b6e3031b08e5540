package websocket

import (
	"github.com/labstack/echo/v4"
)

// Handler upgrades "/ws" requests. Auth middleware has already stored the
// JWT claims on the echo context.
func (s *Server) Handler(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	userID := c.Get("user_id").(int)
	deviceID := c.Get("device_id").(string)

	client := NewClient(conn, userID, deviceID, s.HandleText)
	s.hub.Register(client)

	client.Run()

	defer s.hub.Unregister(client)

	// Hold the handler open until the connection closes.
	<-client.Context().Done()

	return nil
}
