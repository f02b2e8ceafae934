package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches a connection to topic and blocks until it closes.
func ServeWs(hub *Hub, c *websocket.Conn, topic string) {
	client := &Client{Hub: hub, Conn: c, Topic: topic, Send: make(chan []byte, 64)}
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}
