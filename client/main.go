package main

import (
	"bufio"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Event string          `json:"event"`
	Seq   int64           `json:"seq,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

var seq int64

// send formats and sends a request envelope to the server.
func send(c *websocket.Conn, event string, data any) error {
	seq++
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.WriteJSON(envelope{Event: event, Seq: seq, Data: payload})
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: "localhost:8080", Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			var env envelope
			if err := c.ReadJSON(&env); err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- RECV %s: %s", env.Event, string(env.Data))
		}
	}()

	log.Println("Commands: create <room> | join <room> [name] | leave | roles <n...> | start | op <n> [params...] | rooms | info | quit")

	// Write loop
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			fields := strings.Fields(strings.TrimSpace(text))
			if len(fields) == 0 {
				continue
			}

			var err error
			switch fields[0] {
			case "create":
				if len(fields) < 2 {
					log.Println("Usage: create <room>")
					continue
				}
				err = send(c, "create_room", map[string]string{"room": fields[1]})
			case "join":
				if len(fields) < 2 {
					log.Println("Usage: join <room> [name]")
					continue
				}
				req := map[string]any{"room": fields[1]}
				if len(fields) > 2 {
					req["username"] = fields[2]
				}
				err = send(c, "join_room", req)
			case "leave":
				err = send(c, "leave_room", map[string]any{})
			case "roles":
				roleNumbers := []int{}
				for _, field := range fields[1:] {
					n, convErr := strconv.Atoi(field)
					if convErr != nil {
						log.Println("Roles must be numbers")
						continue
					}
					roleNumbers = append(roleNumbers, n)
				}
				err = send(c, "set_roles", map[string]any{"roles": roleNumbers})
			case "start":
				err = send(c, "start_game", map[string]any{})
			case "op":
				if len(fields) < 2 {
					log.Println("Usage: op <n> [params...]")
					continue
				}
				opNo, convErr := strconv.Atoi(fields[1])
				if convErr != nil {
					log.Println("Operator number must be a number")
					continue
				}
				params := []any{}
				for _, field := range fields[2:] {
					if n, numErr := strconv.ParseFloat(field, 64); numErr == nil {
						params = append(params, n)
					} else {
						params = append(params, field)
					}
				}
				req := map[string]any{"op_no": opNo}
				if len(params) > 0 {
					req["params"] = params
				}
				err = send(c, "operator_chosen", req)
			case "rooms":
				err = send(c, "list_rooms", map[string]any{})
			case "info":
				err = send(c, "info", map[string]any{})
			case "quit":
				return
			default:
				log.Printf("Unknown command %q", fields[0])
				continue
			}

			if err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
