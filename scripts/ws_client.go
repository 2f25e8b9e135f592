// Package main listens on /v1/ws/routes, optionally triggers a planning run, and prints events.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func main() {
	date := flag.String("optimize", "", "POST /v1/optimize for this date after connecting")
	wait := flag.Duration("wait", 30*time.Second, "how long to listen")
	flag.Parse()

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/ws/routes"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("dial %s: %v", u.String(), err)
	}
	defer func() { _ = conn.Close() }()

	if *date != "" {
		body := []byte(fmt.Sprintf(`{"date":%q}`, *date))
		resp, err := http.Post("http://localhost:"+port+"/v1/optimize", "application/json", bytes.NewReader(body))
		if err != nil {
			log.Fatal(err)
		}
		_ = resp.Body.Close()
		log.Printf("optimize %s: %s", *date, resp.Status)
	}

	_ = conn.SetReadDeadline(time.Now().Add(*wait))
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("done: %v", err)
			return
		}
		log.Printf("%s %v", msg.Type, msg.Data)
	}
}
