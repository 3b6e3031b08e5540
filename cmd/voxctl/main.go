// voxctl is an interactive console client: it authenticates, connects to the
// device WebSocket, sends typed lines as chat turns, and prints the replies.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const (
	defaultServer = "localhost:8080"
)

type tokenResponse struct {
	Token string `json:"token"`
	Type  string `json:"type"`
}

type serverEnvelope struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Error string `json:"error"`
}

func main() {
	server := os.Getenv("VOXLOOP_SERVER")
	if server == "" {
		server = defaultServer
	}

	token, err := fetchToken(server)
	if err != nil {
		log.Fatalf("Failed to get token: %v", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+server+"/ws", header)
	if err != nil {
		log.Fatalf("Failed to connect to server: %v", err)
	}
	defer conn.Close()

	// Print incoming envelopes in a separate goroutine
	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Println("Error reading message:", err)
				return
			}

			var envelope serverEnvelope
			if err := sonic.Unmarshal(message, &envelope); err != nil {
				fmt.Printf("Received: %s\n", message)
				continue
			}

			switch envelope.Type {
			case "reply":
				fmt.Printf("assistant> %s\n", envelope.Text)
			case "error":
				fmt.Printf("error> %s\n", envelope.Error)
			case "speech":
				fmt.Println("(speech audio received)")
			}
		}
	}()

	// Shut down gracefully on interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down...")
		conn.Close()
		os.Exit(0)
	}()

	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Type a message and press enter (type 'exit' to quit):")
	for {
		fmt.Print("> ")
		text, _ := reader.ReadString('\n')
		text = strings.TrimSpace(text)
		if text == "exit" {
			break
		}
		if text == "" {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			log.Println("Error sending message:", err)
			break
		}
	}
}

func fetchToken(server string) (string, error) {
	req, err := http.NewRequest(http.MethodPost, "http://"+server+"/api/v1/auth/token", bytes.NewReader(nil))
	if err != nil {
		return "", err
	}
	req.Header.Set("X-API-Key", os.Getenv("VOXLOOP_API_KEY"))
	req.Header.Set("X-API-Secret", os.Getenv("VOXLOOP_API_SECRET"))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", err
	}

	return tr.Token, nil
}
