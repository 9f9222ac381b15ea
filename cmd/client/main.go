package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lxzan/gws"
)

const PingInterval = 5 * time.Second

// SearchRequest mirrors the server's websocket message shape.
type SearchRequest struct {
	Query   string `json:"query"`
	Command string `json:"command,omitempty"`
	Preview bool   `json:"preview,omitempty"`
}

type wsHandler struct {
	outputDir  string
	imageCount int64
	responses  chan struct{}
}

func (c *wsHandler) OnOpen(socket *gws.Conn) {
	log.Println("Connected to gosplash")
}

func (c *wsHandler) OnClose(socket *gws.Conn, err error) {
	log.Printf("Socket closed: %v", err)
}

func (c *wsHandler) OnPing(socket *gws.Conn, payload []byte) {}
func (c *wsHandler) OnPong(socket *gws.Conn, payload []byte) {}

func (c *wsHandler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	if message.Opcode == gws.OpcodeBinary {
		count := atomic.AddInt64(&c.imageCount, 1)
		filePath := filepath.Join(c.outputDir, fmt.Sprintf("preview_%d.jpg", count))
		if err := os.WriteFile(filePath, message.Bytes(), 0644); err != nil {
			log.Printf("Failed to save preview: %v", err)
		} else {
			log.Printf("Saved preview as %s", filePath)
		}
		return
	}

	var resp struct {
		Type        string `json:"type"`
		Query       string `json:"query"`
		ID          string `json:"id"`
		URL         string `json:"url"`
		Description string `json:"description"`
		Error       string `json:"error"`
	}
	if err := json.Unmarshal(message.Bytes(), &resp); err != nil {
		log.Printf("Unreadable response: %s", message.Bytes())
		return
	}

	switch resp.Type {
	case "image":
		log.Printf("[%s] %s %s (%s)", resp.Query, resp.ID, resp.URL, resp.Description)
		c.responses <- struct{}{}
	case "fresh":
		log.Printf("[%s] history cleared", resp.Query)
		c.responses <- struct{}{}
	case "error":
		log.Printf("[%s] error: %s", resp.Query, resp.Error)
		c.responses <- struct{}{}
	default:
		log.Printf("Received message: %s", message.Bytes())
	}
}

func main() {
	addr := flag.String("addr", "ws://localhost:8080/search", "Server websocket address.")
	clientName := flag.String("client-name", "dev", "The client name for authentication.")
	password := flag.String("password", "", "The password for authentication.")
	count := flag.Int("count", 1, "How many images to request per query.")
	fresh := flag.Bool("fresh", false, "Clear the query's history before requesting.")
	outputDir := flag.String("output", "", "Save preview thumbnails to this directory.")
	flag.Parse()

	queries := flag.Args()
	if len(queries) == 0 {
		log.Fatal("Usage: client [flags] query [query...]")
	}

	if *outputDir != "" {
		if err := os.MkdirAll(*outputDir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}

	headers := http.Header{}
	headers.Set("X-Client-Name", *clientName)
	headers.Set("X-Password", *password)

	handler := &wsHandler{
		outputDir: *outputDir,
		responses: make(chan struct{}, 64),
	}
	socket, _, err := gws.NewClient(handler, &gws.ClientOption{
		Addr:          *addr,
		RequestHeader: headers,
	})
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	go socket.ReadLoop()

	go func() {
		ticker := time.NewTicker(PingInterval)
		defer ticker.Stop()
		for range ticker.C {
			if err := socket.WritePing(nil); err != nil {
				return
			}
		}
	}()

	send := func(req SearchRequest) {
		data, _ := json.Marshal(req)
		if err := socket.WriteMessage(gws.OpcodeText, data); err != nil {
			log.Fatalf("Failed to send request: %v", err)
		}
		select {
		case <-handler.responses:
		case <-time.After(90 * time.Second):
			log.Fatalf("Timed out waiting for a response to %q", req.Query)
		}
	}

	for _, query := range queries {
		query = strings.TrimSpace(query)
		if *fresh {
			send(SearchRequest{Query: query, Command: "fresh"})
		}
		for i := 0; i < *count; i++ {
			send(SearchRequest{Query: query, Preview: *outputDir != ""})
		}
	}
}
