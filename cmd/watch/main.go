// Command watch follows the stream of a live match and prints every commit.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/reversi-cards/reversi-server-go/internal/match"
	"github.com/reversi-cards/reversi-server-go/internal/server"
)

var addr = flag.String("addr", "ws://localhost:8080", "server HTTP address")

type frame struct {
	Type    string          `json:"type"`
	MatchID string          `json:"matchId"`
	Data    json.RawMessage `json:"data"`
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-addr ws://host:port] <match-id>\n", os.Args[0])
		os.Exit(2)
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	url := strings.TrimSuffix(*addr, "/") + "/matches/" + flag.Arg(0) + "/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		if resp != nil {
			logger.Fatal("stream refused", zap.String("url", url), zap.Int("status", resp.StatusCode))
		}
		logger.Fatal("failed to connect", zap.String("url", url), zap.Error(err))
	}
	defer conn.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	last := -1
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			logger.Info("stream closed", zap.Error(err))
			return
		}
		switch f.Type {
		case server.MessageSnapshot:
			var snap match.Snapshot
			if err := json.Unmarshal(f.Data, &snap); err != nil {
				logger.Error("bad snapshot frame", zap.Error(err))
				continue
			}
			last = snap.TurnIndex
			printSnapshot(snap)
		case server.MessageUpdate:
			var u match.Update
			if err := json.Unmarshal(f.Data, &u); err != nil {
				logger.Error("bad update frame", zap.Error(err))
				continue
			}
			if last >= 0 && u.TurnIndex != last+1 {
				logger.Warn("missed commits", zap.Int("have", last), zap.Int("got", u.TurnIndex))
			}
			last = u.TurnIndex
			printUpdate(u)
			if u.Finished {
				return
			}
		default:
			logger.Warn("unknown frame", zap.String("type", f.Type))
		}
	}
}

func printSnapshot(s match.Snapshot) {
	fmt.Printf("match %s  turn %d  %s to move  black %d  white %d\n",
		s.ID, s.TurnIndex, s.CurrentPlayer, s.Score.Black, s.Score.White)
	for _, row := range s.Board {
		fmt.Println("  " + row)
	}
}

func printUpdate(u match.Update) {
	types := make([]string, 0, len(u.Events))
	for _, e := range u.Events {
		types = append(types, string(e.Type))
	}
	fmt.Printf("turn %d  %s  %s\n", u.TurnIndex, u.Checksum[:12], strings.Join(types, " "))
	if u.Finished {
		fmt.Println("match finished")
	}
}
