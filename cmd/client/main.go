// cmd/client is a terminal client that follows a match and ends the player's Main phase on Enter.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/turnsync/internal/mirror"
	"github.com/jason-s-yu/turnsync/internal/protocol"
	_ "github.com/joho/godotenv/autoload"
	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
)

func main() {
	serverFlag := flag.String("server", envOr("TURNSYNC_SERVER", "http://localhost:8080"), "server base URL")
	matchFlag := flag.String("match", "", "match id to join")
	tokenFlag := flag.String("token", os.Getenv("TURNSYNC_TOKEN"), "player token; requested from /auth/token when empty")
	flag.Parse()

	matchID, err := uuid.Parse(*matchFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "usage: %s -match <uuid> [-server URL] [-token TOKEN]\n", os.Args[0])
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token := *tokenFlag
	if token == "" {
		spinner, _ := pterm.DefaultSpinner.Start("Requesting a dev token ...")
		token, err = requestToken(ctx, *serverFlag)
		if err != nil {
			spinner.Fail(err.Error())
			os.Exit(1)
		}
		spinner.Success()
	}
	self, err := subjectOf(token)
	if err != nil {
		pterm.Error.Printfln("Unreadable token: %v", err)
		os.Exit(1)
	}
	pterm.Info.Printfln("Playing as %s", self)

	wsURL := "ws" + strings.TrimPrefix(*serverFlag, "http") + "/match/ws/" + matchID.String()
	c, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{"game"},
		HTTPHeader:   http.Header{"Authorization": {"Bearer " + token}},
	})
	if err != nil {
		pterm.Error.Printfln("Could not connect: %v", err)
		os.Exit(1)
	}
	defer c.Close(websocket.StatusNormalClosure, "bye")

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	m := mirror.New(logger.WithField("match", matchID))

	redraw := make(chan struct{}, 1)
	m.OnPhaseEntered(func(protocol.PhaseSnapshot) {
		select {
		case redraw <- struct{}{}:
		default:
		}
	})

	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := c.Read(ctx)
			if err != nil {
				readErr <- err
				return
			}
			if msg, err := protocol.Decode(data); err == nil && msg.Type == protocol.TypeError {
				logger.Warnf("server: %s", msg.Error)
				continue
			}
			m.HandleRaw(data)
			select {
			case redraw <- struct{}{}:
			default:
			}
		}
	}()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if strings.TrimSpace(scanner.Text()) == "q" {
				stop()
				return
			}
			data, err := protocol.Encode(protocol.PlayerDone())
			if err != nil {
				logger.Warnf("encode player_done: %v", err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := c.Write(writeCtx, websocket.MessageText, data); err != nil {
				logger.Warnf("send player_done: %v", err)
			}
			cancel()
		}
	}()

	area, err := pterm.DefaultArea.Start()
	if err != nil {
		logger.Fatalf("start terminal area: %v", err)
	}
	defer area.Stop()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-readErr:
			area.Stop()
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				pterm.Info.Println("Match closed.")
				return
			}
			pterm.Error.Printfln("Connection lost: %v", err)
			return
		case <-redraw:
			render(area, m, self, time.Now())
		case <-ticker.C:
			render(area, m, self, time.Now())
		}
	}
}

// requestToken asks the server's dev endpoint for a fresh player token.
func requestToken(ctx context.Context, server string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/auth/token", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: %s", resp.Status)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// subjectOf reads the player id from a token. The server verifies the signature.
func subjectOf(token string) (uuid.UUID, error) {
	t, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return uuid.Nil, err
	}
	sub, err := t.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(sub)
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
