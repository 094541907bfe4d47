package main

import (
	_ "embed"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	tokenCookieName    = "arena_token"
	identityCookieName = "arena_id"
)

// Client is one gateway connection, bound to a participant identity for its
// lifetime. A participant may hold several clients at once (tabs); the
// session merges them into one entry.
type Client struct {
	conn      *websocket.Conn
	send      chan any
	identity  string
	name      string
	spectator bool

	closeOnce sync.Once
}

// close shuts the send channel exactly once, from whichever path drops the
// client first. writePump drains buffered messages before tearing down the
// connection.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// resolveIdentity returns the caller's identity and display name. A valid
// HMAC-signed token cookie wins; anything else degrades to an anonymous
// cookie identity rather than failing the connection.
func resolveIdentity(cfg *Config, w http.ResponseWriter, r *http.Request) (string, string) {
	if cfg.jwtSecret != "" {
		if c, err := r.Cookie(tokenCookieName); err == nil && c.Value != "" {
			token, err := jwt.Parse(c.Value, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(cfg.jwtSecret), nil
			})
			if err == nil && token.Valid {
				if claims, ok := token.Claims.(jwt.MapClaims); ok {
					if sub, _ := claims["sub"].(string); sub != "" {
						name, _ := claims["name"].(string)
						if name == "" {
							name = sub
						}
						return sub, name
					}
				}
			} else {
				logf(cfg, "SERVE: Invalid identity token from %s, treating as anonymous: %v", realIP(r), err)
			}
		}
	}

	if c, err := r.Cookie(identityCookieName); err == nil && c.Value != "" {
		return c.Value, anonName(c.Value)
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     identityCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id, anonName(id)
}

func anonName(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return "player-" + id
}

// serveWSForRegistry resolves the session for :matchid and hands the
// upgraded connection to it.
func serveWSForRegistry(cfg *Config, reg *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		matchID := ps.ByName("matchid")
		if matchID == "" {
			http.Error(w, "missing match id", http.StatusBadRequest)
			return
		}

		identity, name := resolveIdentity(cfg, w, r)

		session := reg.resolve(matchID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 8),
			identity: identity,
			name:     name,
		}

		session.register <- client

		go client.writePump()
		client.readPump(session)
	}
}

func (c *Client) readPump(s *Session) {
	defer func() {
		s.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "move":
			s.moves <- moveRequest{client: c, msg: msg}
		case "setReady":
			s.readies <- readyRequest{client: c, msg: msg}
		case "requestHint":
			s.hints <- hintRequest{client: c}
		case "sendMessage":
			s.chats <- chatRequest{client: c, msg: msg}
		case "surrender":
			s.surrenders <- surrenderRequest{client: c}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current match URL so a second
// player can join from a phone.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	matchID := ps.ByName("matchid")
	if matchID == "" {
		http.Error(w, "missing match id", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

//go:embed arena/index.html
var arenaHTML []byte

func getMatchHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(arenaHTML)
	}
}

// redirectNewMatch handles GET /match by generating a fresh match ID and
// redirecting to its page.
func redirectNewMatch(cfg *Config, path string, reg *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		matchID := reg.newMatchID()
		logf(cfg, "MATCH: Created %s/%s", path, matchID)
		http.Redirect(w, r, path+"/"+matchID, http.StatusTemporaryRedirect)
	}
}

// registerArena sets up routes so that:
//   - $path                  → redirects to a new random match
//   - $path/:matchid         → HTML client
//   - $path/:matchid/ws      → WebSocket for that match
//   - $path/:matchid/qr      → PNG QR code for that match URL
func registerArena(cfg *Config, path string, mux *httprouter.Router, reg *Registry) {
	mux.GET(cfg.prefix+path, redirectNewMatch(cfg, cfg.prefix+path, reg))

	mux.GET(cfg.prefix+path+"/:matchid", getMatchHandler(cfg))

	mux.GET(cfg.prefix+path+"/:matchid/ws", serveWSForRegistry(cfg, reg))

	mux.GET(cfg.prefix+path+"/:matchid/qr", qrHandler)
}
