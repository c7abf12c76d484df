// internal/gamenet/ws_client.go
package gamenet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	log "github.com/sirupsen/logrus"
)

// ErrNotConnected is returned for any command issued before Connect.
var ErrNotConnected = errors.New("gamenet: not connected")

// frame is the wire envelope the gateway speaks. Type discriminates;
// the remaining fields are populated per type.
type frame struct {
	Type     string          `json:"type"`
	Account  string          `json:"account,omitempty"`
	Token    string          `json:"token,omitempty"`
	Target   string          `json:"target,omitempty"`
	Config   *LobbyConfig    `json:"config,omitempty"`
	Name     string          `json:"name,omitempty"`
	Password string          `json:"password,omitempty"`
	MatchID  string          `json:"matchId,omitempty"`
	Roster   *RosterSnapshot `json:"roster,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// WSClient implements Client over a websocket gateway. One WSClient
// serves one bot account for the life of the connection.
type WSClient struct {
	GatewayURL string
	Account    string
	Token      string

	mu        sync.Mutex
	conn      *websocket.Conn
	snapshots chan RosterSnapshot

	// acks routes reply frames back to the in-flight request. The
	// gateway answers strictly in order, one reply per request frame.
	acks chan frame

	readCancel context.CancelFunc
}

// NewWSClient builds an unconnected client for one bot account.
func NewWSClient(gatewayURL, account, token string) *WSClient {
	return &WSClient{
		GatewayURL: gatewayURL,
		Account:    account,
		Token:      token,
	}
}

// Connect dials the gateway and starts the read pump.
func (c *WSClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, _, err := websocket.Dial(ctx, c.GatewayURL, &websocket.DialOptions{
		Subprotocols: []string{"gamenet"},
	})
	if err != nil {
		return fmt.Errorf("gamenet: dial %s: %w", c.GatewayURL, err)
	}
	c.conn = conn
	c.snapshots = make(chan RosterSnapshot, 16)
	c.acks = make(chan frame, 4)

	readCtx, cancel := context.WithCancel(context.Background())
	c.readCancel = cancel
	go c.readPump(readCtx, conn, c.snapshots, c.acks)
	return nil
}

// readPump fans incoming frames out to the snapshot stream or the ack
// channel until the connection dies. The channels arrive as parameters
// so a pump outliving a Close/Connect cycle only ever touches the
// generation it was started with.
func (c *WSClient) readPump(ctx context.Context, conn *websocket.Conn, snapshots chan RosterSnapshot, acks chan frame) {
	defer close(snapshots)
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			log.Debugf("gamenet: read pump for %s stopped: %v", c.Account, err)
			return
		}
		switch f.Type {
		case "roster_update":
			if f.Roster == nil {
				continue
			}
			select {
			case snapshots <- *f.Roster:
			default:
				log.Warnf("gamenet: snapshot buffer full for %s, dropping update", c.Account)
			}
		default:
			select {
			case acks <- f:
			default:
				log.Warnf("gamenet: unexpected reply frame %q for %s", f.Type, c.Account)
			}
		}
	}
}

// roundTrip writes a frame and waits for the gateway's reply.
func (c *WSClient) roundTrip(ctx context.Context, out frame) (frame, error) {
	c.mu.Lock()
	conn := c.conn
	acks := c.acks
	c.mu.Unlock()
	if conn == nil {
		return frame{}, ErrNotConnected
	}
	if err := wsjson.Write(ctx, conn, out); err != nil {
		return frame{}, fmt.Errorf("gamenet: write %s: %w", out.Type, err)
	}
	select {
	case reply, ok := <-acks:
		if !ok {
			return frame{}, ErrNotConnected
		}
		if reply.Error != "" {
			return reply, fmt.Errorf("gamenet: %s rejected: %s", out.Type, reply.Error)
		}
		return reply, nil
	case <-ctx.Done():
		return frame{}, ctx.Err()
	}
}

func (c *WSClient) Authenticate(ctx context.Context) error {
	_, err := c.roundTrip(ctx, frame{Type: "auth", Account: c.Account, Token: c.Token})
	return err
}

func (c *WSClient) WaitReady(ctx context.Context) error {
	_, err := c.roundTrip(ctx, frame{Type: "ready"})
	return err
}

// LaunchLobby creates the named room. Settings beyond name and password
// are applied afterwards via Configure.
func (c *WSClient) LaunchLobby(ctx context.Context, cfg LobbyConfig) error {
	_, err := c.roundTrip(ctx, frame{Type: "launch_lobby", Name: cfg.Name, Password: cfg.Password})
	return err
}

func (c *WSClient) JoinLobby(ctx context.Context, name, password string) error {
	_, err := c.roundTrip(ctx, frame{Type: "join_lobby", Name: name, Password: password})
	return err
}

func (c *WSClient) LeaveLobby(ctx context.Context) error {
	_, err := c.roundTrip(ctx, frame{Type: "leave_lobby"})
	return err
}

func (c *WSClient) Invite(ctx context.Context, participantID string) error {
	_, err := c.roundTrip(ctx, frame{Type: "invite", Target: participantID})
	return err
}

func (c *WSClient) Kick(ctx context.Context, participantID string) error {
	_, err := c.roundTrip(ctx, frame{Type: "kick", Target: participantID})
	return err
}

func (c *WSClient) Configure(ctx context.Context, cfg LobbyConfig) error {
	_, err := c.roundTrip(ctx, frame{Type: "configure", Config: &cfg})
	return err
}

func (c *WSClient) FlipSides(ctx context.Context) error {
	_, err := c.roundTrip(ctx, frame{Type: "flip_sides"})
	return err
}

func (c *WSClient) StartMatch(ctx context.Context) (string, error) {
	launchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	reply, err := c.roundTrip(launchCtx, frame{Type: "start_match"})
	if err != nil {
		return "", err
	}
	return reply.MatchID, nil
}

func (c *WSClient) Snapshots() <-chan RosterSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshots
}

// Close tears down the transport. Safe to call on a never-connected or
// already-closed client.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	if c.readCancel != nil {
		c.readCancel()
	}
	err := c.conn.Close(websocket.StatusNormalClosure, "session closed")
	c.conn = nil
	return err
}
