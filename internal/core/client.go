package core

import (
	"sync"

	"github.com/dkeye/relay/internal/domain"
)

// Client is one participant's open channel plus its session membership.
// The session pointer is a back-reference only, the Registry owns sessions.
type Client struct {
	id   domain.ClientID
	conn SignalConnection

	session  *Session
	owner    bool
	departed bool

	closeOnce sync.Once
}

func NewClient(id domain.ClientID, conn SignalConnection) *Client {
	return &Client{id: id, conn: conn}
}

func (c *Client) ID() domain.ClientID { return c.id }
func (c *Client) Session() *Session   { return c.session }
func (c *Client) IsOwner() bool       { return c.owner }
func (c *Client) IsAttached() bool    { return c.session != nil }
func (c *Client) Departed() bool      { return c.departed }

// Send encodes the envelope and hands it to the transport without waiting.
func (c *Client) Send(k Kind, data any) error {
	f, err := EncodeEnvelope(k, data)
	if err != nil {
		return err
	}
	return c.conn.TrySend(f)
}

func (c *Client) Close() {
	c.closeOnce.Do(c.conn.Close)
}

// Depart marks the client as gone. Only the first call returns true.
func (c *Client) Depart() bool {
	if c.departed {
		return false
	}
	c.departed = true
	return true
}

func (c *Client) attach(s *Session, owner bool) {
	c.session = s
	c.owner = owner
}

func (c *Client) detach() {
	c.session = nil
	c.owner = false
}
