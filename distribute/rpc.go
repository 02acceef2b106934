/*
Copyright © 2019 the InMAP authors.
This file is part of oceancore.

oceancore is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

oceancore is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with oceancore.  If not, see <http://www.gnu.org/licenses/>.
*/

package distribute

import (
	"fmt"
	"net"
	"net/rpc"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// Letter is a message passed between processes over RPC.
type Letter struct {
	Source, Tag int
	Data        []float64
}

// Receipt acknowledges the delivery of a Letter.
type Receipt struct {
	Queued int
}

// Mailbox receives letters from other processes. It should not be
// interacted with directly, but it is exported to meet RPC requirements.
type Mailbox struct {
	box *mailbox
}

// Deliver queues a letter for the local process. It meets the requirements
// for use with rpc.Call.
func (m *Mailbox) Deliver(l *Letter, r *Receipt) error {
	m.box.deliver(l.Source, l.Tag, l.Data)
	r.Queued = len(l.Data)
	return nil
}

// RPCNetwork is a Communicator for processes that run in separate
// programs, possibly on separate machines. Each process listens for
// letters from its peers and delivers its own letters by calling the
// peers' Mailbox.Deliver service.
type RPCNetwork struct {
	rank     int
	peers    []string
	listener net.Listener
	box      *mailbox

	mu      sync.Mutex
	clients map[int]*rpc.Client

	// Timeout specifies how long Receive waits for a message before
	// failing. The default of zero waits forever.
	Timeout time.Duration

	// StartupTime specifies how long to keep retrying to connect to a peer
	// that has not started listening yet. The default is 3 minutes.
	StartupTime time.Duration

	// Log receives connection messages.
	Log logrus.FieldLogger
}

// ListenRPC starts listening for letters to the process with the given
// rank at addr (for example ":6060" or "127.0.0.1:0").
// SetPeers must be called before any letters are sent.
func ListenRPC(rank int, addr string) (*RPCNetwork, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: rank %d listening on %s: %v", ErrCommunication, rank, addr, err)
	}
	n := &RPCNetwork{
		rank:        rank,
		listener:    l,
		box:         newMailbox(),
		clients:     make(map[int]*rpc.Client),
		StartupTime: 3 * time.Minute,
		Log:         logrus.StandardLogger(),
	}
	srv := rpc.NewServer()
	if err := srv.RegisterName("Mailbox", &Mailbox{box: n.box}); err != nil {
		l.Close()
		return nil, err
	}
	go srv.Accept(l)
	return n, nil
}

// Addr returns the address the process is listening on.
func (n *RPCNetwork) Addr() string { return n.listener.Addr().String() }

// SetPeers sets the addresses of all of the processes in the group,
// indexed by rank.
func (n *RPCNetwork) SetPeers(peers []string) error {
	if err := checkRank(n.rank, len(peers)); err != nil {
		return err
	}
	n.peers = peers
	return nil
}

// Rank returns the rank of this process.
func (n *RPCNetwork) Rank() int { return n.rank }

// Size returns the number of processes in the group.
func (n *RPCNetwork) Size() int { return len(n.peers) }

// Send delivers data to the destination process. Letters to this process
// are queued directly.
func (n *RPCNetwork) Send(data []float64, destination, tag int) error {
	if err := checkRank(destination, n.Size()); err != nil {
		return err
	}
	if destination == n.rank {
		msg := make([]float64, len(data))
		copy(msg, data)
		n.box.deliver(n.rank, tag, msg)
		return nil
	}
	client, err := n.client(destination)
	if err != nil {
		return err
	}
	var r Receipt
	if err := client.Call("Mailbox.Deliver", &Letter{Source: n.rank, Tag: tag, Data: data}, &r); err != nil {
		return fmt.Errorf("%w: sending to rank %d: %v", ErrCommunication, destination, err)
	}
	return nil
}

// Receive waits for a letter from source with the given tag.
func (n *RPCNetwork) Receive(source, tag int) ([]float64, error) {
	if err := checkRank(source, n.Size()); err != nil {
		return nil, err
	}
	return n.box.collect(source, tag, n.Timeout)
}

// client returns a connection to the given peer, dialing it if necessary.
// Peers may still be starting up, so dialing is retried with exponential
// backoff for up to StartupTime.
func (n *RPCNetwork) client(rank int) (*rpc.Client, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if c, ok := n.clients[rank]; ok {
		return c, nil
	}
	addr := n.peers[rank]
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = n.StartupTime
	var c *rpc.Client
	err := backoff.RetryNotify(
		func() error {
			var err error
			c, err = rpc.Dial("tcp", addr)
			return err
		},
		b,
		func(err error, d time.Duration) {
			n.Log.WithFields(logrus.Fields{
				"rank": n.rank,
				"peer": rank,
				"addr": addr,
			}).Infof("%v: retrying in %v", err, d)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing rank %d at %s: %v", ErrCommunication, rank, addr, err)
	}
	n.clients[rank] = c
	return c, nil
}

// Close stops listening, closes all connections to peers and fails any
// Receive that is still waiting.
func (n *RPCNetwork) Close() error {
	n.box.close()
	n.mu.Lock()
	defer n.mu.Unlock()
	for r, c := range n.clients {
		c.Close()
		delete(n.clients, r)
	}
	return n.listener.Close()
}
