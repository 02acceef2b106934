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

import "time"

// LocalNetwork connects a group of processes that run as goroutines
// within the same program.
type LocalNetwork struct {
	boxes []*mailbox

	// Timeout specifies how long Receive waits for a message before
	// failing. The default of zero waits forever.
	Timeout time.Duration
}

// NewLocalNetwork creates a network for a process group of the given size.
func NewLocalNetwork(size int) *LocalNetwork {
	n := &LocalNetwork{boxes: make([]*mailbox, size)}
	for i := range n.boxes {
		n.boxes[i] = newMailbox()
	}
	return n
}

// Close releases every process blocked in Receive with an error wrapping
// ErrCommunication. It is used to stop the group when one of its processes
// fails. The network cannot be used after Close.
func (n *LocalNetwork) Close() {
	for _, b := range n.boxes {
		b.close()
	}
}

// Comm returns the Communicator for the process with the given rank.
func (n *LocalNetwork) Comm(rank int) Communicator {
	return &localComm{net: n, rank: rank}
}

type localComm struct {
	net  *LocalNetwork
	rank int
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return len(c.net.boxes) }

func (c *localComm) Send(data []float64, destination, tag int) error {
	if err := checkRank(destination, c.Size()); err != nil {
		return err
	}
	msg := make([]float64, len(data))
	copy(msg, data)
	c.net.boxes[destination].deliver(c.rank, tag, msg)
	return nil
}

func (c *localComm) Receive(source, tag int) ([]float64, error) {
	if err := checkRank(source, c.Size()); err != nil {
		return nil, err
	}
	return c.net.boxes[c.rank].collect(source, tag, c.net.Timeout)
}
