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
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCommunication is returned when a message cannot be delivered or
// received. Communication failures are fatal for the process group.
var ErrCommunication = errors.New("distribute: communication failure")

// Communicator provides point-to-point messaging between the processes of
// a process group.
//
// Send delivers a copy of data to the mailbox of the destination process and
// returns once it has been queued there; it does not wait for the
// destination to call Receive. Receive blocks until a message with the given
// source and tag arrives. Messages with the same source and tag are received
// in the order they were sent.
type Communicator interface {
	Rank() int
	Size() int
	Send(data []float64, destination, tag int) error
	Receive(source, tag int) ([]float64, error)
}

// envelope addresses a message within a mailbox.
type envelope struct {
	source, tag int
}

// boxDepth is the number of undelivered messages a mailbox can hold for one
// envelope before senders block.
const boxDepth = 64

// mailbox holds the messages that have been sent to one process but not
// received yet.
type mailbox struct {
	mu    sync.Mutex
	boxes map[envelope]chan []float64

	done chan struct{}
	once sync.Once
}

func newMailbox() *mailbox {
	return &mailbox{
		boxes: make(map[envelope]chan []float64),
		done:  make(chan struct{}),
	}
}

// close makes pending and future calls to collect fail. Messages
// delivered afterwards are dropped.
func (m *mailbox) close() {
	m.once.Do(func() { close(m.done) })
}

func (m *mailbox) closedError(source, tag int) error {
	return fmt.Errorf("%w: mailbox closed while waiting for rank %d with tag %d",
		ErrCommunication, source, tag)
}

func (m *mailbox) box(e envelope) chan []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boxes[e]
	if !ok {
		b = make(chan []float64, boxDepth)
		m.boxes[e] = b
	}
	return b
}

func (m *mailbox) deliver(source, tag int, data []float64) {
	select {
	case m.box(envelope{source: source, tag: tag}) <- data:
	case <-m.done:
	}
}

// collect waits for a message from source with the given tag. A timeout
// of zero waits forever.
func (m *mailbox) collect(source, tag int, timeout time.Duration) ([]float64, error) {
	b := m.box(envelope{source: source, tag: tag})
	if timeout <= 0 {
		select {
		case data := <-b:
			return data, nil
		case <-m.done:
			return nil, m.closedError(source, tag)
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case data := <-b:
		return data, nil
	case <-m.done:
		return nil, m.closedError(source, tag)
	case <-t.C:
		return nil, fmt.Errorf("%w: no message from rank %d with tag %d after %v",
			ErrCommunication, source, tag, timeout)
	}
}

func checkRank(rank, size int) error {
	if rank < 0 || rank >= size {
		return fmt.Errorf("%w: rank %d outside of process group of size %d",
			ErrCommunication, rank, size)
	}
	return nil
}
