package hub

import (
	"bufio"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// writePump drains the connection's send channel, batching queued frames
// into a single flush to cut syscalls, and keeps the peer alive with
// periodic pings. Exits when done is closed or a write fails.
func (h *Hub) writePump(c *Connection) {
	defer h.wg.Done()

	writer := bufio.NewWriter(c.conn)
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.markClosed()
	}()

	for {
		select {
		case <-c.done:
			wsutil.WriteServerMessage(c.conn, ws.OpClose, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := wsutil.WriteServerMessage(writer, ws.OpText, message); err != nil {
				h.logger.Debug().Err(err).Int64("conn_id", c.id).Msg("Failed to write frame")
				h.Deregister(c, ReasonWriteError)
				return
			}

			// Batch whatever else is already queued.
			n := len(c.send)
			for i := 0; i < n; i++ {
				message = <-c.send
				if err := wsutil.WriteServerMessage(writer, ws.OpText, message); err != nil {
					h.logger.Debug().Err(err).Int64("conn_id", c.id).Msg("Failed to write frame")
					h.Deregister(c, ReasonWriteError)
					return
				}
			}

			if err := writer.Flush(); err != nil {
				h.logger.Debug().Err(err).Int64("conn_id", c.id).Msg("Failed to flush writer")
				h.Deregister(c, ReasonWriteError)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsutil.WriteServerMessage(c.conn, ws.OpPing, nil); err != nil {
				h.logger.Debug().Err(err).Int64("conn_id", c.id).Msg("Failed to send ping")
				h.Deregister(c, ReasonWriteError)
				return
			}
		}
	}
}
