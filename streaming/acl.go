/* Copyright (c) 2016-2026 Gregor Riepl
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package streaming

import (
	"fmt"
	"sync"

	"github.com/onitake/videoshelf/util"
)

// AccessController implements a connection broker that limits
// the maximum number of concurrent video transfers.
type AccessController struct {
	// maxconnections is a global limit on the number of connections.
	maxconnections uint
	// lock to protect the connection counter
	lock sync.Mutex
	// connections contains the number of active connections.
	connections uint
	// logger is the kv logger for this controller
	logger util.Logger
}

// NewAccessController creates a connection broker object that
// handles access control according to the number of connected clients.
// A limit of 0 disables the check.
func NewAccessController(maxconnections uint) *AccessController {
	return &AccessController{
		maxconnections: maxconnections,
		logger:         logger,
	}
}

// SetLogger assigns a logger
func (control *AccessController) SetLogger(logger util.Logger) {
	control.logger = logger
}

// Connections returns the number of currently accepted connections.
func (control *AccessController) Connections() uint {
	control.lock.Lock()
	defer control.lock.Unlock()
	return control.connections
}

// Accept accepts an incoming connection when the maximum number of open connections
// has not been reached yet.
func (control *AccessController) Accept(remoteaddr string) bool {
	accept := false
	control.lock.Lock()
	// check if the limit is disabled or unreached
	if control.maxconnections == 0 || control.connections < control.maxconnections {
		control.connections++
		accept = true
	}
	connections := control.connections
	control.lock.Unlock()
	if accept {
		control.logger.Logkv(
			"event", eventAclAccepted,
			"remote", remoteaddr,
			"connections", connections,
			"max", control.maxconnections,
			"message", fmt.Sprintf("Accepted connection from %s, active=%d, max=%d", remoteaddr, connections, control.maxconnections),
		)
	} else {
		control.logger.Logkv(
			"event", eventAclDenied,
			"remote", remoteaddr,
			"connections", connections,
			"max", control.maxconnections,
			"message", fmt.Sprintf("Denied connection from %s, active=%d, max=%d", remoteaddr, connections, control.maxconnections),
		)
	}
	return accept
}

// Release decrements the open connections count.
func (control *AccessController) Release() {
	remove := false
	control.lock.Lock()
	if control.connections > 0 {
		control.connections--
		remove = true
	}
	connections := control.connections
	control.lock.Unlock()
	if remove {
		control.logger.Logkv(
			"event", eventAclRemoved,
			"connections", connections,
			"max", control.maxconnections,
			"message", fmt.Sprintf("Removed connection, active=%d, max=%d", connections, control.maxconnections),
		)
	} else {
		control.logger.Logkv(
			"event", eventAclError,
			"error", errorAclNoConnection,
			"message", "Error, no connection to remove",
		)
	}
}
