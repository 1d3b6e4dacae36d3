/* Copyright (c) 2018-2026 Gregor Riepl
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
	"github.com/onitake/videoshelf/util"
)

const (
	moduleStreaming = "streaming"
	//
	eventAclError    = "error"
	eventAclAccepted = "accepted"
	eventAclDenied   = "denied"
	eventAclRemoved  = "removed"
	//
	errorAclNoConnection = "noconnection"
	//
	eventConnectionError  = "error"
	eventHeaderSent       = "headersent"
	eventConnectionClosed = "closed"
	eventConnectionDone   = "done"
	//
	errorConnectionRead  = "read"
	errorConnectionWrite = "write"
	//
	eventServerError    = "error"
	eventServerList     = "list"
	eventServerVideo    = "video"
	eventServerInfo     = "info"
	eventServerNotFound = "notfound"
	eventServerBusy     = "busy"
	//
	errorServerDirectory = "directory"
	errorServerProbe     = "probe"
	errorServerEncode    = "encode"
	errorServerOpen      = "open"
	//
	eventLimitExceeded = "ratelimit"
)

var logger = util.NewGlobalModuleLogger(moduleStreaming, nil)
