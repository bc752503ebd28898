// SPDX-License-Identifier: EPL-2.0

package session

import "errors"

var ErrUnknownRequest = errors.New("unknown request")
