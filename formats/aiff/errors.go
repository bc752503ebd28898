// SPDX-License-Identifier: EPL-2.0

package aiff

import "errors"

// ErrNotAiffFile indicates the source is not a valid AIFF file
var ErrNotAiffFile = errors.New("not an AIFF file")
