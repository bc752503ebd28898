// SPDX-License-Identifier: EPL-2.0

package session

import "github.com/samber/lo"

// queue holds the requests waiting for the actor. No-delay requests
// only wait here when their reply could not be sent at once; they are
// served before everything else and never displaced.
type queue struct {
	pings []Request
	items []Request
}

// admit places req according to its class and reports how many pending
// requests it displaced.
func (q *queue) admit(req Request) int {
	switch req.Class() {
	case ClassObsoleting:
		dropped := len(q.items)
		clear(q.items)
		q.items = append(q.items[:0], req)
		return dropped

	case ClassPriority:
		before := len(q.items)
		q.items = lo.Filter(q.items, func(r Request, _ int) bool {
			_, ok := r.(LoadReplacement)
			return !ok
		})
		dropped := before - len(q.items)
		q.items = append([]Request{req}, q.items...)
		return dropped

	case ClassNoDelay:
		q.pings = append(q.pings, req)
		return 0

	default:
		q.items = append(q.items, req)
		return 0
	}
}

func (q *queue) pop() (Request, bool) {
	if len(q.pings) > 0 {
		req := q.pings[0]
		q.pings[0] = nil
		q.pings = q.pings[1:]
		return req, true
	}
	if len(q.items) == 0 {
		return nil, false
	}
	req := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return req, true
}

// dropFills removes pending FillBuffers requests and returns their number.
func (q *queue) dropFills() int {
	fills := lo.CountBy(q.items, func(r Request) bool {
		_, ok := r.(FillBuffers)
		return ok
	})
	if fills == 0 {
		return 0
	}
	q.items = lo.Reject(q.items, func(r Request, _ int) bool {
		_, ok := r.(FillBuffers)
		return ok
	})
	return fills
}

func (q *queue) len() int { return len(q.pings) + len(q.items) }

func (q *queue) pingsPending() bool { return len(q.pings) > 0 }

func (q *queue) reset() {
	clear(q.pings)
	clear(q.items)
	q.pings, q.items = nil, nil
}
