// Package router implements the path-segment trie router (spec section
// 4.I), translated directly from cpphttp's server/Router.hpp algorithm
// description: register (method, path-pattern, handler) triples, then
// resolve a request's method and path to a handler plus any path
// parameters captured along the way.
package router

import (
	"strings"

	"github.com/corewire/httpcore/pkg/errors"
	"github.com/corewire/httpcore/pkg/wire"
)

// Handler processes a matched request. It is generic over the response
// type the caller wants back so pkg/router has no dependency on pkg/server.
type Handler interface{}

type node struct {
	literal   map[string]*node
	param     *node
	paramName string
	isPrefix  bool
	handlers  map[wire.Method]Handler
	pattern   string // pattern that first created this node's handler set, for error messages
}

func newNode() *node {
	return &node{literal: make(map[string]*node)}
}

// Router is a trie keyed by percent-decoded path segments.
type Router struct {
	root *node
}

// New returns an empty Router.
func New() *Router {
	return &Router{root: newNode()}
}

func splitSegments(path string) []string {
	raw := strings.Split(path, "/")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s == "" {
			continue
		}
		segments = append(segments, s)
	}
	return segments
}

// Add registers handler for method at pattern (spec section 4.I
// "Registration rules"). Segments are percent-decoded at lookup time, not
// at registration time: a literal segment in pattern is matched verbatim
// against the decoded path segment.
func (r *Router) Add(method wire.Method, pattern string, handler Handler) error {
	segments := splitSegments(pattern)
	cur := r.root

	for i, seg := range segments {
		isLast := i == len(segments)-1

		if seg == "*" {
			if !isLast {
				return errors.NewRouteError(pattern, "prefix segment '*' must be the last segment")
			}
			if len(cur.literal) > 0 || cur.param != nil {
				return errors.NewRouteError(pattern, "cannot register a prefix route beneath a node with existing children")
			}
			cur.isPrefix = true
			break
		}

		if cur.isPrefix {
			return errors.NewRouteError(pattern, "cannot register children beneath a prefix node")
		}

		if strings.HasPrefix(seg, ":") {
			paramName := seg[1:]
			if cur.param == nil {
				cur.param = newNode()
				cur.param.paramName = paramName
			} else if cur.param.paramName != paramName {
				return errors.NewRouteError(pattern, "parameter name mismatch: node already uses :"+cur.param.paramName)
			}
			cur = cur.param
			continue
		}

		next, ok := cur.literal[seg]
		if !ok {
			next = newNode()
			cur.literal[seg] = next
		}
		cur = next
	}

	if cur.handlers == nil {
		cur.handlers = make(map[wire.Method]Handler)
	}
	if _, exists := cur.handlers[method]; exists {
		return errors.NewRouteError(pattern, "duplicate route for this method and pattern")
	}
	cur.handlers[method] = handler
	cur.pattern = pattern
	return nil
}

// Get resolves method and path to a handler and any captured path
// parameters (spec section 4.I "Lookup"). It returns nil, nil, nil for "no
// match"; callers turn that into a 404 themselves. A path that matches but
// not for method returns a *errors.RouteError-shaped *errors.ErrorResponse
// (405) via errors.MethodNotAllowed.
func (r *Router) Get(method wire.Method, path string) (Handler, map[string]string, error) {
	segments := splitSegments(path)
	cur := r.root
	params := make(map[string]string)

	for _, seg := range segments {
		if cur.isPrefix {
			break
		}
		decoded, err := wire.Decode(seg)
		if err != nil {
			decoded = seg
		}
		if next, ok := cur.literal[decoded]; ok {
			cur = next
			continue
		}
		if cur.param != nil {
			params[cur.param.paramName] = decoded
			cur = cur.param
			continue
		}
		return nil, nil, nil
	}

	if cur.handlers == nil {
		return nil, nil, nil
	}
	handler, ok := cur.handlers[method]
	if !ok {
		return nil, nil, errors.MethodNotAllowed("method not allowed for " + path)
	}
	return handler, params, nil
}
