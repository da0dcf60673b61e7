// Package routing holds the static, priority-ordered route table and the
// path matching policy that decides which rule handles an inbound request.
package routing
