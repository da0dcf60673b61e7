package forwarder

import (
	"net/http"
	"time"

	"github.com/angeloszaimis/dev-router/internal/routing"
)

// ProxyContext carries the state of one forwarded request through the
// interceptor hooks. Fields are populated progressively: TargetURL and
// Degraded before PreForward, StatusCode and Duration before PostForward.
type ProxyContext struct {
	Rule       routing.RouteRule
	TargetURL  string
	Degraded   bool
	Request    *http.Request
	StatusCode int
	Duration   time.Duration
}

// Interceptor is a set of typed hooks invoked at well-defined points of the
// forwarding path. Any hook may be nil.
type Interceptor struct {
	PreForward  func(*ProxyContext)
	PostForward func(*ProxyContext)
	OnError     func(*ProxyContext, error)
}

func (f *Forwarder) firePreForward(pc *ProxyContext) {
	for _, i := range f.interceptors {
		if i.PreForward != nil {
			i.PreForward(pc)
		}
	}
}

func (f *Forwarder) firePostForward(pc *ProxyContext) {
	for _, i := range f.interceptors {
		if i.PostForward != nil {
			i.PostForward(pc)
		}
	}
}

func (f *Forwarder) fireOnError(pc *ProxyContext, err error) {
	for _, i := range f.interceptors {
		if i.OnError != nil {
			i.OnError(pc, err)
		}
	}
}
