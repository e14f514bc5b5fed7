package hw

import (
	"net"
	"time"

	"github.com/hammamikhairi/talkbox/internal/domain"
	"github.com/hammamikhairi/talkbox/internal/logger"
)

var _ domain.Link = (*NetLink)(nil)

// NetLink reports the host network as associated when an interface is up
// and holds a routable unicast address. The host joins networks on its
// own, so Join has nothing to start.
type NetLink struct {
	name string // empty = any interface
	log  *logger.Logger

	interfaces func() ([]net.Interface, error)
	addrs      func(net.Interface) ([]net.Addr, error)
}

// NewNetLink watches the named interface, or every interface when name is
// empty.
func NewNetLink(name string, log *logger.Logger) *NetLink {
	return &NetLink{
		name:       name,
		log:        log,
		interfaces: net.Interfaces,
		addrs:      func(i net.Interface) ([]net.Addr, error) { return i.Addrs() },
	}
}

// Associated implements domain.Link.
func (l *NetLink) Associated() bool {
	ifaces, err := l.interfaces()
	if err != nil {
		return false
	}
	for _, i := range ifaces {
		if l.name != "" && i.Name != l.name {
			continue
		}
		if i.Flags&net.FlagUp == 0 || i.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := l.addrs(i)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipn, ok := a.(*net.IPNet); ok && routable(ipn.IP) {
				return true
			}
		}
	}
	return false
}

// Join implements domain.Link.
func (l *NetLink) Join() error {
	if l.name != "" {
		l.log.Debug("waiting for %s to come up", l.name)
	} else {
		l.log.Debug("waiting for any interface to come up")
	}
	return nil
}

func routable(ip net.IP) bool {
	return !ip.IsLoopback() && !ip.IsLinkLocalUnicast() && !ip.IsUnspecified() && !ip.IsMulticast()
}

// ── Clock ────────────────────────────────────────────────────────

var _ domain.Clock = (*Clock)(nil)

// Clock is the monotonic wall clock, counting from process start.
type Clock struct {
	start time.Time
}

// NewClock starts a clock at zero.
func NewClock() *Clock { return &Clock{start: time.Now()} }

// Millis implements domain.Clock.
func (c *Clock) Millis() int64 { return time.Since(c.start).Milliseconds() }

// Sleep implements domain.Clock.
func (c *Clock) Sleep(d time.Duration) { time.Sleep(d) }
