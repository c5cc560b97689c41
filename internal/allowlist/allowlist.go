package allowlist

import (
	"fmt"
	"net"

	"go.uber.org/zap"
)

// Guard provides functionality to check caller addresses against a set of
// permitted CIDR ranges
type Guard struct {
	networks []*net.IPNet
	logger   *zap.Logger
}

// NewGuard creates a new allowlist guard from CIDR strings. An empty list
// disables the check entirely.
func NewGuard(cidrs []string, logger *zap.Logger) (*Guard, error) {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid allowlist CIDR %q: %w", cidr, err)
		}
		networks = append(networks, network)
	}

	if len(networks) > 0 && logger != nil {
		logger.Info("Initialized IP allowlist", zap.Strings("cidrs", cidrs))
	}

	return &Guard{
		networks: networks,
		logger:   logger,
	}, nil
}

// Enabled reports whether any CIDR ranges are configured
func (g *Guard) Enabled() bool {
	return len(g.networks) > 0
}

// Allowed checks whether the caller's address falls inside any configured
// range. The address may carry a port. With no ranges configured every
// caller is allowed; with ranges configured an unparseable address is
// rejected.
func (g *Guard) Allowed(addr string) bool {
	if !g.Enabled() {
		return true
	}

	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}

	ip := net.ParseIP(host)
	if ip == nil {
		if g.logger != nil {
			g.logger.Warn("Rejecting unparseable caller address", zap.String("addr", addr))
		}
		return false
	}

	for _, network := range g.networks {
		if network.Contains(ip) {
			if g.logger != nil {
				g.logger.Debug("Caller address allowlisted",
					zap.String("ip", ip.String()),
					zap.String("cidr", network.String()))
			}
			return true
		}
	}

	return false
}
