package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// AnonymousClient is the shared bucket used when no address is available.
const AnonymousClient = "anonymous"

// DefaultTrustedHops assumes one reverse proxy (load balancer or ingress)
// in front of the service.
const DefaultTrustedHops = 1

// Resolver derives the rate limit identity of a request.
//
// TrustedHops is the number of proxies in front of the service that append
// to X-Forwarded-For. The client address is the entry that many positions
// from the right; anything further left was supplied by the caller and is
// ignored. With zero hops forwarding headers are ignored entirely and the
// peer address is used.
type Resolver struct {
	TrustedHops int
}

// ClientID resolves r with DefaultTrustedHops.
func ClientID(r *http.Request) string {
	return Resolver{TrustedHops: DefaultTrustedHops}.ClientID(r)
}

// ClientID returns the forwarded client address when proxies are trusted,
// then X-Real-IP, then the peer address, else AnonymousClient.
func (res Resolver) ClientID(r *http.Request) string {
	if r == nil {
		return AnonymousClient
	}

	if res.TrustedHops > 0 {
		if hops := forwardedChain(r.Header.Values("X-Forwarded-For")); len(hops) > 0 {
			return hops[max(len(hops)-res.TrustedHops, 0)]
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}

	return peerAddress(r.RemoteAddr)
}

// forwardedChain flattens repeated X-Forwarded-For headers into one ordered
// list, dropping empty entries.
func forwardedChain(values []string) []string {
	var hops []string
	for _, value := range values {
		for _, hop := range strings.Split(value, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}
	return hops
}

func peerAddress(remote string) string {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return AnonymousClient
	}
	if host, _, err := net.SplitHostPort(remote); err == nil {
		if host == "" {
			return AnonymousClient
		}
		return host
	}
	return remote
}
