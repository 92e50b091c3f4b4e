package federation

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/cmorg789/vox/pkg/metrics"
)

// DNS record prefixes a federating server publishes.
const (
	keyLabel    = "_voxkey."    // TXT "p=<base64raw ed25519>"
	policyLabel = "_voxpolicy." // TXT "federation=open|closed|allowlist"
	svcbLabel   = "_vox."       // SVCB endpoint, default <domain>:443
)

// keyCacheTTL bounds how long a resolved public key is reused before
// DNS is consulted again.
const keyCacheTTL = 5 * time.Minute

// Resolver discovers remote servers' keys, policies, and endpoints.
// Tests inject a fake; production uses DNSResolver.
type Resolver interface {
	// PublicKey returns the Ed25519 key published at _voxkey.<domain>.
	PublicKey(ctx context.Context, domain string) (ed25519.PublicKey, error)

	// Policy returns the remote's inbound policy from _voxpolicy, or
	// "open" when the record is absent.
	Policy(ctx context.Context, domain string) (string, error)

	// Endpoint returns the host:port to reach the remote's API,
	// defaulting to <domain>:443 when no SVCB record exists.
	Endpoint(ctx context.Context, domain string) (string, error)
}

type cachedKey struct {
	key     ed25519.PublicKey
	expires time.Time
}

// DNSResolver resolves federation records against the system's
// configured nameservers. Resolved keys are cached briefly; policy and
// endpoint lookups go to DNS every time since they sit on the slow
// path only.
type DNSResolver struct {
	client  *dns.Client
	servers []string
	metrics metrics.FederationMetrics

	mu   sync.Mutex
	keys map[string]cachedKey
}

// NewDNSResolver builds a resolver from /etc/resolv.conf. Pass nil
// metrics to disable instrumentation.
func NewDNSResolver(m metrics.FederationMetrics) (*DNSResolver, error) {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return nil, fmt.Errorf("failed to read resolver config: %w", err)
	}
	servers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		servers = append(servers, net.JoinHostPort(s, conf.Port))
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("no nameservers configured")
	}
	return &DNSResolver{
		client:  &dns.Client{Timeout: 5 * time.Second},
		servers: servers,
		keys:    make(map[string]cachedKey),
	}, nil
}

var _ Resolver = (*DNSResolver)(nil)

// PublicKey implements Resolver.
func (r *DNSResolver) PublicKey(ctx context.Context, domain string) (ed25519.PublicKey, error) {
	r.mu.Lock()
	if c, ok := r.keys[domain]; ok && time.Now().Before(c.expires) {
		r.mu.Unlock()
		if r.metrics != nil {
			r.metrics.RecordKeyFetch("hit")
		}
		return c.key, nil
	}
	r.mu.Unlock()

	records, err := r.lookupTXT(ctx, keyLabel+domain)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordKeyFetch("error")
		}
		return nil, fmt.Errorf("key lookup for %s: %w", domain, err)
	}
	for _, txt := range records {
		val, ok := strings.CutPrefix(txt, "p=")
		if !ok {
			continue
		}
		raw, err := base64.RawStdEncoding.DecodeString(val)
		if err != nil || len(raw) != ed25519.PublicKeySize {
			continue
		}
		key := ed25519.PublicKey(raw)
		r.mu.Lock()
		r.keys[domain] = cachedKey{key: key, expires: time.Now().Add(keyCacheTTL)}
		r.mu.Unlock()
		if r.metrics != nil {
			r.metrics.RecordKeyFetch("resolved")
		}
		return key, nil
	}
	if r.metrics != nil {
		r.metrics.RecordKeyFetch("error")
	}
	return nil, fmt.Errorf("no signing key published for %s: %w", domain, ErrAuthFailed)
}

// Policy implements Resolver.
func (r *DNSResolver) Policy(ctx context.Context, domain string) (string, error) {
	records, err := r.lookupTXT(ctx, policyLabel+domain)
	if err != nil {
		// Absent policy record means open.
		return "open", nil
	}
	for _, txt := range records {
		if val, ok := strings.CutPrefix(txt, "federation="); ok {
			switch val {
			case "open", "closed", "allowlist":
				return val, nil
			}
		}
	}
	return "open", nil
}

// Endpoint implements Resolver.
func (r *DNSResolver) Endpoint(ctx context.Context, domain string) (string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(svcbLabel+domain), dns.TypeSVCB)

	resp, err := r.exchange(ctx, msg)
	if err != nil || len(resp.Answer) == 0 {
		return net.JoinHostPort(domain, "443"), nil
	}

	for _, rr := range resp.Answer {
		svcb, ok := rr.(*dns.SVCB)
		if !ok || svcb.Priority == 0 {
			continue
		}
		host := strings.TrimSuffix(svcb.Target, ".")
		if host == "" {
			host = domain
		}
		port := "443"
		for _, kv := range svcb.Value {
			if p, ok := kv.(*dns.SVCBPort); ok {
				port = strconv.Itoa(int(p.Port))
			}
		}
		return net.JoinHostPort(host, port), nil
	}
	return net.JoinHostPort(domain, "443"), nil
}

func (r *DNSResolver) lookupTXT(ctx context.Context, name string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeTXT)

	resp, err := r.exchange(ctx, msg)
	if err != nil {
		return nil, err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dns rcode %s for %s", dns.RcodeToString[resp.Rcode], name)
	}

	var out []string
	for _, rr := range resp.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			out = append(out, strings.Join(txt.Txt, ""))
		}
	}
	return out, nil
}

// exchange tries each configured nameserver in order.
func (r *DNSResolver) exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	var lastErr error
	for _, server := range r.servers {
		resp, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
