package discovery

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// DefaultDNSServer is the systemd-resolved stub listener used when no
// server is configured.
const DefaultDNSServer = "127.0.0.53:53"

// ErrNoEndpoints is returned when a service domain resolves to no SRV
// records.
var ErrNoEndpoints = errors.New("no gateway endpoints found")

// Endpoint is one resolved gateway instance.
type Endpoint struct {
	Host string
	Port uint16
}

// Addr returns the endpoint as a dialable host:port string.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// URL returns the endpoint as an http base URL for the gateway transport.
func (e Endpoint) URL() string {
	return "http://" + e.Addr()
}

// Resolver finds gateway instances through DNS SRV records. Deployments
// register gateways under a service domain, e.g. _dataroom._tcp.example.com.
type Resolver struct {
	server string
	client *dns.Client
	log    *slog.Logger
}

// NewResolver creates a resolver querying the given DNS server. An empty
// server falls back to DefaultDNSServer.
func NewResolver(server string, log *slog.Logger) *Resolver {
	if server == "" {
		server = DefaultDNSServer
	}
	return &Resolver{
		server: server,
		client: new(dns.Client),
		log:    log,
	}
}

// ResolveEndpoints queries SRV records for the service domain and returns
// the registered gateway endpoints ordered by priority, then weight.
func (r *Resolver) ResolveEndpoints(domain string) ([]Endpoint, error) {
	m1 := new(dns.Msg)
	m1.Id = dns.Id()
	m1.RecursionDesired = true
	m1.Question = make([]dns.Question, 1)
	m1.Question[0] = dns.Question{Name: dns.Fqdn(domain), Qtype: dns.TypeSRV, Qclass: dns.ClassINET}

	in, _, err := r.client.Exchange(m1, r.server)
	if err != nil {
		return nil, fmt.Errorf("could not query %s for %s: %w", r.server, domain, err)
	}

	type srvRecord struct {
		endpoint Endpoint
		priority uint16
		weight   uint16
	}
	records := make([]srvRecord, 0, len(in.Answer))
	for _, answer := range in.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			records = append(records, srvRecord{
				endpoint: Endpoint{Host: strings.TrimSuffix(srv.Target, "."), Port: srv.Port},
				priority: srv.Priority,
				weight:   srv.Weight,
			})
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoints, domain)
	}

	// Lower priority wins; heavier weight first within a priority. The
	// RFC 2782 weighted shuffle is skipped, callers iterate in order.
	sort.Slice(records, func(i, j int) bool {
		if records[i].priority != records[j].priority {
			return records[i].priority < records[j].priority
		}
		return records[i].weight > records[j].weight
	})

	endpoints := make([]Endpoint, 0, len(records))
	for _, rec := range records {
		endpoints = append(endpoints, rec.endpoint)
	}

	r.log.Debug("Resolved gateway endpoints",
		slog.String("domain", domain),
		slog.Int("count", len(endpoints)))
	return endpoints, nil
}
