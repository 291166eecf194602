// Package discovery resolves gateway endpoints through DNS SRV records.
//
// Deployments register each gateway instance under a service domain such
// as _dataroom._tcp.example.com. Clients resolve the domain and connect
// to the returned endpoints in priority order; the transport's attested
// bootstrap then verifies that whichever endpoint answered actually
// serves the expected application.
package discovery
