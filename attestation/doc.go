// Package attestation produces and verifies the quote evidence gateways
// serve during connection bootstrap.
//
// A gateway binds its application identifier and advertised identity
// payload into quote report data and serves the result as a Document.
// Clients re-derive the expected report data from the application
// identifier they intend to talk to and verify the quote against it, so
// evidence minted for a different application never passes.
//
// Three quote providers are available: DCAP (Intel TDX through the local
// quoting infrastructure), remote (proxied to a quote provider service),
// and dummy (deterministic fake evidence for development and tests).
package attestation
