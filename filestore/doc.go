// Package filestore provides content-addressed storage for data room file
// payloads. Content is addressed by its SHA-256 digest, the same digest
// recorded in room file entries, so a listing entry is always enough to
// retrieve the bytes it names.
//
// Two backends are provided: a local file system store (one file per
// digest) and an IPFS-backed store. The factory creates either from a
// store location URI (file:// or ipfs://).
package filestore
