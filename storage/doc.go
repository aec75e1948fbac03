// Package storage provides content-addressed archive backends for audit
// trail exports and pre-purge backups. Artifacts are addressed by the
// SHA-256 hash of their content and stored under per-kind prefixes.
//
// Backends are created from location URIs through the factory:
//
//	file:///var/lib/panel/archive
//	s3://bucket/prefix?region=eu-west-1
//
// Multiple locations combine into a multi-backend that stores to every
// reachable backend and fetches from the first that has the artifact.
package storage
