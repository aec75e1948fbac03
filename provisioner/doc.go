// Package provisioner contains one provisioner per hosting resource
// kind: the Linux account, its web server virtual host, the DNS zone,
// mail domain and accounts, the MySQL database, the TLS certificate and
// the disk quota. Each provisioner owns exactly one external subsystem
// and is idempotent, so a retried run converges instead of duplicating
// resources. Sequencing and failure policy live in the orchestrator.
package provisioner
