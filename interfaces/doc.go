// Package interfaces defines the core types and contracts shared by the
// control panel components: validated domain and username types, the error
// taxonomy surfaced to callers, the resource provisioner capability, and
// the notification types consumed by the in-process broker.
//
// The package holds no business logic beyond input validation, so every
// other package can depend on it without import cycles.
package interfaces
