// Package memory provides in-process implementations of the record store and
// the identity provider's claims store. They back development runs without
// PostgreSQL or Redis and serve as test doubles for the application layer.
package memory
