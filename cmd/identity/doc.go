// Package identity is the persistence boundary for credentials, per-user
// signing keys and login sessions.
//
// Every query is parameterized. Identifiers (schema and table names) are
// quoted with pgx.Identifier and never built from request data.
//
// Two implementations exist: PostgresStore for production and MemoryStore
// for local development and tests. Both satisfy Store.
package identity
