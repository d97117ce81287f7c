// Package app provides the application composition layer for versekeeper.
//
// # Architecture Role
//
// The app package sits above storage and below the runtime wiring. It
// composes the domain services into a running application. It is NOT a
// business logic layer - business logic belongs in internal/app/services/.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Main application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── rank/           # Rank catalog and the count-to-tier calculator
//	│   ├── user/           # User accounts with ranking state
//	│   ├── verse/          # Memorized verses and rank history
//	│   └── leaderboard/    # Leaderboard entries and pages
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces (UserStore, VerseStore, etc.)
//	│   ├── memory/         # In-memory implementation for testing
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic
//	│   ├── accounts/       # Registration, login, token verification
//	│   ├── progression/    # Memorization recording and rank progression
//	│   ├── leaderboard/    # Ranking queries with the redis cache
//	│   ├── bibletext/      # Upstream scripture proxy with premium gating
//	│   ├── billing/        # Subscription webhook handling
//	│   └── reconcile/      # Scheduled rank drift repair
//	├── httpapi/            # HTTP API handlers and middleware
//	├── system/             # Lifecycle management (Service, Manager)
//	└── metrics/            # Prometheus collectors and instrumentation
//
// # Adding a new domain
//
//  1. Define the model under domain/<name>/ as plain structs.
//  2. Extend storage/interfaces.go with the store interface, then implement
//     it in storage/memory and storage/postgres.
//  3. Implement the service under services/<name>/ with a New(stores...,
//     log) constructor; register it (or a NoopService placeholder) with the
//     manager in application.go.
//  4. Expose endpoints in httpapi and cover them in handler_test.go.
package app
