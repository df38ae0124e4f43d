// Package app composes the cart rewards services into a running application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (store records, reward tiers)
//	├── storage/            # Store interfaces with memory and postgres backends
//	├── services/           # Store directory, rewards, store resolver
//	├── directory/          # Directory clients used by the resolver
//	├── kvcache/            # Resolved store id cache backends
//	├── httpapi/            # HTTP handlers and routing
//	├── jobs/               # Cron scheduler
//	├── metrics/            # Prometheus collectors
//	├── runtime/            # Process wiring (config, database, HTTP server)
//	└── system/             # Lifecycle interface and manager
//
// # Responsibilities
//
// The app package wires services to their storage and to each other, and
// owns the lifecycle of background services (store bootstrap and the job
// scheduler). Business rules live in services/ and domain/; the HTTP surface
// lives in httpapi/.
//
// # Dependency Direction
//
//	cmd/rewards-server, cmd/rewardsctl
//	      │
//	      ▼
//	internal/app/runtime ──► internal/app (composition)
//	                              │
//	                              ├──► services/ (business logic)
//	                              ├──► storage/  (persistence)
//	                              └──► directory/, kvcache/ (resolver inputs)
package app
