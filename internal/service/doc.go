// Package service contains the application-specific use cases of the
// sequence orchestration engine. It coordinates domain objects and the
// repositories defined in internal/store to start sequences (singly and in
// bulk), drive their lifecycle, and advance their steps, applying
// transactional boundaries where operations span multiple tables.
//
// Services receive dependencies through constructor injection, translate
// store-level errors into service-level sentinels, and never depend on a
// specific infrastructure implementation.
package service
