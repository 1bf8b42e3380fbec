// Package events provides types and interfaces for an event-driven architecture.
//
// This package defines event types and handler interfaces that allow for loose coupling
// between components in the system. The sequence services emit lifecycle events without
// knowing which handlers will process them; the delivery component registers handlers
// to learn about freshly scheduled or terminated task sets.
//
// The primary components are:
// - SequenceEvent: A sequence instance lifecycle notification
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
package events
