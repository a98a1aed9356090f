// Package agent contains agent definitions and the read-only registry that
// holds them. The package focuses on three concerns:
//
//  1. Definition: one persona with instructions, a model endpoint reference,
//     the tools it may call and the agents it may hand off to
//  2. Registry: fail-fast validation of the whole agent graph at startup
//  3. Handoff routing: resolving a handoff request against the delegation
//     graph with least privilege (only configured targets are reachable)
//
// Definitions and the registry are immutable after construction and are
// shared by all concurrently executing runs without locking.
package agent
