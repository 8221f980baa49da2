// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - VectorStore: Embedded chunk persistence and nearest-neighbour queries
//   - EmbeddingService: Maps text to fixed-length vectors
//   - LLMService: Text generation, used for classification and answers
//
// # Optional Interfaces
//
//   - PromptStore: Customisable prompt templates. Without it, built-in defaults are used.
//   - ConfigStore: Persisted configuration.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
