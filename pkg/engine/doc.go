// Package engine defines the core types and contracts for the Setforge
// configuration engine: declarative resources, the aggregate Configuration,
// validation and execution results, the handler contract resource
// implementations must satisfy, and the classified error taxonomy.
//
// The engine workflow is: Parse -> Configuration -> [Bridge resolve] ->
// Validate (read-only) -> Execute (mutating).
package engine
