// Package distribution turns funded records into allocations. It wires the
// splitter and the vesting engine together, fans records out across a
// bounded worker group, and aggregates run summaries.
package distribution
