// Package harness evaluates graph documents end to end and checks them
// against scenario files.
//
// Evaluate is the full pipeline shared with the CLI: it maps a document
// into a network, runs the optimization passes, evaluates every graph
// output and optionally records the run in a store.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scale_and_offset
//	description: "What this scenario validates"
//	document: documents/scale.yaml
//	batch_size: 3
//	passes: [default]
//	inputs:
//	  x: [1, 2, 3]
//	context:
//	  - key: offset
//	    type: float32
//	    value: 0.5
//	expect:
//	  outputs:
//	    y: [2.5, 4.5, 6.5]
//	assertions:
//	  - type: executed
//	    node: multiply float32
//	  - type: node_count
//	    kind: function
//	    count: 2
//
// The document path is relative to the scenario file. A scenario expects
// either outputs or an error substring (expect.error).
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - executed: A node with the given name executed at least once
//   - not_executed: A node never executed (lazily skipped or removed)
//   - execution_count: A node executed exactly N times
//   - execution_order: Nodes first executed in the given order
//   - node_count: The optimized network has N nodes of a kind
//
// # Deterministic Testing
//
// Every scenario runs with a fixed run id against a fresh in-memory store
// and defaults to one thread, so the recorded trace and the golden
// snapshot are identical across runs.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/scale.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
