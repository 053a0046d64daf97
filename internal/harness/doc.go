// Package harness runs scan scenarios against an in-memory item store.
//
// # Scenario Format
//
// Scenarios are YAML files. Each scan step rewrites the store, triggers
// one scan, and checks the changes it produced:
//
//	name: policy_lifecycle
//	description: "A policy gains a patch and its route is removed"
//	types: [POLICY, PIP]            # optional filter
//	scans:
//	  - name: initial
//	    items:                      # replaces the whole store
//	      root/ns/team/p/1.0/process/main.xml: "<process/>"
//	    expect:
//	      - { change: ADD, id: ns/team/p/1.0, patch: 0 }
//	  - put:                        # adds or overwrites keys
//	      root/ns/team/p/1.0/1/process/main.xml: "<process v1/>"
//	    delete: [root/lib/routes/out.xml]
//	    expect:
//	      - { change: UPDATE, id: ns/team/p/1.0, patch: 1 }
//	    expect_entities: [ns/team/p/1.0]
//	  - put: { ... }
//	    expect_error: VERSION_CHAIN  # only on the last step
//
// A step without expect asserts that the scan found no changes.
//
// # Deterministic Testing
//
// Scenarios run on a mock clock against a fresh memory store. Item tags
// are content hashes and entity versions are derived from tags, so a
// scenario always produces the same trace. Traces are compared against
// golden files with goldie:
//
//	go test ./internal/harness -update
package harness
