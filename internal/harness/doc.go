// Package harness runs scripted workspace scenarios and checks their
// outcomes, for conformance tests and the `galactic test` command.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: spacecraft_rollup
//	description: "Apply a small assembly and reconcile its MEL"
//	steps:
//	  - apply:
//	      records:
//	        - {_cname: HardwareProduct, oid: "test:sc", name: Spacecraft}
//	      force: false
//	    expect:
//	      new: 1
//	  - mel:
//	      context: "test:sc"
//	    expect:
//	      rows:
//	        - {name: Spacecraft, level: 1, quantity: 1}
//	  - encode:
//	      oids: ["test:sc"]
//	    expect:
//	      records: ["test:sc"]
//
// Records are flat wire records, exactly as in a YAML batch file.
// Expectations are subset checks: an omitted count is not compared. Rows
// and records, when given, must match in full and in order.
//
// # Determinism
//
// Each run opens a fresh in-memory workspace with testutil's deterministic
// clock and sequential row oids, so the same scenario always produces the
// same Summary. RunWithGolden compares that summary, as canonical JSON,
// with testdata/golden/<name>.golden.
//
// After every mel step the reconciled view is also checked with CheckView.
package harness
