// Package vybiumadvice provides the advice provider of the Vybium VM.
//
// Advice is the non-deterministic input a prover feeds to an execution: an
// advice stack, an advice map from words to element lists, and a Merkle
// store holding any number of authenticated trees that share structure.
//
// # Quick Start
//
// Recording an execution and replaying it from the minimal inputs:
//
//	config := vybiumadvice.DefaultConfig()
//	inputs := vybiumadvice.NewInputs().WithStackValues(1, 2, 3, 4)
//
//	recorded, err := vybiumadvice.Record(config, inputs, "adv_push.2 adv_push.2")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	replayed, err := vybiumadvice.Replay(config, recorded.Proof, "adv_push.2 adv_push.2")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Providers
//
// MemProvider serves inputs as given. RecProvider serves them the same way
// and records every map entry and Merkle node it reads; IntoProof returns
// the initial stack together with only the recorded entries and nodes.
// Both implement Provider, so callers do not depend on which one they hold.
//
// # Architecture
//
//   - pkg/vybium-advice/: Public API (this package)
//   - internal/vybium-advice/: Private implementation (not importable)
package vybiumadvice
