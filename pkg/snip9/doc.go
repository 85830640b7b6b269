// Package snip9 builds "execute from outside" meta-transactions: a signed
// authorization that lets a third party submit (and pay for) calls on behalf
// of the signing account. Both published versions are supported: V1 signs
// revision-0 typed data and targets execute_from_outside, V2 signs revision-1
// typed data and targets execute_from_outside_v2. Support is detected through
// SNIP-5 supports_interface; accounts without either interface surface
// ErrNotSupported so callers can skip the flow.
package snip9
