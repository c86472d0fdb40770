// Package call defines the typed call protocol that crosses the sandbox
// boundary: envelopes, values, results, error codes, and the wire codec.
//
// # Envelopes and Values
//
// A [FunctionCall] names a guest or host function, carries its ordered
// typed parameters, and declares the return type the caller expects:
//
//	fc := call.New("Echo", call.TypeString, call.String("hello"))
//
// Each parameter is a [Value]: a type tag plus payload. Constructors and
// typed accessors keep both sides honest; reading a value through the
// wrong accessor is an error, never a silent default.
//
// # Results and Errors
//
// A [Result] is either a typed return value or an [Error] whose
// [ErrorCode] survives the boundary crossing unchanged, so the caller can
// tell "no such function" apart from "called it, but it failed":
//
//	res, _ := codec.DecodeResult(reply)
//	v, err := res.Unpack()
//	if call.CodeOf(err) == call.CodeFunctionNotFound {
//	    // the guest never had the function
//	}
//
// # Wire Format
//
// [Codec] converts envelopes and results to wire bytes. The default codec
// uses CBOR with Core Deterministic Encoding, so identical calls always
// marshal to identical bytes regardless of which side produced them.
package call
