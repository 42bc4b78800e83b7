package types

// Version is the canonical project version.
// All components (CLI, engine, host protocol) share this version
// per the lockstep versioning policy.
const Version = "0.2.0"

// ProtocolVersion is the engine/host message protocol version.
// Both sides of the boundary validate it on every message; a mismatch
// means the host binary and the engine were built from different trees.
const ProtocolVersion = "1.0"
