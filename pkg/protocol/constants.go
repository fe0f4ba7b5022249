package protocol

// MajorVersion is the protocol major version exchanged in the Hello
// handshake. Peers are compatible iff their major versions are equal.
const MajorVersion uint32 = 1

// Environment variables shared between cargo-fixture and its children.
const (
	// EnvSocket carries the rendezvous socket path to the fixture and test
	// processes.
	EnvSocket = "CARGO_FIXTURE_SOCKET"

	// EnvNested is set by cargo-fixture for its own process tree so a nested
	// invocation can be refused.
	EnvNested = "CARGO_FIXTURE"
)

// FixtureFeature is the cargo feature enabled for the fixture build and for
// the default test invocation.
const FixtureFeature = "_fixture"
