package coordinator

// Config contains the configuration for the coordinator.
type Config struct {
	// SkipSelfNotifyOnJoin stops the coordinator from telling a joiner
	// about members already in the room. The zero value keeps the
	// notification on; clients rely on it for join-order independence.
	SkipSelfNotifyOnJoin bool
}
