package scenario

import "time"

// Default configuration values.
const (
	DefaultBuilders = 20
	DefaultVouches  = 60
	DefaultTopN     = 50
	DefaultWorkers  = 4
	DefaultChainID  = 8453
	DefaultTimeout  = 30 * time.Second
	DefaultSettle   = 30 * time.Second
)

// Scenario bounds. The service only ranks the first board page, so a run
// never registers more builders than fit on it.
const (
	MinBuilders    = 2
	MaxBuilders    = 50
	maxSkillsEach  = 3
	planAttempts   = 20
	settleInterval = 250 * time.Millisecond
	displayTopN    = 10
)

// File permission constants.
const (
	directoryPermission = 0750
	logFilePermission   = 0600
)
