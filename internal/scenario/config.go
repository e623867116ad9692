package scenario

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds configuration for a scenario run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Builders   int           // Number of builders to register
	Vouches    int           // Number of vouches to submit
	TopN       int           // Number of top entries to fetch
	Workers    int           // Concurrent rank lookups
	ChainID    uint64        // Chain reported when switching wallets
	Timeout    time.Duration // HTTP request timeout
	Settle     time.Duration // How long to wait for the board to catch up
	OutputFile string        // Where to save the plan, empty to skip
	Verbose    bool          // Log every write
}

// Validate checks the run parameters.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case c.Builders < MinBuilders || c.Builders > MaxBuilders:
		return fmt.Errorf("%w: builders must be within [%d, %d]", ErrInvalidConfig, MinBuilders, MaxBuilders)
	case c.Vouches < 0:
		return fmt.Errorf("%w: vouches must be >= 0", ErrInvalidConfig)
	case c.TopN <= 0 || c.Workers <= 0:
		return fmt.Errorf("%w: top and workers must be > 0", ErrInvalidConfig)
	case c.Timeout <= 0 || c.Settle <= 0:
		return fmt.Errorf("%w: timeouts must be > 0", ErrInvalidConfig)
	}
	return nil
}

// Builder is a planned registration.
type Builder struct {
	Wallet   common.Address `json:"wallet"`
	Username string         `json:"username"`
	Skills   []int          `json:"skills"`
}

// Vouch is a planned endorsement.
type Vouch struct {
	Voucher common.Address `json:"voucher"`
	Builder common.Address `json:"builder"`
	Skill   int            `json:"skill"`
}

// Plan is the full set of writes for one run.
type Plan struct {
	RunID    string    `json:"run_id"`
	Builders []Builder `json:"builders"`
	Vouches  []Vouch   `json:"vouches"`
}

// Entry is a ranked builder as the service reports it.
type Entry struct {
	Rank             int            `json:"rank"`
	Wallet           common.Address `json:"wallet"`
	Username         string         `json:"username"`
	CredibilityScore uint64         `json:"credibility_score"`
}

// Stats holds run statistics.
type Stats struct {
	BuildersPlanned    int
	BuildersRegistered int
	VouchesPlanned     int
	VouchesConfirmed   int
	WritesFailed       int
	RanksRetrieved     int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
