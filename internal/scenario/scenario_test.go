package scenario

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vouchbase/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func validConfig() *Config {
	return &Config{
		BaseURL:  "http://localhost:9080",
		Builders: 8,
		Vouches:  30,
		TopN:     50,
		Workers:  2,
		ChainID:  8453,
		Timeout:  time.Second,
		Settle:   time.Second,
	}
}

func TestConfigValidate(t *testing.T) {
	Convey("Given scenario configs", t, func() {
		So(validConfig().Validate(), ShouldBeNil)

		for _, mutate := range []func(*Config){
			func(c *Config) { c.BaseURL = "" },
			func(c *Config) { c.Builders = 1 },
			func(c *Config) { c.Builders = MaxBuilders + 1 },
			func(c *Config) { c.Vouches = -1 },
			func(c *Config) { c.Workers = 0 },
			func(c *Config) { c.Settle = 0 },
		} {
			c := validConfig()
			mutate(c)
			So(c.Validate(), ShouldWrap, ErrInvalidConfig)
		}
	})
}

func TestGeneratePlan(t *testing.T) {
	Convey("Given a generated plan", t, func() {
		config := validConfig()
		stats := &Stats{}
		plan := generatePlan(context.Background(), config, stats)

		Convey("Then builders have distinct wallets, names and skills", func() {
			So(len(plan.Builders), ShouldEqual, config.Builders)
			wallets := map[common.Address]bool{}
			names := map[string]bool{}
			for _, b := range plan.Builders {
				wallets[b.Wallet] = true
				names[b.Username] = true
				So(len(b.Username), ShouldBeBetweenOrEqual, 3, 20)
				So(len(b.Skills), ShouldBeBetweenOrEqual, 1, maxSkillsEach)
				seen := map[int]bool{}
				for _, s := range b.Skills {
					So(s, ShouldBeBetweenOrEqual, 1, 25)
					So(seen[s], ShouldBeFalse)
					seen[s] = true
				}
			}
			So(len(wallets), ShouldEqual, config.Builders)
			So(len(names), ShouldEqual, config.Builders)
		})

		Convey("Then vouches are valid and unique", func() {
			So(stats.VouchesPlanned, ShouldEqual, len(plan.Vouches))
			skillsOf := map[common.Address][]int{}
			for _, b := range plan.Builders {
				skillsOf[b.Wallet] = b.Skills
			}
			type key struct {
				v, b  common.Address
				skill int
			}
			seen := map[key]bool{}
			for _, v := range plan.Vouches {
				So(v.Voucher, ShouldNotEqual, v.Builder)
				So(skillsOf[v.Builder], ShouldContain, v.Skill)
				k := key{v.Voucher, v.Builder, v.Skill}
				So(seen[k], ShouldBeFalse)
				seen[k] = true
			}
		})
	})
}

func TestVerifyResults(t *testing.T) {
	Convey("Given three registered builders", t, func() {
		a, b, c := common.HexToAddress("0xa"), common.HexToAddress("0xb"), common.HexToAddress("0xc")
		plan := &Plan{Builders: []Builder{{Wallet: a, Username: "aaa"}, {Wallet: b, Username: "bbb"}, {Wallet: c, Username: "ccc"}}}
		out := &outcome{
			registered:  map[common.Address]bool{a: true, b: true, c: true},
			credibility: map[common.Address]uint64{b: 2, c: 2},
		}

		Convey("Then the expected order breaks ties by registration", func() {
			order := expectedOrder(plan, out)
			So([]string{order[0].Username, order[1].Username, order[2].Username}, ShouldResemble, []string{"bbb", "ccc", "aaa"})
			So(order[2].Rank, ShouldEqual, 3)
		})

		Convey("Then matching ranks and board verify", func() {
			ranks := map[common.Address]Entry{
				b: {Rank: 1, Wallet: b, CredibilityScore: 2},
				c: {Rank: 2, Wallet: c, CredibilityScore: 2},
				a: {Rank: 3, Wallet: a, CredibilityScore: 0},
			}
			board := []Entry{ranks[b], ranks[c], ranks[a]}
			So(verifyResults(context.Background(), plan, out, ranks, board), ShouldBeNil)
		})

		Convey("Then a wrong credibility or order is reported", func() {
			ranks := map[common.Address]Entry{
				b: {Rank: 2, Wallet: b, CredibilityScore: 2},
				c: {Rank: 1, Wallet: c, CredibilityScore: 1},
			}
			board := []Entry{ranks[c], ranks[b]}
			err := verifyResults(context.Background(), plan, out, ranks, board)
			So(err, ShouldWrap, ErrVerification)
			So(err.Error(), ShouldContainSubstring, "aaa has no rank")
			So(err.Error(), ShouldContainSubstring, "ccc credibility 1, want 2")
			So(err.Error(), ShouldContainSubstring, "leaderboard not sorted")
		})
	})
}
