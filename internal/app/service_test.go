package service_test

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vouchbase/internal/adapters/ledger/memledger"
	service "github.com/okian/vouchbase/internal/app"
	"github.com/okian/vouchbase/internal/domain/failure"
	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/pkg/logger"
)

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New(memledger.New())

		Convey("Then it is not started and reads serve an empty cache", func() {
			So(svc.GetStats()["started"], ShouldEqual, false)
			top, err := svc.Leaderboard(context.Background(), 10)
			So(err, ShouldBeNil)
			So(top, ShouldBeEmpty)
			_, ok := svc.GlobalStats(context.Background())
			So(ok, ShouldBeFalse)
		})

		Convey("Then refresh requests are refused", func() {
			_, err := svc.RequestRefresh(context.Background(), model.RefreshJob{Kind: model.RefreshBoard})
			So(err, ShouldEqual, service.ErrNotStarted)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a service over a seeded ledger", t, func() {
		ctx := context.Background()
		l := memledger.New()
		seed(l, alice, "alice", 1)
		seed(l, bob, "bob", 2)
		vouch(l, alice, bob, 2)

		svc := service.New(l,
			service.WithWorkerCount(2),
			service.WithQueueSize(16),
			service.WithSyncInterval(time.Hour),
			service.WithLogger(logger.Nop()),
		)
		defer svc.Stop()

		Convey("When it starts", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then the board and counters are loaded in the background", func() {
				So(eventually(func() bool {
					_, ok := svc.GlobalStats(ctx)
					top, _ := svc.Leaderboard(ctx, 10)
					return ok && len(top) == 2
				}), ShouldBeTrue)

				top, _ := svc.Leaderboard(ctx, 10)
				So(top[0].Profile.Username, ShouldEqual, "bob")
				e, err := svc.Rank(ctx, alice)
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 2)
			})

			Convey("Then stats report the running components", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["workers"], ShouldEqual, 2)
				So(stats["required_chain_id"], ShouldEqual, uint64(8453))
			})

			Convey("Then a profile miss falls back to the ledger", func() {
				seed(l, carol, "carol", 3)
				lk, err := svc.Profile(ctx, carol)
				So(err, ShouldBeNil)
				p, ok := lk.Get()
				So(ok, ShouldBeTrue)
				So(p.Username, ShouldEqual, "carol")
			})

			Convey("Then an unknown profile is NotFound without error", func() {
				lk, err := svc.Profile(ctx, dave)
				So(err, ShouldBeNil)
				So(lk.Exists(), ShouldBeFalse)
			})

			Convey("And it stops", func() {
				svc.Stop()
				svc.Stop()

				Convey("Then refreshes are refused again", func() {
					_, err := svc.RequestRefresh(ctx, model.RefreshJob{Kind: model.RefreshStats})
					So(err, ShouldEqual, service.ErrNotStarted)
					So(svc.GetStats()["started"], ShouldEqual, false)
				})
			})
		})
	})
}

func TestService_Connect(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		l := memledger.New()
		seed(l, alice, "alice", 1)
		svc := service.New(l, service.WithLogger(logger.Nop()))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a registered wallet connects", func() {
			v := svc.Connect(ctx, alice, true, 8453)

			Convey("Then registration is probed", func() {
				So(v.Connected, ShouldBeTrue)
				So(v.Registered, ShouldBeTrue)
				So(v.Profile.Username, ShouldEqual, "alice")
			})

			Convey("And the account changes to an unregistered wallet", func() {
				v := svc.Connect(ctx, bob, true, 8453)

				Convey("Then the session is unregistered", func() {
					So(v.Wallet, ShouldEqual, bob)
					So(v.Registered, ShouldBeFalse)
					So(v.Profile, ShouldBeNil)
				})
			})
		})

		Convey("When a wallet connects on the wrong chain", func() {
			v := svc.Connect(ctx, alice, true, 1)

			Convey("Then the network advisory blocks and registration is unknown", func() {
				So(v.Advisory, ShouldNotBeNil)
				So(v.Advisory.Kind, ShouldEqual, failure.WrongNetwork)
				So(v.Registered, ShouldBeFalse)

				_, err := svc.Vouch(ctx, bob, 1)
				So(failure.Is(err, failure.WrongNetwork), ShouldBeTrue)
				So(svc.SessionView().Busy, ShouldBeFalse)
			})

			Convey("And switches to Base", func() {
				v := svc.Connect(ctx, alice, true, 8453)

				Convey("Then the advisory clears and the wallet is probed", func() {
					So(v.Advisory, ShouldBeNil)
					So(v.Registered, ShouldBeTrue)
				})
			})
		})

		Convey("When an advisory is dismissed", func() {
			svc.Connect(ctx, bob, true, 8453)
			_, err := svc.Vouch(ctx, bob, 1)
			So(err, ShouldEqual, service.ErrSelfVouch)
			seed(l, carol, "carol", 1)
			l.DeclineNextSignature()
			_, err = svc.Vouch(ctx, carol, 1)
			So(failure.Is(err, failure.UserCancelled), ShouldBeTrue)
			So(svc.SessionView().Advisory, ShouldNotBeNil)
			svc.DismissAdvisory()

			Convey("Then nothing is shown", func() {
				So(svc.SessionView().Advisory, ShouldBeNil)
			})
		})
	})
}

func TestService_ChainPolling(t *testing.T) {
	Convey("Given a service with a configured wallet and chain polling", t, func() {
		ctx := context.Background()
		l := memledger.New()
		svc := service.New(l,
			service.WithWallet(alice),
			service.WithChainPollInterval(10*time.Millisecond),
			service.WithLogger(logger.Nop()),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		So(svc.SessionView().Connected, ShouldBeTrue)
		So(svc.SessionView().Advisory, ShouldBeNil)

		Convey("When the gateway moves to another chain", func() {
			l.SetChainID(1)

			Convey("Then the guard raises the network advisory", func() {
				So(eventually(func() bool {
					a := svc.SessionView().Advisory
					return a != nil && a.Kind == failure.WrongNetwork
				}), ShouldBeTrue)
				So(svc.GetStats()["network_mismatch"], ShouldEqual, true)

				Convey("And it moves back", func() {
					l.SetChainID(8453)

					Convey("Then the advisory clears", func() {
						So(eventually(func() bool { return svc.SessionView().Advisory == nil }), ShouldBeTrue)
					})
				})
			})
		})
	})
}

func TestService_RequestRefresh(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		l := memledger.New()
		seed(l, alice, "alice", 1)
		svc := service.New(l, service.WithSyncInterval(0), service.WithLogger(logger.Nop()))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a profile refresh is requested", func() {
			queued, err := svc.RequestRefresh(ctx, model.RefreshJob{Kind: model.RefreshProfile, Address: alice})

			Convey("Then it is queued and the workers keep the cache loaded", func() {
				So(err, ShouldBeNil)
				So(queued, ShouldBeTrue)
				So(eventually(func() bool {
					_, err := svc.Rank(ctx, alice)
					return err == nil
				}), ShouldBeTrue)
			})
		})
	})
}

func TestService_BuilderLookups(t *testing.T) {
	Convey("Given bob vouched by alice on skill 2 of his skills 2 and 3", t, func() {
		ctx := context.Background()
		l := memledger.New()
		seed(l, alice, "alice", 1)
		seed(l, bob, "bob", 2, 3)
		vouch(l, alice, bob, 2)
		svc := service.New(l, service.WithSyncInterval(0), service.WithLogger(logger.Nop()))

		Convey("When bob is looked up by username", func() {
			lk, err := svc.FindBuilder(ctx, " bob ")

			Convey("Then his profile is returned", func() {
				So(err, ShouldBeNil)
				p, ok := lk.Get()
				So(ok, ShouldBeTrue)
				So(p.Wallet, ShouldEqual, bob)
			})
		})

		Convey("When an unknown username is looked up", func() {
			lk, err := svc.FindBuilder(ctx, "nobody")

			Convey("Then it is NotFound without an error", func() {
				So(err, ShouldBeNil)
				So(lk.Exists(), ShouldBeFalse)
			})
		})

		Convey("When alice is connected", func() {
			svc.Connect(ctx, alice, true, 8453)
			got, err := svc.VouchedSkills(ctx, bob, []model.SkillID{2, 3})

			Convey("Then only the vouched skill is reported", func() {
				So(err, ShouldBeNil)
				So(got, ShouldResemble, []model.SkillID{2})
			})
		})

		Convey("When no wallet is connected or bob views himself", func() {
			none, err := svc.VouchedSkills(ctx, bob, []model.SkillID{2})
			So(err, ShouldBeNil)
			So(none, ShouldBeEmpty)

			svc.Connect(ctx, bob, true, 8453)
			self, err := svc.VouchedSkills(ctx, bob, []model.SkillID{2})
			So(err, ShouldBeNil)
			So(self, ShouldBeEmpty)
		})

		Convey("When the wallet is on the wrong chain", func() {
			svc.Connect(ctx, alice, true, 1)
			_, err := svc.VouchedSkills(ctx, bob, []model.SkillID{2})

			Convey("Then the read is blocked by the network guard", func() {
				So(failure.Is(err, failure.WrongNetwork), ShouldBeTrue)
			})
		})
	})
}
