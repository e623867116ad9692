package service_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vouchbase/internal/adapters/ledger/memledger"
	service "github.com/okian/vouchbase/internal/app"
	"github.com/okian/vouchbase/internal/domain/failure"
	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/pkg/logger"
)

func TestSession_Advisory(t *testing.T) {
	Convey("Given a session", t, func() {
		s := service.NewSession()

		Convey("When two failures are raised", func() {
			s.Raise(failure.Cancelled(nil))
			s.Raise(failure.Insufficient(nil))

			Convey("Then only the latest is shown", func() {
				a, ok := s.Advisory()
				So(ok, ShouldBeTrue)
				So(a.Kind, ShouldEqual, failure.InsufficientFunds)
				So(a.Message, ShouldEqual, failure.MsgInsufficientFunds)
			})
		})

		Convey("When an untagged error is raised", func() {
			s.Raise(errors.New("boom"))

			Convey("Then it is shown as unknown", func() {
				a, _ := s.Advisory()
				So(a.Kind, ShouldEqual, failure.Unknown)
			})
		})

		Convey("When the network advisory is shown", func() {
			s.Raise(failure.Network(8453))

			Convey("Then a new write does not clear it", func() {
				s.ClearForWrite()
				a, ok := s.Advisory()
				So(ok, ShouldBeTrue)
				So(a.Message, ShouldEqual, "Please switch to Base network (Chain ID: 8453)")
			})

			Convey("Then ClearNetwork removes it", func() {
				s.ClearNetwork()
				_, ok := s.Advisory()
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When another advisory is shown", func() {
			s.Raise(failure.Rejected("Username taken", nil))

			Convey("Then ClearNetwork leaves it", func() {
				s.ClearNetwork()
				a, ok := s.Advisory()
				So(ok, ShouldBeTrue)
				So(a.Message, ShouldEqual, "Username taken")
			})

			Convey("Then Dismiss clears it", func() {
				s.Dismiss()
				_, ok := s.Advisory()
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestSession_Connect(t *testing.T) {
	Convey("Given a connected registered session", t, func() {
		s := service.NewSession()
		So(s.Connect(alice, true, 8453), ShouldBeTrue)
		s.SetProfile(model.BuilderProfile{Wallet: alice, Username: "alice"})
		So(s.Registered(), ShouldBeTrue)

		Convey("When only the chain changes", func() {
			changed := s.Connect(alice, true, 1)

			Convey("Then the account is unchanged and registration kept", func() {
				So(changed, ShouldBeFalse)
				So(s.Registered(), ShouldBeTrue)
				So(s.View().ChainID, ShouldEqual, 1)
			})
		})

		Convey("When the account changes", func() {
			changed := s.Connect(bob, true, 8453)

			Convey("Then registration is reset until the next probe", func() {
				So(changed, ShouldBeTrue)
				So(s.Registered(), ShouldBeFalse)
				So(s.View().Profile, ShouldBeNil)
			})
		})

		Convey("When a profile for another wallet is offered", func() {
			s.SetProfile(model.BuilderProfile{Wallet: bob, Username: "bob"})

			Convey("Then it is ignored", func() {
				So(s.View().Profile.Username, ShouldEqual, "alice")
			})
		})
	})
}

func TestNetworkGuard(t *testing.T) {
	Convey("Given a guard over the simulated ledger", t, func() {
		ctx := context.Background()
		l := memledger.New()
		seed(l, alice, "alice", 1)
		session := service.NewSession()
		guard := service.NewNetworkGuard(8453, session, logger.Nop())
		sg := newScripted(l)
		gw := guard.Gate(sg)

		Convey("When a connected wallet is on the wrong chain", func() {
			guard.Observe(true, 1)

			Convey("Then every gated call fails without reaching the ledger", func() {
				_, err := gw.ReadProfile(ctx, alice)
				So(failure.Is(err, failure.WrongNetwork), ShouldBeTrue)
				_, err = gw.QuoteFee(ctx, model.OpVouch, 0)
				So(failure.Is(err, failure.WrongNetwork), ShouldBeTrue)
				_, err = gw.ReadGlobalStats(ctx)
				So(err, ShouldNotBeNil)
				So(sg.Calls(), ShouldEqual, 0)
			})

			Convey("Then the blocking advisory is shown", func() {
				a, ok := session.Advisory()
				So(ok, ShouldBeTrue)
				So(a.Kind, ShouldEqual, failure.WrongNetwork)
				So(guard.Check(), ShouldNotBeNil)
			})

			Convey("Then ChainID still works", func() {
				id, err := gw.ChainID(ctx)
				So(err, ShouldBeNil)
				So(id, ShouldEqual, 8453)
			})

			Convey("And the chain is switched back", func() {
				guard.Observe(true, 8453)

				Convey("Then the advisory clears and reads pass", func() {
					_, ok := session.Advisory()
					So(ok, ShouldBeFalse)
					lk, err := gw.ReadProfile(ctx, alice)
					So(err, ShouldBeNil)
					So(lk.Exists(), ShouldBeTrue)
				})
			})
		})

		Convey("When another advisory is shown and the chain matches", func() {
			session.Raise(failure.Cancelled(nil))
			guard.Observe(true, 8453)

			Convey("Then that advisory is left alone", func() {
				a, ok := session.Advisory()
				So(ok, ShouldBeTrue)
				So(a.Kind, ShouldEqual, failure.UserCancelled)
			})
		})

		Convey("When the wallet disconnects on a wrong chain", func() {
			guard.Observe(true, 1)
			guard.Observe(false, 1)

			Convey("Then the guard stops blocking", func() {
				So(guard.Mismatch(), ShouldBeFalse)
				So(guard.Check(), ShouldBeNil)
			})
		})
	})
}
