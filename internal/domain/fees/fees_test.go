package fees

import (
	"math/big"
	"testing"

	"github.com/okian/vouchbase/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestQuote(t *testing.T) {
	Convey("Given a fee schedule", t, func() {
		s := Schedule{
			Register: big.NewInt(1000),
			AddSkill: big.NewInt(100),
			Vouch:    big.NewInt(50),
		}

		Convey("When quoting a registration with three skills", func() {
			v, err := s.Quote(model.OpRegister, 3)

			Convey("Then the quote should be base plus per-skill", func() {
				So(err, ShouldBeNil)
				So(v.Int64(), ShouldEqual, 1300)
			})
		})

		Convey("When quoting a registration with no skills", func() {
			v, err := s.Quote(model.OpRegister, 0)
			So(err, ShouldBeNil)
			So(v.Int64(), ShouldEqual, 1000)
		})

		Convey("When quoting the flat fees", func() {
			add, err := s.Quote(model.OpAddSkill, 7)
			So(err, ShouldBeNil)
			So(add.Int64(), ShouldEqual, 100)

			vouch, err := s.Quote(model.OpVouch, 0)
			So(err, ShouldBeNil)
			So(vouch.Int64(), ShouldEqual, 50)

			Convey("Then the result should not alias the schedule", func() {
				vouch.SetInt64(1)
				So(s.Vouch.Int64(), ShouldEqual, 50)
			})
		})

		Convey("When quoting an unknown kind or a negative count", func() {
			_, err := s.Quote(model.OperationKind(42), 0)
			So(err, ShouldWrap, ErrUnknownOperation)

			_, err = s.Quote(model.OpRegister, -1)
			So(err, ShouldNotBeNil)
		})

		Convey("When unit fees are missing", func() {
			v, err := Schedule{}.Quote(model.OpRegister, 4)
			So(err, ShouldBeNil)
			So(v.Sign(), ShouldEqual, 0)
		})
	})
}
