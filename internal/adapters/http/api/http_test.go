package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vouchbase/internal/adapters/http/api"
	"github.com/okian/vouchbase/internal/adapters/ledger"
	"github.com/okian/vouchbase/internal/adapters/ledger/memledger"
	"github.com/okian/vouchbase/internal/adapters/repository"
	service "github.com/okian/vouchbase/internal/app"
	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/pkg/logger"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func seed(l *memledger.Ledger, addr model.Address, name string, skills ...model.SkillID) {
	ctx := context.Background()
	fee, _ := l.QuoteFee(ctx, model.OpRegister, len(skills))
	h, err := l.Submit(ctx, addr, ledger.RegisterPayload(name, "", "", skills), fee)
	if err != nil {
		panic(err)
	}
	if _, err := l.AwaitConfirmation(ctx, h); err != nil {
		panic(err)
	}
}

type fixture struct {
	ledger *memledger.Ledger
	svc    *service.Service
	mux    *http.ServeMux
}

func newFixture() *fixture {
	l := memledger.New()
	svc := service.New(l, service.WithSyncInterval(0), service.WithLogger(logger.Nop()))
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc, 50).Register(context.Background(), mux)
	return &fixture{ledger: l, svc: svc, mux: mux}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func (f *fixture) connect(addr model.Address, chainID int) {
	body := `{"address":"` + addr.Hex() + `","connected":true,"chain_id":` + strconv.Itoa(chainID) + `}`
	if w := f.do(http.MethodPost, "/session", body); w.Code != http.StatusOK {
		panic(w.Body.String())
	}
}

func decodeBody(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		panic(err)
	}
	return out
}

func TestServer_ReadRoutes(t *testing.T) {
	Convey("Given the API over a simulated ledger", t, func() {
		f := newFixture()
		defer f.svc.Stop()

		Convey("Then /healthz exposes metrics", func() {
			w := f.do(http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "vouchbase_client_")
		})

		Convey("Then /skills lists the catalog by category", func() {
			w := f.do(http.MethodGet, "/skills", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body struct {
				Skills     []map[string]any `json:"skills"`
				Categories []struct {
					Name   string `json:"name"`
					Skills []int  `json:"skills"`
				} `json:"categories"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(len(body.Skills), ShouldEqual, 25)
			So(len(body.Categories), ShouldEqual, 7)
			So(body.Categories[0].Name, ShouldEqual, "Smart Contracts")
			So(body.Categories[0].Skills, ShouldResemble, []int{1, 2, 3, 4})
		})

		Convey("Then /leaderboard validates the limit", func() {
			So(f.do(http.MethodGet, "/leaderboard?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(f.do(http.MethodGet, "/leaderboard?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
			w := f.do(http.MethodGet, "/leaderboard?limit=51", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeBody(w)["code"], ShouldEqual, "limit_exceeded")
			So(f.do(http.MethodGet, "/leaderboard?limit=5", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then unknown wallets are 404 and malformed ones 400", func() {
			w := f.do(http.MethodGet, "/builders/"+bob.Hex(), "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeBody(w)["code"], ShouldEqual, "not_found")
			So(decodeBody(w)["message"], ShouldEqual, "Builder not found")
			So(f.do(http.MethodGet, "/builders/0x12", "").Code, ShouldEqual, http.StatusBadRequest)
			So(f.do(http.MethodGet, "/rank/"+bob.Hex(), "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then username lookups need a name and miss unknown ones", func() {
			w := f.do(http.MethodGet, "/builders", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeBody(w)["code"], ShouldEqual, "bad_request")
			w = f.do(http.MethodGet, "/builders?username=nobody", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeBody(w)["code"], ShouldEqual, "not_found")
		})

		Convey("Then wrong methods are 404", func() {
			So(f.do(http.MethodPost, "/leaderboard", "").Code, ShouldEqual, http.StatusNotFound)
			So(f.do(http.MethodGet, "/vouch", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then /refresh validates and coalesces jobs", func() {
			So(f.do(http.MethodPost, "/refresh", `{"kind":"nope"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(f.do(http.MethodPost, "/refresh", `{"kind":"profile","address":"x"}`).Code, ShouldEqual, http.StatusBadRequest)
			w := f.do(http.MethodPost, "/refresh", `{"kind":"profile","address":"`+alice.Hex()+`"}`)
			So(w.Code, ShouldBeIn, []int{http.StatusAccepted, http.StatusOK})
		})

		Convey("Then /stats carries service stats", func() {
			w := f.do(http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			svc := decodeBody(w)["service"].(map[string]any)
			So(svc["started"], ShouldEqual, true)
		})
	})
}

func TestServer_WriteFlows(t *testing.T) {
	Convey("Given a connected wallet", t, func() {
		f := newFixture()
		defer f.svc.Stop()
		f.connect(alice, 8453)

		w := f.do(http.MethodGet, "/session", "")
		So(w.Code, ShouldEqual, http.StatusOK)
		So(decodeBody(w)["registered"], ShouldEqual, false)

		Convey("When it registers", func() {
			w := f.do(http.MethodPost, "/register", `{"username":"alice","skills":[1,5]}`)

			Convey("Then the write is confirmed with the quoted fee", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["fee_wei"], ShouldEqual, "120000000000000")
				So(body["operation"].(map[string]any)["state"], ShouldEqual, "confirmed")
			})

			Convey("Then the profile is served with skill names", func() {
				w := f.do(http.MethodGet, "/builders/"+alice.Hex(), "")
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["username"], ShouldEqual, "alice")
				skills := body["skills"].([]any)
				So(len(skills), ShouldEqual, 2)
				So(skills[1].(map[string]any)["name"], ShouldEqual, "React")
			})

			Convey("Then the session is registered", func() {
				body := decodeBody(f.do(http.MethodGet, "/session", ""))
				So(body["registered"], ShouldEqual, true)
				So(body["busy"], ShouldEqual, false)
			})
		})

		Convey("When the registration form is invalid", func() {
			So(f.do(http.MethodPost, "/register", `{"username":"alice","skills":[1,1]}`).Code, ShouldEqual, http.StatusBadRequest)
			So(f.do(http.MethodPost, "/register", `{"username":"","skills":[1]}`).Code, ShouldEqual, http.StatusBadRequest)
			So(f.do(http.MethodPost, "/register", `{"username":"alice","skills":[99]}`).Code, ShouldEqual, http.StatusBadRequest)
			So(f.do(http.MethodPost, "/register", `{"username":"alice","skills":[1],"extra":1}`).Code, ShouldEqual, http.StatusBadRequest)

			Convey("Then nothing reached the ledger", func() {
				So(f.ledger.Transactions(), ShouldBeEmpty)
			})
		})

		Convey("When vouching for a registered builder", func() {
			seed(f.ledger, bob, "bob", 2, 3)
			w := f.do(http.MethodPost, "/vouch", `{"builder":"`+bob.Hex()+`","skill":2}`)

			Convey("Then the builder found by username shows the viewer's vouch", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				r := f.do(http.MethodGet, "/builders?username=bob", "")
				So(r.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(r)
				So(body["wallet"], ShouldEqual, bob.Hex())
				sk := body["skills"].([]any)
				So(len(sk), ShouldEqual, 2)
				So(sk[0].(map[string]any)["vouched_by_viewer"], ShouldEqual, true)
				_, flagged := sk[1].(map[string]any)["vouched_by_viewer"]
				So(flagged, ShouldBeFalse)
			})

			Convey("Then the board ranks the builder", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				r := f.do(http.MethodGet, "/rank/"+bob.Hex(), "")
				So(r.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(r)
				So(body["rank"], ShouldEqual, 1.0)
				So(body["profile"].(map[string]any)["credibility_score"], ShouldEqual, 1.0)

				lb := f.do(http.MethodGet, "/leaderboard?limit=10", "")
				var entries []map[string]any
				So(json.Unmarshal(lb.Body.Bytes(), &entries), ShouldBeNil)
				So(len(entries), ShouldEqual, 1)
				So(entries[0]["username"], ShouldEqual, "bob")
			})
		})

		Convey("When the user declines the vouch signature", func() {
			seed(f.ledger, bob, "bob", 2)
			f.ledger.DeclineNextSignature()
			w := f.do(http.MethodPost, "/vouch", `{"builder":"`+bob.Hex()+`","skill":2}`)

			Convey("Then the failure is classified and shown as the advisory", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				body := decodeBody(w)
				So(body["code"], ShouldEqual, "user_cancelled")
				So(body["message"], ShouldEqual, "Transaction cancelled")

				s := decodeBody(f.do(http.MethodGet, "/session", ""))
				So(s["advisory"].(map[string]any)["message"], ShouldEqual, "Transaction cancelled")

				So(f.do(http.MethodDelete, "/session/advisory", "").Code, ShouldEqual, http.StatusNoContent)
				s = decodeBody(f.do(http.MethodGet, "/session", ""))
				So(s["advisory"], ShouldBeNil)
			})
		})

		Convey("When the ledger rejects the vouch", func() {
			w := f.do(http.MethodPost, "/vouch", `{"builder":"`+bob.Hex()+`","skill":2}`)

			Convey("Then the revert reason is returned verbatim", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				body := decodeBody(w)
				So(body["code"], ShouldEqual, "ledger_rejected")
				So(body["message"], ShouldEqual, memledger.ReasonBuilderMissing)
			})
		})

		Convey("When vouching for itself", func() {
			w := f.do(http.MethodPost, "/vouch", `{"builder":"`+alice.Hex()+`","skill":2}`)

			Convey("Then it is refused", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeBody(w)["code"], ShouldEqual, "self_vouch")
			})
		})

		Convey("When the wallet switches to another chain", func() {
			f.connect(alice, 1)

			Convey("Then the session shows the network advisory and writes are blocked", func() {
				s := decodeBody(f.do(http.MethodGet, "/session", ""))
				adv := s["advisory"].(map[string]any)
				So(adv["code"], ShouldEqual, "wrong_network")
				So(adv["message"], ShouldEqual, "Please switch to Base network (Chain ID: 8453)")

				w := f.do(http.MethodPost, "/skills/claim", `{"skill":3}`)
				So(w.Code, ShouldEqual, http.StatusPreconditionFailed)
				So(decodeBody(w)["code"], ShouldEqual, "wrong_network")
			})
		})
	})

	Convey("Given no connected wallet", t, func() {
		f := newFixture()
		defer f.svc.Stop()

		Convey("Then writes are refused", func() {
			w := f.do(http.MethodPost, "/skills/claim", `{"skill":3}`)
			So(w.Code, ShouldEqual, http.StatusPreconditionFailed)
			So(decodeBody(w)["code"], ShouldEqual, "not_connected")
		})
	})
}

// stubDeps returns fixed errors from every call.
type stubDeps struct {
	err error
}

func (s *stubDeps) Leaderboard(context.Context, int) ([]repository.Entry, error) { return nil, s.err }
func (s *stubDeps) Rank(context.Context, model.Address) (repository.Entry, error) {
	return repository.Entry{}, s.err
}
func (s *stubDeps) Profile(context.Context, model.Address) (model.Lookup, error) {
	return model.NotFound(), s.err
}
func (s *stubDeps) FindBuilder(context.Context, string) (model.Lookup, error) {
	return model.NotFound(), s.err
}
func (s *stubDeps) VouchedSkills(context.Context, model.Address, []model.SkillID) ([]model.SkillID, error) {
	return nil, nil
}
func (s *stubDeps) SessionView() service.SessionView { return service.SessionView{} }
func (s *stubDeps) Connect(context.Context, model.Address, bool, uint64) service.SessionView {
	return service.SessionView{}
}
func (s *stubDeps) DismissAdvisory() {}
func (s *stubDeps) Register(context.Context, service.RegisterRequest) (service.Result, error) {
	return service.Result{}, s.err
}
func (s *stubDeps) Vouch(context.Context, model.Address, model.SkillID) (service.Result, error) {
	return service.Result{}, s.err
}
func (s *stubDeps) AddSkill(context.Context, model.SkillID) (service.Result, error) {
	return service.Result{}, s.err
}
func (s *stubDeps) RequestRefresh(context.Context, model.RefreshJob) (bool, error) { return false, s.err }
func (s *stubDeps) GetStats() map[string]interface{}                               { return nil }
func (s *stubDeps) GlobalStats(context.Context) (model.GlobalStats, bool)          { return model.GlobalStats{}, false }

func TestServer_ErrorMapping(t *testing.T) {
	Convey("Given handlers over failing dependencies", t, func() {
		cases := []struct {
			err    error
			method string
			path   string
			body   string
			status int
			code   string
		}{
			{service.ErrBusy, http.MethodPost, "/vouch", `{"builder":"` + bob.Hex() + `","skill":2}`, http.StatusConflict, "busy"},
			{service.ErrBusy, http.MethodPost, "/register", `{"username":"alice","skills":[1]}`, http.StatusConflict, "busy"},
			{service.ErrQueueFull, http.MethodPost, "/refresh", `{"kind":"board"}`, http.StatusTooManyRequests, "backpressure"},
			{service.ErrNotStarted, http.MethodPost, "/refresh", `{"kind":"stats"}`, http.StatusServiceUnavailable, "unavailable"},
			{repository.ErrInvalidLimit, http.MethodGet, "/leaderboard?limit=3", "", http.StatusBadRequest, "bad_request"},
			{context.DeadlineExceeded, http.MethodGet, "/builders/" + bob.Hex(), "", http.StatusBadGateway, "unknown"},
			{context.DeadlineExceeded, http.MethodGet, "/builders?username=bob", "", http.StatusBadGateway, "unknown"},
		}

		for _, c := range cases {
			mux := http.NewServeMux()
			deps := &stubDeps{err: c.err}
			api.NewServer(deps, deps, 50).Register(context.Background(), mux)

			req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, c.status)
			So(decodeBody(w)["code"], ShouldEqual, c.code)
		}
	})
}
