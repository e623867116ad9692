package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/vouchbase/internal/adapters/ledger"
	"github.com/okian/vouchbase/internal/adapters/ledger/memledger"
	"github.com/okian/vouchbase/internal/adapters/repository"
	service "github.com/okian/vouchbase/internal/app"
	"github.com/okian/vouchbase/internal/config"
	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/pkg/logger"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func TestBuildGateway(t *testing.T) {
	convey.Convey("Given a loaded configuration", t, func() {
		ctx := context.Background()
		cfg := config.New()

		convey.Convey("When the ledger is simulated", func() {
			gw, wallet, err := buildGateway(ctx, cfg, logger.Nop())

			convey.Convey("Then the in-process ledger is used without a wallet", func() {
				convey.So(err, convey.ShouldBeNil)
				_, ok := gw.(*memledger.Ledger)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(wallet, convey.ShouldEqual, model.Address{})

				id, err := gw.ChainID(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(id, convey.ShouldEqual, cfg.ChainID)
			})
		})

		convey.Convey("When the ledger is reached over rpc with a key", func() {
			cfg.LedgerMode = config.LedgerModeRPC
			cfg.RPCURL = "http://127.0.0.1:1"
			cfg.ContractAddress = "0x0000000000000000000000000000000000c0ffee"
			cfg.PrivateKey = "0x" + testKey
			gw, wallet, err := buildGateway(ctx, cfg, logger.Nop())

			convey.Convey("Then the signer becomes the session wallet", func() {
				convey.So(err, convey.ShouldBeNil)
				_, ok := gw.(*ledger.EthGateway)
				convey.So(ok, convey.ShouldBeTrue)

				key, _ := crypto.HexToECDSA(testKey)
				convey.So(wallet, convey.ShouldEqual, crypto.PubkeyToAddress(key.PublicKey))
			})
		})

		convey.Convey("When the key is malformed", func() {
			cfg.LedgerMode = config.LedgerModeRPC
			cfg.RPCURL = "http://127.0.0.1:1"
			cfg.ContractAddress = "0x0000000000000000000000000000000000c0ffee"
			cfg.PrivateKey = "not-a-key"
			_, _, err := buildGateway(ctx, cfg, logger.Nop())

			convey.Convey("Then building fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestServiceOptions(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		cfg := config.New()
		base := len(serviceOptions(cfg, logger.Nop(), model.Address{}))

		convey.Convey("Then rpc mode adds chain polling and a known signer adds the wallet", func() {
			cfg.LedgerMode = config.LedgerModeRPC
			wallet := model.Address{1}
			convey.So(len(serviceOptions(cfg, logger.Nop(), wallet)), convey.ShouldEqual, base+2)
		})

		convey.Convey("Then the options configure a working service", func() {
			svc := service.New(memledger.New(), serviceOptions(cfg, logger.Nop(), model.Address{})...)
			stats := svc.GetStats()
			convey.So(stats["required_chain_id"], convey.ShouldEqual, cfg.ChainID)
			convey.So(stats["page_size"], convey.ShouldEqual, uint64(cfg.PageSize))
		})

		convey.Convey("Then the leaderboard limit reaches the cache", func() {
			cfg.MaxLeaderboardLimit = 20
			svc := service.New(memledger.New(), serviceOptions(cfg, logger.Nop(), model.Address{})...)
			_, err := svc.Leaderboard(context.Background(), 20)
			convey.So(err, convey.ShouldBeNil)
			_, err = svc.Leaderboard(context.Background(), 21)
			convey.So(err, convey.ShouldEqual, repository.ErrInvalidLimit)
		})
	})
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given the assembled mux", t, func() {
		ctx := context.Background()
		cfg := config.New()
		svc := service.New(memledger.New(), service.WithSyncInterval(0), service.WithLogger(logger.Nop()))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()
		mux := newMux(ctx, svc, cfg)

		convey.Convey("Then API and docs routes are served", func() {
			for _, path := range []string{"/healthz", "/stats", "/skills", "/session", "/leaderboard", "/openapi.yaml", "/api-docs"} {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})
	})
}

func TestSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		done := make(chan struct{})
		go func() {
			startSystemMetricsUpdater(ctx)
			close(done)
		}()

		convey.Convey("Then it stops with its context", func() {
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("metrics updater did not stop")
			}
		})
	})
}
