package credentials_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	credentials "github.com/pulseboard/pulseboard/internal/adapters/credentials"
	model "github.com/pulseboard/pulseboard/internal/domain/model"
	"github.com/pulseboard/pulseboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

// fakeExchanger counts exchanges and can be told to fail.
type fakeExchanger struct {
	calls atomic.Int64
	delay time.Duration
	fail  bool
}

func (f *fakeExchanger) ExchangeRefreshToken(ctx context.Context, refreshToken string) (model.Credential, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return model.Credential{}, ctx.Err()
		}
	}
	if f.fail {
		return model.Credential{}, errors.New("invalid_grant")
	}
	return model.Credential{
		AccessToken:  "fresh-" + refreshToken,
		RefreshToken: "rotated-" + refreshToken,
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

func TestFileStore(t *testing.T) {
	Convey("Given a credential store", t, func() {
		ctx := context.Background()
		key := credentials.Key{Platform: "crm", Tenant: "loc-1"}
		cred := model.Credential{
			AccessToken:  "tok-1",
			RefreshToken: "ref-1",
			ExpiresAt:    time.Now().Add(time.Hour),
			AuthClass:    model.AuthClassLocation,
		}

		Convey("When storing and reading a credential", func() {
			store, err := credentials.NewFileStore()
			So(err, ShouldBeNil)

			So(store.Set(ctx, key, cred), ShouldBeNil)

			got, err := store.Get(ctx, key)

			Convey("Then the stored credential should come back", func() {
				So(err, ShouldBeNil)
				So(got.AccessToken, ShouldEqual, "tok-1")
				So(store.Count(ctx), ShouldEqual, 1)
			})
		})

		Convey("When reading an unknown key", func() {
			store, err := credentials.NewFileStore()
			So(err, ShouldBeNil)

			_, err = store.Get(ctx, credentials.Key{Platform: "crm", Tenant: "missing"})

			Convey("Then it should report not found", func() {
				So(errors.Is(err, credentials.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When deleting a credential", func() {
			store, err := credentials.NewFileStore()
			So(err, ShouldBeNil)
			So(store.Set(ctx, key, cred), ShouldBeNil)

			So(store.Delete(ctx, key), ShouldBeNil)

			Convey("Then the tenant should be disconnected", func() {
				_, err := store.Get(ctx, key)
				So(errors.Is(err, credentials.ErrNotFound), ShouldBeTrue)
				So(store.Count(ctx), ShouldEqual, 0)
			})

			Convey("And deleting again should report not found", func() {
				So(errors.Is(store.Delete(ctx, key), credentials.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When persistence is enabled", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "credentials.json")

			store, err := credentials.NewFileStore(credentials.WithFile(path))
			So(err, ShouldBeNil)
			So(store.Set(ctx, key, cred), ShouldBeNil)

			Convey("Then a new store should load the persisted credential", func() {
				reloaded, err := credentials.NewFileStore(credentials.WithFile(path))
				So(err, ShouldBeNil)

				got, err := reloaded.Get(ctx, key)
				So(err, ShouldBeNil)
				So(got.AccessToken, ShouldEqual, "tok-1")
				So(got.AuthClass, ShouldEqual, model.AuthClassLocation)
			})

			Convey("And a corrupt file should fail loading", func() {
				So(os.WriteFile(path, []byte("{not json"), 0o600), ShouldBeNil)

				_, err := credentials.NewFileStore(credentials.WithFile(path))
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When refreshing a credential", func() {
			Convey("And the exchange succeeds", func() {
				ex := &fakeExchanger{}
				store, err := credentials.NewFileStore(credentials.WithExchanger(ex))
				So(err, ShouldBeNil)
				So(store.Set(ctx, key, cred), ShouldBeNil)

				fresh, err := store.Refresh(ctx, key)

				Convey("Then the credential should be replaced", func() {
					So(err, ShouldBeNil)
					So(fresh.AccessToken, ShouldEqual, "fresh-ref-1")
					So(fresh.RefreshToken, ShouldEqual, "rotated-ref-1")
					So(fresh.AuthClass, ShouldEqual, model.AuthClassLocation)

					stored, err := store.Get(ctx, key)
					So(err, ShouldBeNil)
					So(stored.AccessToken, ShouldEqual, "fresh-ref-1")
				})
			})

			Convey("And the exchange fails", func() {
				ex := &fakeExchanger{fail: true}
				store, err := credentials.NewFileStore(credentials.WithExchanger(ex))
				So(err, ShouldBeNil)
				So(store.Set(ctx, key, cred), ShouldBeNil)

				_, err = store.Refresh(ctx, key)

				Convey("Then the stored credential should be untouched", func() {
					So(err, ShouldNotBeNil)

					stored, getErr := store.Get(ctx, key)
					So(getErr, ShouldBeNil)
					So(stored.AccessToken, ShouldEqual, "tok-1")
					So(stored.RefreshToken, ShouldEqual, "ref-1")
				})
			})

			Convey("And there is no refresh token", func() {
				ex := &fakeExchanger{}
				store, err := credentials.NewFileStore(credentials.WithExchanger(ex))
				So(err, ShouldBeNil)
				So(store.Set(ctx, key, model.Credential{AccessToken: "tok-only"}), ShouldBeNil)

				_, err = store.Refresh(ctx, key)

				Convey("Then it should fail without calling the exchanger", func() {
					So(errors.Is(err, credentials.ErrNoRefreshToken), ShouldBeTrue)
					So(ex.calls.Load(), ShouldEqual, 0)
				})
			})

			Convey("And many goroutines refresh concurrently", func() {
				ex := &fakeExchanger{delay: 50 * time.Millisecond}
				store, err := credentials.NewFileStore(credentials.WithExchanger(ex))
				So(err, ShouldBeNil)
				So(store.Set(ctx, key, cred), ShouldBeNil)

				const goroutines = 20
				results := make([]model.Credential, goroutines)
				var wg sync.WaitGroup
				for i := 0; i < goroutines; i++ {
					wg.Add(1)
					go func(idx int) {
						defer wg.Done()
						c, refreshErr := store.Refresh(ctx, key)
						if refreshErr == nil {
							results[idx] = c
						}
					}(i)
				}
				wg.Wait()

				Convey("Then exactly one exchange should happen", func() {
					So(ex.calls.Load(), ShouldEqual, 1)
					for _, c := range results {
						So(c.AccessToken, ShouldEqual, "fresh-ref-1")
					}
				})
			})
		})
	})
}
