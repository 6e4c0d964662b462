package service_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	service "github.com/pulseboard/pulseboard/internal/app"
	"github.com/pulseboard/pulseboard/internal/crmsim"
	"github.com/pulseboard/pulseboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// startService spins up a seeded simulator plus a service wired to it.
func startService(t *testing.T, sim *crmsim.Server, opts ...service.Option) (*service.Service, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(sim.Handler())

	base := []service.Option{
		service.WithBaseURL(server.URL),
		service.WithOAuthApp("sim-client", "sim-secret", "http://localhost/callback"),
		service.WithRateLimit(10_000, time.Second, 0),
		service.WithWorkerCount(2),
		service.WithCacheTTL(time.Minute),
	}
	svc := service.New(append(base, opts...)...)

	if err := svc.Start(context.Background()); err != nil {
		server.Close()
		t.Fatalf("start service: %v", err)
	}

	return svc, server
}

func connectTenant(ctx context.Context, svc *service.Service, sim *crmsim.Server, tenantID string) error {
	access, refresh := sim.IssueLocationToken(tenantID)

	return svc.SetCredential(ctx, tenantID, model.Credential{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().Add(time.Hour),
		AuthClass:    model.AuthClassLocation,
		LocationID:   tenantID,
	})
}

func monthRange(month time.Month) model.DateRange {
	return model.DateRange{
		Start: time.Date(2026, month, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, month, 28, 0, 0, 0, 0, time.UTC),
	}
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service connected to a simulated platform", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		sim := crmsim.New(crmsim.WithRetryAfter(0))
		sim.SeedTenant("loc-1")

		svc, server := startService(t, sim)
		defer server.Close()
		defer svc.Stop()

		So(connectTenant(ctx, svc, sim, "loc-1"), ShouldBeNil)

		Convey("When requesting metrics for a connected tenant", func() {
			snapshot, err := svc.GetMetrics(ctx, "loc-1", monthRange(time.March))

			Convey("Then a complete snapshot should come back", func() {
				So(err, ShouldBeNil)
				So(snapshot, ShouldNotBeNil)
				So(snapshot.TenantID, ShouldEqual, "loc-1")
				So(snapshot.Partial, ShouldBeFalse)
				So(snapshot.Summary.Contacts, ShouldEqual, 230)
				So(snapshot.Summary.Opportunities, ShouldEqual, 40)
				So(snapshot.Summary.CalendarEvents, ShouldEqual, 60)
				So(snapshot.Summary.Funnels, ShouldEqual, 3)
				So(snapshot.Summary.FunnelPages, ShouldEqual, 12)
				So(snapshot.Guests.SampleSize, ShouldBeGreaterThan, 0)
				So(len(snapshot.BySource), ShouldBeGreaterThan, 0)
				So(snapshot.Funnel.TotalViews, ShouldBeGreaterThan, 0)
			})

			Convey("And a repeat request should be served from cache", func() {
				So(err, ShouldBeNil)

				again, cachedErr := svc.GetMetrics(ctx, "loc-1", monthRange(time.March))
				So(cachedErr, ShouldBeNil)
				So(again, ShouldEqual, snapshot)
				So(svc.GetStats()["cachedSnapshots"], ShouldEqual, 1)
			})
		})

		Convey("When the access token is revoked mid-session", func() {
			first, err := svc.GetMetrics(ctx, "loc-1", monthRange(time.March))
			So(err, ShouldBeNil)
			So(first, ShouldNotBeNil)

			keys := svc.ConnectedTenants(ctx)
			So(len(keys), ShouldEqual, 1)

			// Force a refresh on the next platform call.
			sim.FailAuth(1)

			snapshot, err := svc.GetMetrics(ctx, "loc-1", monthRange(time.April))

			Convey("Then the service should refresh and recover", func() {
				So(err, ShouldBeNil)
				So(snapshot.Summary.Contacts, ShouldEqual, 230)
			})
		})

		Convey("When the platform rate-limits every request", func() {
			sim.RateLimit(1_000)

			snapshot, err := svc.GetMetrics(ctx, "loc-1", monthRange(time.May))

			Convey("Then a partial snapshot should still be produced", func() {
				So(err, ShouldBeNil)
				So(snapshot.Partial, ShouldBeTrue)
				So(snapshot.Summary.Contacts, ShouldEqual, 0)
			})

			sim.RateLimit(0)
		})

		Convey("When requesting metrics for an unknown tenant", func() {
			_, err := svc.GetMetrics(ctx, "loc-nope", monthRange(time.March))

			Convey("Then the request should fail fast", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When scheduling a warm job", func() {
			ok, err := svc.ScheduleWarm(ctx, "loc-1", monthRange(time.June))
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			Convey("Then the snapshot should eventually land in the cache", func() {
				deadline := time.Now().Add(10 * time.Second)
				for time.Now().Before(deadline) {
					if svc.GetStats()["cachedSnapshots"].(int) > 0 {
						break
					}
					time.Sleep(20 * time.Millisecond)
				}
				So(svc.GetStats()["cachedSnapshots"], ShouldBeGreaterThan, 0)
			})
		})

		Convey("When disconnecting the tenant", func() {
			_, err := svc.GetMetrics(ctx, "loc-1", monthRange(time.March))
			So(err, ShouldBeNil)

			So(svc.Disconnect(ctx, "loc-1"), ShouldBeNil)

			Convey("Then its credential and cache entries should be gone", func() {
				So(svc.GetStats()["connectedTenants"], ShouldEqual, 0)
				So(svc.GetStats()["cachedSnapshots"], ShouldEqual, 0)

				_, err := svc.GetMetrics(ctx, "loc-1", monthRange(time.March))
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestServiceOAuthOnboarding(t *testing.T) {
	Convey("Given a simulated platform with an onboarding code", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		sim := crmsim.New()
		sim.SeedTenant("loc-9")

		svc, server := startService(t, sim)
		defer server.Close()
		defer svc.Stop()

		Convey("When exchanging the authorization code", func() {
			err := svc.ConnectWithCode(ctx, "", "code:loc-9")

			Convey("Then the tenant should be connected and queryable", func() {
				So(err, ShouldBeNil)
				So(svc.GetStats()["connectedTenants"], ShouldEqual, 1)

				snapshot, err := svc.GetMetrics(ctx, "loc-9", monthRange(time.March))
				So(err, ShouldBeNil)
				So(snapshot.Summary.Contacts, ShouldEqual, 230)
			})
		})

		Convey("When exchanging a bogus code", func() {
			err := svc.ConnectWithCode(ctx, "", "code:does-not-exist")

			Convey("Then onboarding should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestServiceAgencyListing(t *testing.T) {
	Convey("Given an agency credential over several locations", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		sim := crmsim.New()
		sim.SeedTenant("loc-a")
		sim.SeedTenant("loc-b")
		sim.SeedTenant("loc-c")

		svc, server := startService(t, sim)
		defer server.Close()
		defer svc.Stop()

		access, refresh := sim.IssueAgencyToken()
		So(svc.SetCredential(ctx, "agency-1", model.Credential{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresAt:    time.Now().Add(time.Hour),
			AuthClass:    model.AuthClassAgency,
		}), ShouldBeNil)

		Convey("When listing tenants", func() {
			tenants, err := svc.ListTenants(ctx, "agency-1")

			Convey("Then every seeded location should be listed", func() {
				So(err, ShouldBeNil)
				So(len(tenants), ShouldEqual, 3)
			})
		})

		Convey("When listing tenants with a location credential", func() {
			So(connectTenant(ctx, svc, sim, "loc-a"), ShouldBeNil)

			_, err := svc.ListTenants(ctx, "loc-a")

			Convey("Then the call should be refused", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
