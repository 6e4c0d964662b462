package aggregate_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	aggregate "github.com/pulseboard/pulseboard/internal/domain/aggregate"
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

func contactWithGuests(id, source, guestValue string) model.RawContact {
	c := model.RawContact{
		ID:     id,
		Name:   "Contact " + id,
		Source: source,
	}
	if guestValue != "" {
		c.CustomFields = []model.CustomField{
			{ID: "cf-color", Value: "blue"},
			{ID: "cf-guests", Value: guestValue},
		}
	}
	return c
}

func testRange() model.DateRange {
	return model.DateRange{
		Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC),
	}
}

func TestInMemoryAggregator_GuestExtraction(t *testing.T) {
	Convey("Given a new in-memory aggregator", t, func() {
		agg := aggregate.NewInMemoryAggregator()
		ctx := context.Background()

		Convey("When a contact carries a plausible guest count", func() {
			snap, err := agg.Build(ctx, aggregate.Input{
				TenantID: "loc-1",
				Range:    testRange(),
				Contacts: []model.RawContact{contactWithGuests("c1", "google", "45")},
			})

			Convey("Then it should be counted", func() {
				So(err, ShouldBeNil)
				So(snap.Guests.SampleSize, ShouldEqual, 1)
				So(snap.Guests.Total, ShouldEqual, 45)
				So(snap.Guests.Excluded, ShouldEqual, 0)
			})
		})

		Convey("When a contact carries an implausible guest count", func() {
			snap, err := agg.Build(ctx, aggregate.Input{
				TenantID: "loc-1",
				Range:    testRange(),
				Contacts: []model.RawContact{contactWithGuests("c1", "google", "4500")},
			})

			Convey("Then the record should be excluded", func() {
				So(err, ShouldBeNil)
				So(snap.Guests.SampleSize, ShouldEqual, 0)
				So(snap.Guests.Total, ShouldEqual, 0)
				So(snap.Guests.Excluded, ShouldEqual, 1)
				So(snap.Summary.ExcludedRecords, ShouldEqual, 1)
			})
		})

		Convey("When a contact has no numeric custom field", func() {
			snap, err := agg.Build(ctx, aggregate.Input{
				TenantID: "loc-1",
				Range:    testRange(),
				Contacts: []model.RawContact{contactWithGuests("c1", "google", "abc")},
			})

			Convey("Then it should be neither counted nor excluded", func() {
				So(err, ShouldBeNil)
				So(snap.Guests.SampleSize, ShouldEqual, 0)
				So(snap.Guests.Excluded, ShouldEqual, 0)
			})
		})

		Convey("When the guest total would exceed the sanity cap", func() {
			contacts := make([]model.RawContact, 25)
			for i := range contacts {
				// 25 x 450 = 11,250, past the 10,000 cap.
				contacts[i] = contactWithGuests(fmt.Sprintf("c%d", i), "google", "450")
			}

			snap, err := agg.Build(ctx, aggregate.Input{
				TenantID: "loc-1",
				Range:    testRange(),
				Contacts: contacts,
			})

			Convey("Then the total should be reset to zero", func() {
				So(err, ShouldBeNil)
				So(snap.Guests.SampleSize, ShouldEqual, 25)
				So(snap.Guests.Total, ShouldEqual, 0)
			})
		})

		Convey("When contacts mix valid, invalid, and non-numeric values", func() {
			values := []string{"10", "25", "9999", "40", "-5", "abc"}
			var contacts []model.RawContact
			for i, v := range values {
				contacts = append(contacts, contactWithGuests(fmt.Sprintf("c%d", i), "google", v))
			}

			snap, err := agg.Build(ctx, aggregate.Input{
				TenantID: "loc-1",
				Range:    testRange(),
				Contacts: contacts,
			})

			Convey("Then only the valid values should contribute", func() {
				So(err, ShouldBeNil)
				So(snap.Guests.SampleSize, ShouldEqual, 3)
				So(snap.Guests.Total, ShouldEqual, 75)
				So(snap.Guests.Average, ShouldEqual, 25.0)
				So(snap.Guests.Excluded, ShouldEqual, 2)
			})

			Convey("And the values should land in their buckets", func() {
				So(err, ShouldBeNil)
				So(snap.Guests.Buckets[0].Count, ShouldEqual, 2) // 10 and 25
				So(snap.Guests.Buckets[1].Count, ShouldEqual, 1) // 40
				So(snap.Guests.Buckets[2].Count, ShouldEqual, 0)
			})
		})
	})
}

func TestInMemoryAggregator_Breakdowns(t *testing.T) {
	Convey("Given contacts from several sources", t, func() {
		agg := aggregate.NewInMemoryAggregator()
		ctx := context.Background()

		var contacts []model.RawContact
		add := func(source string, n int) {
			for i := 0; i < n; i++ {
				contacts = append(contacts, contactWithGuests(fmt.Sprintf("%s-%d", source, i), source, ""))
			}
		}
		add("google", 120)
		add("facebook", 80)
		add("referral", 30)

		snap, err := agg.Build(ctx, aggregate.Input{
			TenantID: "loc-1",
			Range:    testRange(),
			Contacts: contacts,
		})

		Convey("Then the breakdown should be sorted by descending count", func() {
			So(err, ShouldBeNil)
			So(len(snap.BySource), ShouldEqual, 3)
			So(snap.BySource[0].Name, ShouldEqual, "google")
			So(snap.BySource[1].Name, ShouldEqual, "facebook")
			So(snap.BySource[2].Name, ShouldEqual, "referral")
		})

		Convey("Then the percentages should sum to 100 within rounding", func() {
			So(err, ShouldBeNil)
			sum := 0.0
			for _, row := range snap.BySource {
				So(row.Percentage, ShouldBeGreaterThanOrEqualTo, 0)
				So(row.Percentage, ShouldBeLessThanOrEqualTo, 100)
				sum += row.Percentage
			}
			So(sum, ShouldAlmostEqual, 100, 0.05)
		})

		Convey("When there are no entities at all", func() {
			empty, buildErr := agg.Build(ctx, aggregate.Input{TenantID: "loc-2", Range: testRange()})

			Convey("Then breakdowns should be empty and rates zero", func() {
				So(buildErr, ShouldBeNil)
				So(empty.BySource, ShouldBeNil)
				So(empty.Summary.WonRate, ShouldEqual, 0)
				So(empty.Funnel.ClickRate, ShouldEqual, 0)
				So(empty.Guests.Average, ShouldEqual, 0)
			})
		})
	})
}

func TestInMemoryAggregator_OpportunitiesAndFunnels(t *testing.T) {
	Convey("Given opportunities and funnel pages", t, func() {
		agg := aggregate.NewInMemoryAggregator()
		ctx := context.Background()

		snap, err := agg.Build(ctx, aggregate.Input{
			TenantID: "loc-1",
			Range:    testRange(),
			Opportunities: []model.RawOpportunity{
				{ID: "o1", Value: 1000, Status: "won", StageName: "Closed"},
				{ID: "o2", Value: 2500, Status: "open", StageName: "Negotiation"},
				{ID: "o3", Value: 500, Status: "Won", StageName: "Closed"},
				{ID: "o4", Value: 0, Status: "lost", StageName: "Closed"},
			},
			Funnels: []model.RawFunnel{{ID: "f1", Name: "Main"}},
			Pages: []model.RawFunnelPage{
				{ID: "p1", FunnelID: "f1", Views: 1000, Clicks: 200, Conversions: 50},
				{ID: "p2", FunnelID: "f1", Views: 500, Clicks: 100, Conversions: 25},
			},
		})

		Convey("Then pipeline totals should be exact", func() {
			So(err, ShouldBeNil)
			So(snap.Summary.PipelineValue, ShouldEqual, 4000.0)
			So(snap.Summary.WonRate, ShouldEqual, 50.0)
		})

		Convey("Then the stage breakdown should lead with the biggest stage", func() {
			So(err, ShouldBeNil)
			So(snap.ByStage[0].Name, ShouldEqual, "Closed")
			So(snap.ByStage[0].Count, ShouldEqual, 3)
		})

		Convey("Then funnel rates should be derived from summed traffic", func() {
			So(err, ShouldBeNil)
			So(snap.Funnel.TotalViews, ShouldEqual, 1500)
			So(snap.Funnel.TotalClicks, ShouldEqual, 300)
			So(snap.Funnel.TotalConversions, ShouldEqual, 75)
			So(snap.Funnel.ClickRate, ShouldEqual, 20.0)
			So(snap.Funnel.ConversionRate, ShouldEqual, 5.0)
		})
	})
}

func TestInMemoryAggregator_Determinism(t *testing.T) {
	Convey("Given a fixed clock and id generator", t, func() {
		fixed := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
		agg := aggregate.NewInMemoryAggregator(
			aggregate.WithClock(func() time.Time { return fixed }),
			aggregate.WithIDGenerator(func() string { return "snap-fixed" }),
		)
		ctx := context.Background()

		in := aggregate.Input{
			TenantID: "loc-1",
			Range:    testRange(),
			Contacts: []model.RawContact{
				contactWithGuests("c1", "google", "45"),
				contactWithGuests("c2", "facebook", "30"),
			},
			Partial: true,
		}

		Convey("When building the same input twice", func() {
			first, err1 := agg.Build(ctx, in)
			second, err2 := agg.Build(ctx, in)

			Convey("Then the snapshots should be identical", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(first.ID, ShouldEqual, "snap-fixed")
				So(first.GeneratedAt.Equal(fixed), ShouldBeTrue)
				So(first.Partial, ShouldBeTrue)
				So(*first, ShouldResemble, *second)
			})
		})

		Convey("When the context is already cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			snap, err := agg.Build(cancelled, in)

			Convey("Then it should fail without a snapshot", func() {
				So(err, ShouldNotBeNil)
				So(snap, ShouldBeNil)
			})
		})
	})
}
