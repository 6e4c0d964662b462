package types_test

import (
	"encoding/json"
	"testing"
	"time"

	types "github.com/pulseboard/pulseboard/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsSnapshot(t *testing.T) {
	Convey("Given a MetricsSnapshot", t, func() {
		Convey("When creating a populated snapshot", func() {
			generated := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			snap := types.MetricsSnapshot{
				ID:       "snap-1",
				TenantID: "loc-1",
				Start:    generated.AddDate(0, -1, 0),
				End:      generated,
				Summary: types.Summary{
					Contacts:      230,
					Opportunities: 40,
					PipelineValue: 125000,
					WonRate:       22.5,
				},
				BySource: []types.CategoryCount{
					{Name: "google", Count: 120, Percentage: 52.17},
					{Name: "facebook", Count: 80, Percentage: 34.78},
					{Name: "referral", Count: 30, Percentage: 13.04},
				},
				GeneratedAt: generated,
			}

			Convey("Then breakdown rows should be ordered by descending count", func() {
				for i := 0; i < len(snap.BySource)-1; i++ {
					So(snap.BySource[i].Count, ShouldBeGreaterThanOrEqualTo, snap.BySource[i+1].Count)
				}
			})

			Convey("Then every percentage should stay within [0, 100]", func() {
				for _, row := range snap.BySource {
					So(row.Percentage, ShouldBeGreaterThanOrEqualTo, 0)
					So(row.Percentage, ShouldBeLessThanOrEqualTo, 100)
				}
				So(snap.Summary.WonRate, ShouldBeGreaterThanOrEqualTo, 0)
				So(snap.Summary.WonRate, ShouldBeLessThanOrEqualTo, 100)
			})

			Convey("Then it should round-trip through JSON", func() {
				raw, err := json.Marshal(snap)
				So(err, ShouldBeNil)

				var decoded types.MetricsSnapshot
				So(json.Unmarshal(raw, &decoded), ShouldBeNil)
				So(decoded.TenantID, ShouldEqual, "loc-1")
				So(len(decoded.BySource), ShouldEqual, 3)
				So(decoded.GeneratedAt.Equal(generated), ShouldBeTrue)
			})
		})

		Convey("When creating a zero-value snapshot", func() {
			snap := types.MetricsSnapshot{}

			Convey("Then it should be empty but well-formed", func() {
				So(snap.TenantID, ShouldEqual, "")
				So(snap.Summary.Contacts, ShouldEqual, 0)
				So(snap.Partial, ShouldBeFalse)
				So(snap.BySource, ShouldBeNil)
			})
		})
	})
}

func TestGuestStats(t *testing.T) {
	Convey("Given guest-count stats", t, func() {
		stats := types.GuestStats{
			SampleSize: 3,
			Total:      75,
			Average:    25,
			Excluded:   2,
			Buckets: []types.GuestBucket{
				{Label: "1-25", Min: 1, Max: 25, Count: 2, Percentage: 66.67},
				{Label: "26-50", Min: 26, Max: 50, Count: 1, Percentage: 33.33},
				{Label: "200+", Min: 201, Max: 0, Count: 0, Percentage: 0},
			},
		}

		Convey("Then bucketed counts should not exceed the sample size", func() {
			sum := 0
			for _, b := range stats.Buckets {
				sum += b.Count
			}
			So(sum, ShouldBeLessThanOrEqualTo, stats.SampleSize)
		})

		Convey("Then the open-ended bucket should carry a zero max", func() {
			So(stats.Buckets[2].Max, ShouldEqual, 0)
		})
	})
}
