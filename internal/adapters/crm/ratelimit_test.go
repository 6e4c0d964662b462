package crm_test

import (
	"context"
	"testing"
	"time"

	crm "github.com/pulseboard/pulseboard/internal/adapters/crm"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRateLimiter(t *testing.T) {
	Convey("Given a fixed-window rate limiter", t, func() {
		ctx := context.Background()

		Convey("When the window has free slots and no spacing", func() {
			limiter := crm.NewRateLimiter(5, time.Second, 0)

			start := time.Now()
			for i := 0; i < 5; i++ {
				So(limiter.Acquire(ctx), ShouldBeNil)
			}

			Convey("Then no acquire should suspend", func() {
				So(time.Since(start), ShouldBeLessThan, 100*time.Millisecond)
			})
		})

		Convey("When the window is exhausted", func() {
			limiter := crm.NewRateLimiter(2, 200*time.Millisecond, 0)

			So(limiter.Acquire(ctx), ShouldBeNil)
			So(limiter.Acquire(ctx), ShouldBeNil)

			start := time.Now()
			So(limiter.Acquire(ctx), ShouldBeNil)
			waited := time.Since(start)

			Convey("Then the next caller should wait for rollover", func() {
				So(waited, ShouldBeGreaterThanOrEqualTo, 100*time.Millisecond)
				So(waited, ShouldBeLessThan, 400*time.Millisecond)
			})
		})

		Convey("When minimum spacing is configured", func() {
			limiter := crm.NewRateLimiter(100, time.Second, 50*time.Millisecond)

			So(limiter.Acquire(ctx), ShouldBeNil)

			start := time.Now()
			So(limiter.Acquire(ctx), ShouldBeNil)

			Convey("Then back-to-back acquires should be spaced apart", func() {
				So(time.Since(start), ShouldBeGreaterThanOrEqualTo, 40*time.Millisecond)
			})
		})

		Convey("When the caller's context is cancelled while waiting", func() {
			limiter := crm.NewRateLimiter(1, 10*time.Second, 0)
			So(limiter.Acquire(ctx), ShouldBeNil)

			cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()

			err := limiter.Acquire(cancelCtx)

			Convey("Then the wait should abort with the context error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "rate limiter wait aborted")
			})
		})
	})
}
