// Command crm-sim runs a simulated CRM platform for local development.
// Point the service at it with PULSE_CRM_BASE_URL and onboard tenants
// with the printed tokens or codes of the form "code:<tenant>".
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/pulseboard/pulseboard/internal/crmsim"
	"github.com/pulseboard/pulseboard/pkg/logger"
)

const defaultTenantCount = 3

func main() {
	var (
		addr       = flag.String("addr", ":9081", "Listen address")
		tenants    = flag.Int("tenants", defaultTenantCount, "Number of tenants to seed (loc-1..loc-N)")
		contacts   = flag.Int("contacts", 0, "Contacts per tenant (0 uses the default dataset size)")
		retryAfter = flag.Int("retry-after", 2, "Retry-After seconds announced on injected 429s")
		fail401    = flag.Int("fail-auth", 0, "Reject this many initial requests with 401")
		limit429   = flag.Int("rate-limit", 0, "Reject this many initial requests with 429")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.Get().Named("crm-sim")

	sim := crmsim.New(
		crmsim.WithRetryAfter(*retryAfter),
		crmsim.WithSimLogger(log),
	)

	var seeded []string
	for i := 1; i <= *tenants; i++ {
		tenantID := "loc-" + strconv.Itoa(i)
		if *contacts > 0 {
			sim.SeedTenantSized(tenantID, *contacts, *contacts/5, *contacts/4, 3)
		} else {
			sim.SeedTenant(tenantID)
		}
		seeded = append(seeded, tenantID)

		access, refresh := sim.IssueLocationToken(tenantID)
		log.Info(ctx, "seeded tenant",
			logger.String("tenantID", tenantID),
			logger.String("accessToken", access),
			logger.String("refreshToken", refresh),
			logger.String("authCode", "code:"+tenantID),
		)
	}

	agencyAccess, agencyRefresh := sim.IssueAgencyToken()
	log.Info(ctx, "issued agency credential",
		logger.String("accessToken", agencyAccess),
		logger.String("refreshToken", agencyRefresh),
		logger.String("tenants", strings.Join(seeded, ",")),
	)

	if *fail401 > 0 {
		sim.FailAuth(*fail401)
	}
	if *limit429 > 0 {
		sim.RateLimit(*limit429)
	}

	if err := sim.ListenAndServe(ctx, *addr); err != nil {
		os.Stderr.WriteString("simulator failed: " + err.Error() + "\n")
	}
}
