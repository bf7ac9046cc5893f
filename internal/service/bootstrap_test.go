package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/standup/core/config"
	"basegraph.app/standup/internal/issuecache"
	"basegraph.app/standup/internal/reminder"
	"basegraph.app/standup/internal/scheduler"
	"basegraph.app/standup/internal/service"
	"basegraph.app/standup/internal/store"
	"basegraph.app/standup/internal/tracker"
)

type failingRestorer struct{ err error }

func (f failingRestorer) Restore(context.Context) (int, error) {
	return 0, f.err
}

var _ = Describe("Bootstrapper", func() {
	var (
		ctx       context.Context
		stores    *store.Stores
		holder    *issuecache.Holder
		reminders *reminder.Manager
		opens     int
		openErr   error
		deps      service.BootstrapDeps
	)

	creds := tracker.Credentials{Provider: tracker.ProviderGitHub, Owner: "digi-serve", Project: "3", Token: "t"}

	BeforeEach(func() {
		ctx = context.Background()
		stores = store.NewStores(store.NewMemoryKV())
		holder = issuecache.NewHolder()
		opens = 0
		openErr = nil
		reminders = reminder.NewManager(stores.KV(), func(context.Context, string) error { return nil },
			reminder.WithClock(scheduler.NewFakeClock(monday)))

		deps = service.BootstrapDeps{
			Channels:    stores.Channel(),
			Credentials: stores.TrackerCredentials(),
			Reminders:   reminders,
			Holder:      holder,
			OpenTracker: func(ctx context.Context, _ tracker.Credentials) (*issuecache.Cache, error) {
				opens++
				if openErr != nil {
					return nil, openErr
				}
				return issuecache.New(ctx, stubTracker{}, issuecache.Config{Workflow: config.DefaultStatusWorkflow()})
			},
		}
	})

	AfterEach(func() {
		reminders.Stop()
		holder.Close()
	})

	It("restores the tracker and every reminder", func() {
		Expect(stores.TrackerCredentials().Put(ctx, store.SingletonID, creds)).To(Succeed())
		Expect(reminders.Settings().Put(ctx, "u1", reminder.DefaultSetting("UTC"))).To(Succeed())
		Expect(reminders.Settings().Put(ctx, "u2", reminder.DefaultSetting("Asia/Bangkok"))).To(Succeed())

		b := service.NewBootstrapper(deps)
		Expect(b.Run(ctx)).To(Succeed())

		Expect(b.Ready()).To(BeTrue())
		Expect(holder.Get()).NotTo(BeNil())
		Expect(reminders.Scheduled("u1")).To(BeTrue())
		Expect(reminders.Scheduled("u2")).To(BeTrue())
	})

	It("runs without a tracker when none is configured", func() {
		b := service.NewBootstrapper(deps)
		Expect(b.Run(ctx)).To(Succeed())

		Expect(opens).To(BeZero())
		Expect(holder.Get()).To(BeNil())
	})

	It("continues when the tracker is unreachable", func() {
		Expect(stores.TrackerCredentials().Put(ctx, store.SingletonID, creds)).To(Succeed())
		openErr = errors.New("connection refused")

		b := service.NewBootstrapper(deps)
		Expect(b.Run(ctx)).To(Succeed())

		Expect(opens).To(Equal(1))
		Expect(holder.Get()).To(BeNil())
	})

	It("runs only once", func() {
		Expect(stores.TrackerCredentials().Put(ctx, store.SingletonID, creds)).To(Succeed())

		b := service.NewBootstrapper(deps)
		Expect(b.Run(ctx)).To(Succeed())
		Expect(b.Run(ctx)).To(Succeed())

		Expect(opens).To(Equal(1))
	})

	It("retries after a failed run", func() {
		restoreErr := errors.New("store unavailable")
		deps.Reminders = failingRestorer{err: restoreErr}

		b := service.NewBootstrapper(deps)
		Expect(b.Run(ctx)).To(MatchError(restoreErr))
		Expect(b.Ready()).To(BeFalse())
	})
})
