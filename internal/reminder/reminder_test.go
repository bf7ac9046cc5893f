package reminder_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/standup/internal/reminder"
	"basegraph.app/standup/internal/scheduler"
	"basegraph.app/standup/internal/store"
)

// A Monday morning.
var monday = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

var _ = Describe("Setting", func() {
	DescribeTable("Validate",
		func(s reminder.Setting, want error) {
			err := s.Validate()
			if want == nil {
				Expect(err).NotTo(HaveOccurred())
				return
			}
			Expect(errors.Is(err, want)).To(BeTrue(), "got %v", err)
		},
		Entry("defaults", reminder.DefaultSetting("America/Chicago"), nil),
		Entry("midnight", reminder.Setting{Timezone: "UTC", Hour: 0, Minute: 0}, nil),
		Entry("last minute of the day", reminder.Setting{Timezone: "UTC", Hour: 23, Minute: 59}, nil),
		Entry("hour 24", reminder.Setting{Timezone: "UTC", Hour: 24}, reminder.ErrInvalidHour),
		Entry("negative hour", reminder.Setting{Timezone: "UTC", Hour: -1}, reminder.ErrInvalidHour),
		Entry("minute 60", reminder.Setting{Timezone: "UTC", Minute: 60}, reminder.ErrInvalidMinute),
		Entry("unknown timezone", reminder.Setting{Timezone: "Mars/Olympus"}, reminder.ErrInvalidTimezone),
		Entry("unknown day", reminder.Setting{ExcludeDays: []string{"FUNDAY"}}, reminder.ErrInvalidDay),
		Entry("every day skipped", reminder.Setting{ExcludeDays: reminder.Days}, reminder.ErrNoDays),
	)

	It("builds a cron line pinned to the timezone", func() {
		Expect(reminder.DefaultSetting("America/Chicago").CronSpec()).
			To(Equal("CRON_TZ=America/Chicago 0 10 * * MON,TUE,WED,THU,FRI"))
		Expect(reminder.Setting{Hour: 7, Minute: 30, ExcludeDays: []string{"sun"}}.CronSpec()).
			To(Equal("30 7 * * MON,TUE,WED,THU,FRI,SAT"))
	})

	It("fires at the local time of the user", func() {
		s := reminder.Setting{Timezone: "Asia/Bangkok", Hour: 10, ExcludeDays: []string{"SAT", "SUN"}}
		schedule, err := s.Schedule()
		Expect(err).NotTo(HaveOccurred())

		// 10:00 in Bangkok is 03:00 UTC, so the next one is Tuesday's.
		Expect(schedule.Next(monday)).To(BeTemporally("==", time.Date(2026, 10, 20, 3, 0, 0, 0, time.UTC)))
	})

	It("describes the schedule in the help text", func() {
		s := reminder.Setting{Timezone: "UTC", Hour: 14, Minute: 5, ExcludeDays: []string{"SAT", "SUN", "WED"}}

		Expect(s.HelpText(monday)).To(Equal(
			"Reminders will be sent at 2:05 PM in timezone **UTC** on Monday, Tuesday, Thursday, and Friday " +
				"(Next reminder is in about 5 hours)\n\n" +
				"To change the time run `/standup settings reminder`\n" +
				"_Note: Change your timezone in Mattermost's settings then run the above command_",
		))
	})

	DescribeTable("clock times in the help text",
		func(hour, minute int, want string) {
			s := reminder.Setting{Timezone: "UTC", Hour: hour, Minute: minute}
			Expect(s.HelpText(monday)).To(ContainSubstring("sent at " + want + " in"))
		},
		Entry("midnight", 0, 0, "12:00 AM"),
		Entry("noon", 12, 30, "12:30 PM"),
		Entry("morning", 9, 7, "9:07 AM"),
		Entry("evening", 23, 59, "11:59 PM"),
	)

	It("parses a skip-days list", func() {
		Expect(reminder.ParseDays("sat, Sun,")).To(Equal([]string{"SAT", "SUN"}))
		Expect(reminder.ParseDays("")).To(BeEmpty())
	})
})

var _ = Describe("Manager", func() {
	var (
		ctx     context.Context
		kv      *store.MemoryKV
		clock   *scheduler.FakeClock
		fired   chan string
		manager *reminder.Manager
	)

	BeforeEach(func() {
		ctx = context.Background()
		kv = store.NewMemoryKV()
		clock = scheduler.NewFakeClock(monday)
		fired = make(chan string, 4)
		manager = reminder.NewManager(kv, func(_ context.Context, userID string) error {
			fired <- userID
			return nil
		}, reminder.WithClock(clock))
	})

	AfterEach(func() {
		manager.Stop()
	})

	It("registers users with the default schedule in their timezone", func() {
		setting, err := manager.Register(ctx, "u1", "UTC")
		Expect(err).NotTo(HaveOccurred())
		Expect(setting).To(Equal(reminder.DefaultSetting("UTC")))
		Expect(manager.Scheduled("u1")).To(BeTrue())

		stored, err := manager.Settings().Get(ctx, "u1")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(Equal(setting))
	})

	It("keeps the chosen time when a user registers again", func() {
		_, err := manager.Register(ctx, "u1", "UTC")
		Expect(err).NotTo(HaveOccurred())
		_, err = manager.Update(ctx, "u1", reminder.Patch{Hour: intPtr(8)})
		Expect(err).NotTo(HaveOccurred())

		setting, err := manager.Register(ctx, "u1", "Europe/Berlin")
		Expect(err).NotTo(HaveOccurred())
		Expect(setting.Hour).To(Equal(8))
		Expect(setting.Timezone).To(Equal("Europe/Berlin"))
	})

	It("reminds the user when the schedule fires", func() {
		_, err := manager.Register(ctx, "u1", "UTC")
		Expect(err).NotTo(HaveOccurred())

		clock.BlockUntil(1)
		clock.Advance(time.Hour)

		Eventually(fired).Should(Receive(Equal("u1")))
	})

	It("merges updates and reschedules", func() {
		_, err := manager.Register(ctx, "u1", "UTC")
		Expect(err).NotTo(HaveOccurred())

		setting, err := manager.Update(ctx, "u1", reminder.Patch{Hour: intPtr(9), Minute: intPtr(30)})
		Expect(err).NotTo(HaveOccurred())
		Expect(setting.Hour).To(Equal(9))
		Expect(setting.Minute).To(Equal(30))
		Expect(setting.ExcludeDays).To(Equal([]string{"SAT", "SUN"}))

		next, err := manager.NextFire(ctx, "u1")
		Expect(err).NotTo(HaveOccurred())
		Expect(next).To(BeTemporally("==", monday.Add(30*time.Minute)))
	})

	It("rejects invalid updates without saving them", func() {
		_, err := manager.Register(ctx, "u1", "UTC")
		Expect(err).NotTo(HaveOccurred())

		_, err = manager.Update(ctx, "u1", reminder.Patch{Hour: intPtr(24)})
		Expect(errors.Is(err, reminder.ErrInvalidHour)).To(BeTrue())

		stored, err := manager.Settings().Get(ctx, "u1")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Hour).To(Equal(reminder.DefaultHour))
	})

	It("requires registration before an update", func() {
		_, err := manager.Update(ctx, "nobody", reminder.Patch{Hour: intPtr(9)})
		Expect(err).To(MatchError(reminder.ErrNotRegistered))

		_, err = manager.NextFire(ctx, "nobody")
		Expect(err).To(MatchError(reminder.ErrNotRegistered))
	})

	It("restores stored reminders and skips invalid ones", func() {
		Expect(manager.Settings().Put(ctx, "u1", reminder.DefaultSetting("UTC"))).To(Succeed())
		Expect(manager.Settings().Put(ctx, "u2", reminder.Setting{Timezone: "UTC", Hour: 30})).To(Succeed())

		n, err := manager.Restore(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
		Expect(manager.Scheduled("u1")).To(BeTrue())
		Expect(manager.Scheduled("u2")).To(BeFalse())
	})

	It("cancels a reminder", func() {
		_, err := manager.Register(ctx, "u1", "UTC")
		Expect(err).NotTo(HaveOccurred())

		manager.Cancel("u1")
		Expect(manager.Scheduled("u1")).To(BeFalse())
	})
})
