package conversation_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/standup/core/config"
	"basegraph.app/standup/internal/apps"
	"basegraph.app/standup/internal/conversation"
	"basegraph.app/standup/internal/issuecache"
	"basegraph.app/standup/internal/messaging"
	"basegraph.app/standup/internal/report"
	"basegraph.app/standup/internal/store"
	"basegraph.app/standup/internal/tracker"
)

const dm = "dm-u1"

var _ = Describe("State", func() {
	DescribeTable("Next",
		func(from, to conversation.State) {
			Expect(from.Next()).To(Equal(to))
		},
		Entry("todo", conversation.StateTodo, conversation.StateReview),
		Entry("review", conversation.StateReview, conversation.StateAccomplished),
		Entry("accomplished", conversation.StateAccomplished, conversation.StateGoal),
		Entry("goal", conversation.StateGoal, conversation.StateBlocker),
		Entry("blocker", conversation.StateBlocker, conversation.StatePersonal),
		Entry("personal", conversation.StatePersonal, conversation.StateSubmit),
		Entry("submit stays", conversation.StateSubmit, conversation.StateSubmit),
		Entry("out of range", conversation.State(42), conversation.StateSubmit),
	)

	It("names every state", func() {
		Expect(conversation.StateBlocker.String()).To(Equal("blocker"))
		Expect(conversation.State(-1).String()).To(Equal("unknown"))
	})
})

var _ = Describe("Controller", func() {
	var (
		ctx    context.Context
		bot    *mockMessenger
		stores *store.Stores
		holder *issuecache.Holder
		deps   conversation.Deps
		now    time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		bot = &mockMessenger{}
		stores = store.NewStores(store.NewMemoryKV())
		holder = issuecache.NewHolder()
		now = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
		deps = conversation.Deps{
			Bot:             bot,
			Histories:       stores.History(),
			Channels:        stores.Channel(),
			Caches:          holder,
			ProjectBoardURL: "https://github.com/orgs/acme/projects/2",
			Timeout:         time.Second,
			Now:             func() time.Time { return now },
		}
	})

	newController := func() *conversation.Controller {
		c, err := conversation.New(ctx, deps, "u1")
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	seedHistory := func(goals ...report.Entry) {
		Expect(stores.History().Put(ctx, "u1", store.History{Date: now.Add(-24 * time.Hour), Goals: goals})).To(Succeed())
	}

	withCache := func(tc *mockTrackerClient) *issuecache.Cache {
		cache, err := issuecache.New(ctx, tc, issuecache.Config{
			ProjectID: "P1",
			Owner:     "acme",
			Workflow:  config.DefaultStatusWorkflow(),
		})
		Expect(err).NotTo(HaveOccurred())
		holder.Set(cache)
		return cache
	}

	advanceTo := func(c *conversation.Controller, s conversation.State) {
		for c.State() < s {
			Expect(c.Advance(ctx)).To(Succeed())
		}
	}

	Describe("New", func() {
		It("opens the bot's direct channel with the user", func() {
			var members []string
			bot.createDirectChannelFn = func(_ context.Context, userIDs ...string) (string, error) {
				members = userIDs
				return "dm-x", nil
			}

			c := newController()
			Expect(members).To(Equal([]string{"bot", "u1"}))
			Expect(c.DirectChannelID()).To(Equal("dm-x"))
			Expect(c.State()).To(Equal(conversation.StateTodo))
		})

		It("fails when the history cannot be loaded", func() {
			deps.Histories = store.NewCollection[store.History](failingKV{}, store.NamespaceHistory)

			_, err := conversation.New(ctx, deps, "u1")
			Expect(err).To(MatchError(ContainSubstring("loading history")))
			Expect(errors.Is(err, errStoreDown)).To(BeTrue())
		})

		It("fails when the direct channel cannot be opened", func() {
			bot.createDirectChannelFn = func(context.Context, ...string) (string, error) {
				return "", &messaging.APIError{StatusCode: 500, Message: "boom"}
			}

			_, err := conversation.New(ctx, deps, "u1")
			Expect(err).To(MatchError(ContainSubstring("opening direct channel")))
		})
	})

	Describe("Start", func() {
		It("skips review for a user without carried goals and lands on accomplished", func() {
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())

			Expect(c.State()).To(Equal(conversation.StateAccomplished))
			drafts := bot.sentTo(dm)
			Expect(drafts).To(HaveLen(1))
			Expect(drafts[0].ID).To(BeEmpty())
			Expect(optionLabels(drafts[0])).To(Equal([]string{"Add Work", "That's all"}))
			Expect(c.DraftPostID()).To(Equal("post-1"))
		})

		It("offers carried goals in review", func() {
			seedHistory(
				report.Entry{Category: report.CategoryGoal, Note: "Ship v2", Reference: "web#7"},
				report.Entry{Category: report.CategoryGoal, Note: "Write docs"},
			)
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())

			Expect(c.State()).To(Equal(conversation.StateReview))
			Expect(optionLabels(bot.last())).To(Equal([]string{"Ship v2", "Write docs", "Skip"}))
		})

		It("discards the draft in progress", func() {
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())
			Expect(c.ProcessFormAdd(ctx, conversation.AddSubmission{Note: "x"})).To(Succeed())
			Expect(c.Advance(ctx)).To(Succeed())

			Expect(c.Start(ctx)).To(Succeed())

			Expect(c.State()).To(Equal(conversation.StateAccomplished))
			Expect(c.Entries()).To(BeEmpty())
			Expect(c.DraftPostID()).To(Equal("post-2"))
		})
	})

	Describe("Advance", func() {
		It("moves strictly forward through every prompt and stays on submit", func() {
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())

			seen := []conversation.State{c.State()}
			for range 5 {
				Expect(c.Advance(ctx)).To(Succeed())
				seen = append(seen, c.State())
			}

			Expect(seen).To(Equal([]conversation.State{
				conversation.StateAccomplished,
				conversation.StateGoal,
				conversation.StateBlocker,
				conversation.StatePersonal,
				conversation.StateSubmit,
				conversation.StateSubmit,
			}))
		})

		It("keeps a single evolving draft post", func() {
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())
			advanceTo(c, conversation.StateSubmit)

			drafts := bot.sentTo(dm)
			Expect(drafts).To(HaveLen(5))
			for _, d := range drafts[1:] {
				Expect(d.ID).To(Equal("post-1"))
			}
		})

		DescribeTable("renders the options of each state",
			func(target conversation.State, labels []string, question string) {
				c := newController()
				Expect(c.Start(ctx)).To(Succeed())
				advanceTo(c, target)

				post := bot.last()
				Expect(optionLabels(post)).To(Equal(labels))
				fields := post.Props["attachments"].([]map[string]any)[0]["fields"].([]map[string]any)
				Expect(fields[1]["value"]).To(ContainSubstring(question))
			},
			Entry("goal", conversation.StateGoal, []string{"Add Goal", "That's all"}, "What are your goals today?"),
			Entry("blocker", conversation.StateBlocker, []string{"Blocked", "Question", "Help Wanted", "That's all"}, "blocked"),
			Entry("personal", conversation.StatePersonal, []string{"Prayer Request", "Update", "That's all"}, "personal updates"),
			Entry("submit", conversation.StateSubmit, []string{"Edit", "Submit"}, "Ready to publish?"),
		)

		It("asks for the user's token only on submit", func() {
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())
			advanceTo(c, conversation.StateSubmit)

			controls := embedded(bot.last()).Bindings
			Expect(controls[0].Submit.Path).To(Equal(conversation.PathEdit))
			Expect(controls[0].Submit.Expand.ActingUserAccessToken).To(BeEmpty())
			Expect(controls[1].Submit.Path).To(Equal(conversation.PathSubmit))
			Expect(controls[1].Submit.Expand.ActingUserAccessToken).To(Equal(apps.ExpandAll))
		})
	})

	Describe("ProcessFormAdd", func() {
		It("renders a referenced item as a link in the draft", func() {
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())

			err := c.ProcessFormAdd(ctx, conversation.AddSubmission{
				Note:  "Fixed bug",
				Issue: "repo#42",
				State: conversation.FormState{Type: report.CategoryAccomplished},
			})
			Expect(err).NotTo(HaveOccurred())

			last := bot.last()
			Expect(last.ID).To(Equal(c.DraftPostID()))
			Expect(draftText(last)).To(HavePrefix(
				"**I worked on:**\n :white_check_mark: [repo#42](https://github.com/digi-serve/repo/issues/42) - Fixed bug",
			))
		})

		It("prefers the selected issue and falls back to the free-text one", func() {
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())

			Expect(c.ProcessFormAdd(ctx, conversation.AddSubmission{Note: "a", Issue: "none", IssueOther: "api#3"})).To(Succeed())
			Expect(c.ProcessFormAdd(ctx, conversation.AddSubmission{Note: "b", Issue: "web#1", IssueOther: "api#3"})).To(Succeed())

			entries := c.Entries()
			Expect(entries[0].Reference).To(Equal("api#3"))
			Expect(entries[1].Reference).To(Equal("web#1"))
		})

		It("uses the state's category when the form did not name one", func() {
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())
			advanceTo(c, conversation.StateGoal)

			Expect(c.ProcessFormAdd(ctx, conversation.AddSubmission{Note: "Plan sprint"})).To(Succeed())
			Expect(c.Entries()[0].Category).To(Equal(report.CategoryGoal))
		})

		It("records a confirmed carried goal as accomplished and stops offering it", func() {
			seedHistory(report.Entry{Category: report.CategoryGoal, Note: "Ship v2"})
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())
			Expect(c.State()).To(Equal(conversation.StateReview))

			err := c.ProcessFormAdd(ctx, conversation.AddSubmission{
				Note:  "Ship v2",
				State: conversation.FormState{Type: report.CategoryAccomplished, Index: 0},
			})
			Expect(err).NotTo(HaveOccurred())

			entries := c.Entries()
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Category).To(Equal(report.CategoryAccomplished))
			Expect(entries[0].WasCarriedGoal).To(BeTrue())
			Expect(entries[0].Note).To(Equal("Ship v2"))
			Expect(c.CarriedGoals()).To(BeEmpty())
			Expect(c.State()).To(Equal(conversation.StateAccomplished))
			Expect(draftText(bot.last())).To(ContainSubstring(":tada: Other - Ship v2"))
		})

		It("removes exactly the confirmed goal", func() {
			seedHistory(
				report.Entry{Category: report.CategoryGoal, Note: "g0"},
				report.Entry{Category: report.CategoryGoal, Note: "g1"},
				report.Entry{Category: report.CategoryGoal, Note: "g2"},
			)
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())

			Expect(c.ProcessFormAdd(ctx, conversation.AddSubmission{Note: "g1", State: conversation.FormState{Index: 1}})).To(Succeed())

			Expect(c.State()).To(Equal(conversation.StateReview))
			notes := []string{}
			for _, g := range c.CarriedGoals() {
				notes = append(notes, g.Note)
			}
			Expect(notes).To(Equal([]string{"g0", "g2"}))
			Expect(optionLabels(bot.last())).To(Equal([]string{"g0", "g2", "Skip"}))
		})

		It("rejects an index with no carried goal and changes nothing", func() {
			seedHistory(report.Entry{Category: report.CategoryGoal, Note: "Ship v2"})
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())
			before := len(bot.sent())

			err := c.ProcessFormAdd(ctx, conversation.AddSubmission{Note: "x", State: conversation.FormState{Index: 3}})

			Expect(errors.Is(err, conversation.ErrInvalidGoalIndex)).To(BeTrue())
			Expect(c.CarriedGoals()).To(HaveLen(1))
			Expect(c.Entries()).To(BeEmpty())
			Expect(bot.sent()).To(HaveLen(before))
		})

		It("keeps the carried goal when the confirmation has no text", func() {
			seedHistory(report.Entry{Category: report.CategoryGoal, Note: "Ship v2"})
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())
			before := len(bot.sent())

			err := c.ProcessFormAdd(ctx, conversation.AddSubmission{
				Note:  "  ",
				State: conversation.FormState{Type: report.CategoryAccomplished, Index: 0},
			})

			Expect(errors.Is(err, conversation.ErrEmptyNote)).To(BeTrue())
			Expect(c.CarriedGoals()).To(HaveLen(1))
			Expect(c.Entries()).To(BeEmpty())
			Expect(c.State()).To(Equal(conversation.StateReview))
			Expect(bot.sent()).To(HaveLen(before))
		})
	})

	Describe("AddForm", func() {
		fieldNames := func(f *apps.Form) []string {
			var names []string
			for _, field := range f.Fields {
				names = append(names, field.Name)
			}
			return names
		}

		It("has a note and a free-text issue when no tracker is configured", func() {
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())

			form, err := c.AddForm(ctx, conversation.FormState{Type: report.CategoryAccomplished})
			Expect(err).NotTo(HaveOccurred())
			Expect(fieldNames(form)).To(Equal([]string{"note", "issue"}))
			Expect(form.Fields[1].Type).To(Equal(apps.FieldTypeText))
			Expect(form.Fields[0].ModalLabel).To(Equal("Description"))
			Expect(form.Submit.Path).To(Equal(conversation.PathAdd))
			Expect(form.Submit.State).To(Equal(conversation.FormState{Type: report.CategoryAccomplished}))
		})

		Context("with cached issues", func() {
			BeforeEach(func() {
				tc := &mockTrackerClient{
					listProjectItemsFn: func(context.Context, string, string) (*tracker.ItemPage, error) {
						return &tracker.ItemPage{Items: []tracker.Item{
							{ID: "i1", Title: "Zeta", Repo: "web", Number: 3, Status: "🚧 In Progress", UpdatedAt: now.Add(-72 * time.Hour)},
							{ID: "i2", Title: "Alpha", Repo: "api", Number: 1, Status: "💬 Code Review", UpdatedAt: now.Add(-72 * time.Hour)},
							{ID: "i3", Title: "Intake", Repo: "web", Number: 9, Status: "📫 Inbox", UpdatedAt: now},
							{ID: "i4", Title: "Old done", Repo: "web", Number: 5, Status: "✔ Done", UpdatedAt: now.Add(-240 * time.Hour)},
							{ID: "i5", Title: "Fresh done", Repo: "web", Number: 6, Status: "✔ Done", UpdatedAt: now.Add(-time.Hour)},
						}}, nil
					},
				}
				cache := withCache(tc)
				Expect(cache.Refresh(ctx)).To(Succeed())
				seedHistory()
			})

			It("lists issues done since the last report, sorted, for accomplished work", func() {
				c := newController()
				Expect(c.Start(ctx)).To(Succeed())

				form, err := c.AddForm(ctx, conversation.FormState{Type: report.CategoryAccomplished})
				Expect(err).NotTo(HaveOccurred())
				Expect(fieldNames(form)).To(Equal([]string{"note", "issue", "issueOther"}))
				Expect(form.Fields[1].Options).To(Equal([]apps.SelectOption{
					{Label: "None / Other", Value: "none"},
					{Label: "api#1 Alpha", Value: "api#1"},
					{Label: "web#3 Zeta", Value: "web#3"},
					{Label: "web#6 Fresh done", Value: "web#6"},
				}))
			})

			It("leaves done issues out for goals", func() {
				c := newController()
				Expect(c.Start(ctx)).To(Succeed())
				advanceTo(c, conversation.StateGoal)

				form, err := c.AddForm(ctx, conversation.FormState{Type: report.CategoryGoal})
				Expect(err).NotTo(HaveOccurred())
				Expect(form.Fields[0].ModalLabel).To(Equal("Goal"))
				Expect(form.Fields[1].Options).To(HaveLen(3))
			})

			It("asks only for a note in the personal section", func() {
				c := newController()
				Expect(c.Start(ctx)).To(Succeed())
				advanceTo(c, conversation.StatePersonal)

				form, err := c.AddForm(ctx, conversation.FormState{Type: report.CategoryPrayer})
				Expect(err).NotTo(HaveOccurred())
				Expect(fieldNames(form)).To(Equal([]string{"note"}))
				Expect(form.Fields[0].ModalLabel).To(Equal("Prayer Request"))
			})
		})

		It("prefills the carried goal in review", func() {
			seedHistory(report.Entry{Category: report.CategoryGoal, Note: "Ship v2", Reference: "web#7"})
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())

			form, err := c.AddForm(ctx, conversation.FormState{Type: report.CategoryAccomplished, Index: 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(fieldNames(form)).To(Equal([]string{"note", "issue"}))
			Expect(form.Fields[0].Value).To(Equal("Ship v2"))
			Expect(form.Fields[1].Value).To(Equal("web#7"))
		})

		It("rejects an unknown carried goal", func() {
			seedHistory(report.Entry{Category: report.CategoryGoal, Note: "Ship v2"})
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())

			_, err := c.AddForm(ctx, conversation.FormState{Index: 1})
			Expect(errors.Is(err, conversation.ErrInvalidGoalIndex)).To(BeTrue())
		})
	})

	Describe("Edit", func() {
		It("overrides sections in the submit state without leaving it", func() {
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())
			Expect(c.ProcessFormAdd(ctx, conversation.AddSubmission{Note: "Fixed bug"})).To(Succeed())
			advanceTo(c, conversation.StateSubmit)

			err := c.Edit(ctx, conversation.OverridesFromValues(apps.NewValues(
				"goal", "Finish release",
				"accomplished", "Fixed a lot",
				"bogus", "ignored",
			)))
			Expect(err).NotTo(HaveOccurred())

			Expect(c.State()).To(Equal(conversation.StateSubmit))
			Expect(c.Render()).To(Equal("**My goals for today are:**\nFinish release\n \n**I worked on:**\nFixed a lot\n "))
			Expect(optionLabels(bot.last())).To(Equal([]string{"Edit", "Submit"}))
		})

		It("prefills the edit form with each section", func() {
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())
			Expect(c.ProcessFormAdd(ctx, conversation.AddSubmission{Note: "Fixed bug"})).To(Succeed())

			form := c.EditForm()
			Expect(form.Fields).To(HaveLen(len(report.Categories)))
			Expect(form.Fields[0].Name).To(Equal("accomplished"))
			Expect(form.Fields[0].Value).To(Equal(" :white_check_mark: Other - Fixed bug"))
			for _, f := range form.Fields {
				Expect(f.IsRequired).To(Equal(f.Name == "accomplished" || f.Name == "goal"), f.Name)
			}
			Expect(form.Submit.Path).To(Equal(conversation.PathEditSubmit))
		})
	})

	Describe("concurrent events for one user", func() {
		It("can race on the draft post id and create two drafts", func() {
			c := newController()

			var mu sync.Mutex
			arrived := 0
			release := make(chan struct{})
			bot.createOrUpdatePostFn = func(_ context.Context, post messaging.Post) (string, error) {
				mu.Lock()
				arrived++
				if arrived == 2 {
					close(release)
				}
				mu.Unlock()
				<-release
				return bot.assignID(post), nil
			}

			var wg sync.WaitGroup
			for range 2 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					Expect(c.Edit(ctx, nil)).To(Succeed())
				}()
			}
			wg.Wait()

			created := 0
			for _, p := range bot.sent() {
				if p.ID == "" {
					created++
				}
			}
			Expect(created).To(Equal(2))
			Expect(c.DraftPostID()).To(BeElementOf("post-1", "post-2"))
		})
	})

	Describe("Publish", func() {
		var user *mockMessenger

		BeforeEach(func() {
			user = &mockMessenger{}
			Expect(stores.Channel().Put(ctx, store.SingletonID, store.Channel{ID: "team", TeamID: "t1"})).To(Succeed())
		})

		prepared := func() *conversation.Controller {
			c := newController()
			Expect(c.Start(ctx)).To(Succeed())
			Expect(c.ProcessFormAdd(ctx, conversation.AddSubmission{Note: "Fixed bug", Issue: "web#1"})).To(Succeed())
			Expect(c.Advance(ctx)).To(Succeed())
			Expect(c.ProcessFormAdd(ctx, conversation.AddSubmission{Note: "Ship v2"})).To(Succeed())
			advanceTo(c, conversation.StateSubmit)
			DeferCleanup(c.Wait)
			return c
		}

		It("posts as the user, confirms in the draft and saves history", func() {
			c := prepared()

			Expect(c.Publish(ctx, user)).To(Succeed())
			c.Wait()

			published := user.sentTo("team")
			Expect(published).To(HaveLen(1))
			Expect(draftText(published[0])).To(ContainSubstring("Fixed bug"))
			Expect(bot.sentTo("team")).To(BeEmpty())

			var confirmed, reminded bool
			for _, p := range bot.sentTo(dm) {
				if p.ID == "post-1" && p.Message == "Thanks for your Update!" {
					confirmed = true
				}
				if strings.Contains(p.Message, "Reminder") && strings.Contains(p.Message, deps.ProjectBoardURL) {
					reminded = true
				}
			}
			Expect(confirmed).To(BeTrue())
			Expect(reminded).To(BeTrue())

			history, err := stores.History().Get(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(history.Date).To(BeTemporally("==", now))
			Expect(history.Goals).To(Equal([]report.Entry{{Category: report.CategoryGoal, Note: "Ship v2"}}))
		})

		It("falls back to the bot when posting as the user fails", func() {
			user.createOrUpdatePostFn = func(context.Context, messaging.Post) (string, error) {
				return "", &messaging.APIError{StatusCode: 403, Message: "forbidden"}
			}
			c := prepared()

			Expect(c.Publish(ctx, user)).To(Succeed())
			Expect(bot.sentTo("team")).To(HaveLen(1))
		})

		It("posts as the bot without a user token", func() {
			c := prepared()

			Expect(c.Publish(ctx, nil)).To(Succeed())
			Expect(bot.sentTo("team")).To(HaveLen(1))
		})

		It("saves history even when every post fails", func() {
			user.createOrUpdatePostFn = func(context.Context, messaging.Post) (string, error) {
				return "", errors.New("user post failed")
			}
			c := prepared()
			bot.createOrUpdatePostFn = func(_ context.Context, post messaging.Post) (string, error) {
				if post.ChannelID == "team" {
					return "", errors.New("bot post failed")
				}
				return bot.assignID(post), nil
			}

			Expect(c.Publish(ctx, user)).To(Succeed())

			history, err := stores.History().Get(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(history.Goals).To(HaveLen(1))
		})

		It("saves history when no report channel is registered", func() {
			Expect(stores.KV().SetAll(ctx, store.NamespaceChannel, nil)).To(Succeed())
			c := prepared()

			Expect(c.Publish(ctx, user)).To(Succeed())
			Expect(user.sent()).To(BeEmpty())
			_, err := stores.History().Get(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps structured goals in history after an edit", func() {
			c := prepared()
			Expect(c.Edit(ctx, []report.Override{{Category: report.CategoryGoal, Text: "free text"}})).To(Succeed())

			Expect(c.Publish(ctx, user)).To(Succeed())

			history, err := stores.History().Get(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(history.Goals).To(Equal([]report.Entry{{Category: report.CategoryGoal, Note: "Ship v2"}}))
			Expect(draftText(user.sentTo("team")[0])).To(ContainSubstring("free text"))
		})

		It("reports a history write failure after posting", func() {
			deps.Histories = store.NewCollection[store.History](readOnlyKV{KV: stores.KV()}, store.NamespaceHistory)
			c := prepared()

			err := c.Publish(ctx, user)
			Expect(errors.Is(err, errStoreDown)).To(BeTrue())
			Expect(user.sentTo("team")).To(HaveLen(1))
		})

		It("saves history after the caller gives up waiting", func() {
			deps.Histories = store.NewCollection[store.History](ctxKV{KV: stores.KV()}, store.NamespaceHistory)
			callCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			user.createOrUpdatePostFn = func(context.Context, messaging.Post) (string, error) {
				cancel()
				return "", context.Canceled
			}
			c := prepared()

			Expect(c.Publish(callCtx, user)).To(Succeed())

			history, err := stores.History().Get(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(history.Goals).To(Equal([]report.Entry{{Category: report.CategoryGoal, Note: "Ship v2"}}))
		})

		It("refuses a conversation that has not reached submit", func() {
			seedHistory(report.Entry{Category: report.CategoryGoal, Note: "Ship v2"})
			c := newController()
			Expect(c.State()).To(Equal(conversation.StateTodo))

			err := c.Publish(ctx, user)
			Expect(errors.Is(err, conversation.ErrNotReady)).To(BeTrue())
			c.Wait()

			Expect(user.sent()).To(BeEmpty())
			Expect(bot.sentTo("team")).To(BeEmpty())
			history, err := stores.History().Get(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(history.Goals).To(Equal([]report.Entry{{Category: report.CategoryGoal, Note: "Ship v2"}}))
		})

		It("skips reconciliation without a tracker", func() {
			c := prepared()

			Expect(c.Publish(ctx, user)).To(Succeed())
			Expect(c.SummaryPostID()).To(BeEmpty())
		})
	})

	Describe("status reconciliation", func() {
		var (
			tc *mockTrackerClient
			c  *conversation.Controller
		)

		BeforeEach(func() {
			tc = &mockTrackerClient{
				findIssueByReferenceFn: func(_ context.Context, _, repo string, number int) (*tracker.IssueRef, error) {
					if repo == "a" {
						return &tracker.IssueRef{ID: "I_a1", ProjectItems: []tracker.ProjectItem{{ProjectID: "P1", ItemID: "PVTI_a1"}}}, nil
					}
					return nil, tracker.ErrNotFound
				},
				getItemStatusFn: func(context.Context, string) (string, error) {
					return "🚧 In Progress", nil
				},
			}
			withCache(tc)
			Expect(stores.Channel().Put(ctx, store.SingletonID, store.Channel{ID: "team"})).To(Succeed())

			c = newController()
			Expect(c.Start(ctx)).To(Succeed())
			Expect(c.ProcessFormAdd(ctx, conversation.AddSubmission{Note: "one", Issue: "a#1"})).To(Succeed())
			Expect(c.Advance(ctx)).To(Succeed())
			Expect(c.ProcessFormAdd(ctx, conversation.AddSubmission{Note: "again", Issue: "a#1"})).To(Succeed())
			Expect(c.ProcessFormAdd(ctx, conversation.AddSubmission{Note: "two", Issue: "b#2"})).To(Succeed())
			advanceTo(c, conversation.StateSubmit)
			Expect(c.Publish(ctx, nil)).To(Succeed())
			c.Wait()
		})

		summaryPost := func() messaging.Post {
			var found messaging.Post
			for _, p := range bot.sentTo(dm) {
				if p.ID == c.SummaryPostID() {
					found = p
				}
			}
			return found
		}

		It("looks up each distinct reference once", func() {
			Expect(tc.finds()).To(ConsistOf("a#1", "b#2"))
			Expect(tc.statuses()).To(Equal([]string{"PVTI_a1"}))
		})

		It("shows unresolved references as not found", func() {
			Expect(c.Summary()).To(Equal([]conversation.ItemStatus{
				{Reference: "a#1", ItemID: "PVTI_a1", Status: "🚧 In Progress"},
				{Reference: "b#2", Status: "not found"},
			}))

			binding := embedded(summaryPost())
			Expect(binding.Description).To(Equal("> **_Update Statuses?_**\na#1 - 🚧 In Progress\nb#2 - not found"))
		})

		It("offers only forward transitions for found issues", func() {
			controls := embedded(summaryPost()).Bindings
			Expect(controls).To(HaveLen(2))
			Expect(controls[0].Label).To(Equal("Update"))
			Expect(controls[1].Submit.Path).To(Equal(conversation.PathClose))

			form := controls[0].Form
			Expect(form.Fields).To(HaveLen(1))
			Expect(form.Fields[0].Name).To(Equal("a#1"))
			var values []string
			for _, o := range form.Fields[0].Options {
				values = append(values, o.Value)
			}
			Expect(values).To(Equal([]string{"💬 Code Review", "📋 Partner Review", "🚀 Deploying", "✔ Done"}))
		})

		It("applies non-blank selections and reports the count", func() {
			var mu sync.Mutex
			var applied []string
			tc.setItemFieldValueFn = func(_ context.Context, projectID, itemID, fieldID, optionID string) error {
				mu.Lock()
				defer mu.Unlock()
				applied = append(applied, projectID+"/"+itemID+"/"+fieldID+"/"+optionID)
				return nil
			}

			n, err := c.SubmitStatusUpdate(ctx, apps.NewValues(
				"a#1", apps.SelectOption{Label: "💬 Code Review", Value: "💬 Code Review"},
				"b#2", nil,
			))

			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
			Expect(applied).To(Equal([]string{"P1/PVTI_a1/F1/o-review"}))
			Expect(bot.last().ID).To(Equal(c.SummaryPostID()))
			Expect(bot.last().Message).To(Equal("Updated 1 status"))
		})

		It("lists references that could not be updated without failing the others", func() {
			n, err := c.SubmitStatusUpdate(ctx, apps.NewValues(
				"a#1", "✔ Done",
				"c#3", "🚀 Deploying",
			))

			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
			Expect(bot.last().Message).To(Equal("Updated 1 status\nCould not update: c#3"))
		})

		It("blanks the summary on dismiss", func() {
			id := c.SummaryPostID()
			Expect(c.DismissStatusSummary(ctx, "")).To(Succeed())

			last := bot.last()
			Expect(last.ID).To(Equal(id))
			Expect(last.Message).To(BeEmpty())
			Expect(last.Props).To(BeEmpty())
		})
	})

	It("refuses status updates without a tracker", func() {
		c := newController()
		_, err := c.SubmitStatusUpdate(ctx, apps.NewValues("a#1", "✔ Done"))
		Expect(err).To(MatchError(conversation.ErrNoTracker))
	})

	It("does nothing on dismiss when there is no summary", func() {
		c := newController()
		Expect(c.DismissStatusSummary(ctx, "")).To(Succeed())
		Expect(bot.sent()).To(BeEmpty())
	})
})
