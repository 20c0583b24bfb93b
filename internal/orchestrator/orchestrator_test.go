package orchestrator_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eve-ci/propagate/internal/branches"
	gh "github.com/eve-ci/propagate/internal/github"
	"github.com/eve-ci/propagate/internal/gitrepo"
	"github.com/eve-ci/propagate/internal/orchestrator"
	"github.com/eve-ci/propagate/internal/resolve"
)

var _ = Describe("Orchestrator", func() {
	var (
		fork     = gh.Repo{Owner: "fred", Name: "kernel"}
		upstream = gh.Repo{Owner: "eve-os", Name: "kernel"}

		client   *fakeClient
		repo     *fakeRepo
		resolver *fakeResolver
		confirm  *fakeConfirmer
	)

	BeforeEach(func() {
		client = &fakeClient{
			fork:     fork,
			upstream: upstream,
			pr: gh.ChangeRequest{
				Number:      42,
				Title:       "Fix panic in probe",
				State:       "closed",
				URL:         "https://github.com/eve-os/kernel/pull/42",
				BaseBranch:  "master",
				MergeSHA:    "facefeedfacefeedfacefeedfacefeedfacefeed",
				IsMerged:    true,
				CommitCount: 2,
				Labels:      []string{"bug", "pr:release-1", "pr:hotfix-a"},
			},
			upstreamBranches: []gh.Branch{
				{Name: "master", SHA: "sha-master"},
				{Name: "release-1", SHA: "sha-r1"},
				{Name: "release-2", SHA: "sha-r2"},
				{Name: "hotfix-a", SHA: "sha-ha"},
			},
			upstreamSHAs: map[string]string{
				"master": "sha-master", "release-1": "sha-r1",
				"release-2": "sha-r2", "hotfix-a": "sha-ha",
			},
			forkSHAs: map[string]string{
				"master": "sha-master", "release-1": "sha-r1",
				"release-2": "sha-r2", "hotfix-a": "sha-ha",
			},
			patch: "diff --git a/probe.c b/probe.c\n",
		}
		repo = newFakeRepo()
		repo.commits = []gitrepo.Commit{
			{SHA: "c2c2c2", Subject: "second"},
			{SHA: "c1c1c1", Subject: "first"},
		}
		resolver = &fakeResolver{outcome: resolve.OutcomeAborted}
		confirm = &fakeConfirmer{answer: true}
	})

	run := func(cfg orchestrator.Config) (orchestrator.Result, error) {
		orch := orchestrator.New(cfg, client, repo, resolver, confirm, nil)
		return orch.Run(context.Background(), fork, upstream, 42)
	}

	Describe("a clean propagation", func() {
		It("publishes a change request for every labelled branch", func() {
			result, err := run(orchestrator.Config{})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Tasks).To(HaveLen(2))
			for _, task := range result.Tasks {
				Expect(task.Status).To(Equal(orchestrator.TaskStatusPublished))
				Expect(task.Result).NotTo(BeNil())
			}

			Expect(repo.fetches).To(Equal([]string{"origin dry=false", "upstream dry=false"}))
			Expect(repo.pushes).To(Equal([]string{
				"origin pr/42/release-1 force=true",
				"origin pr/42/hotfix-a force=true",
			}))

			Expect(client.created).To(HaveLen(2))
			Expect(client.created[0].Title).To(Equal("[Merge PR#42 -> release-1] Fix panic in probe"))
			Expect(client.created[0].Head).To(Equal("fred:pr/42/release-1"))
			Expect(client.created[0].Base).To(Equal("release-1"))
			Expect(client.created[0].Body).To(ContainSubstring("https://github.com/eve-os/kernel/pull/42"))
			Expect(client.created[1].Base).To(Equal("hotfix-a"))
		})

		It("replays the merged commits oldest first on each branch", func() {
			_, err := run(orchestrator.Config{})
			Expect(err).NotTo(HaveOccurred())

			Expect(repo.picked).To(Equal([]string{
				"pr/42/release-1:c1c1c1",
				"pr/42/release-1:c2c2c2",
				"pr/42/hotfix-a:c1c1c1",
				"pr/42/hotfix-a:c2c2c2",
			}))
		})

		It("restores the original branch when the run finishes", func() {
			_, err := run(orchestrator.Config{})
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.checkouts[len(repo.checkouts)-1]).To(Equal("master"))
		})

		It("marks the source completed once every declared branch has a change request", func() {
			result, err := run(orchestrator.Config{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Completed).To(BeTrue())
			Expect(client.setLabels).To(HaveLen(1))
			Expect(client.setLabels[0]).To(ConsistOf("bug", "pr:release-1", "pr:hotfix-a", "pr-merged"))
		})
	})

	Describe("idempotency", func() {
		BeforeEach(func() {
			for _, branch := range []string{"release-1", "hotfix-a"} {
				client.pool = append(client.pool, listedPR{
					head: "fred:pr/42/" + branch,
					cr: gh.ChangeRequest{
						Number:     90,
						State:      "open",
						URL:        "https://example.com/pull/90",
						BaseBranch: branch,
					},
				})
			}
		})

		It("pushes and creates nothing on a re-run", func() {
			result, err := run(orchestrator.Config{})
			Expect(err).NotTo(HaveOccurred())

			for _, task := range result.Tasks {
				Expect(task.Status).To(Equal(orchestrator.TaskStatusExisting))
				Expect(task.Result).NotTo(BeNil())
			}
			Expect(repo.pushes).To(BeEmpty())
			Expect(repo.picked).To(BeEmpty())
			Expect(client.created).To(BeEmpty())
		})

		It("still applies the completion label", func() {
			result, err := run(orchestrator.Config{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Completed).To(BeTrue())
			Expect(client.setLabels).To(HaveLen(1))
		})

		It("counts a merged propagation change request as existing", func() {
			client.pool[0].cr.State = "closed"
			client.pool[0].cr.IsMerged = true

			result, err := run(orchestrator.Config{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Tasks[0].Status).To(Equal(orchestrator.TaskStatusExisting))
		})

		It("ignores closed unmerged change requests", func() {
			client.pool[0].cr.State = "closed"
			client.pool[0].cr.IsMerged = false

			result, err := run(orchestrator.Config{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Tasks[0].Status).To(Equal(orchestrator.TaskStatusPublished))
		})
	})

	Describe("guards", func() {
		It("skips an unmerged change request", func() {
			client.pr.IsMerged = false
			client.pr.State = "open"

			result, err := run(orchestrator.Config{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Skipped).To(BeTrue())
			Expect(result.SkippedReason).To(Equal("not merged"))
			Expect(repo.fetches).To(BeEmpty())
		})

		It("refuses a change request that is already fully propagated", func() {
			client.pr.Labels = append(client.pr.Labels, "pr-merged")

			_, err := run(orchestrator.Config{})
			Expect(errors.Is(err, orchestrator.ErrAlreadyPropagated)).To(BeTrue())
			Expect(repo.fetches).To(BeEmpty())
		})
	})

	Describe("target resolution", func() {
		It("expands wildcard patterns against upstream branches", func() {
			result, err := run(orchestrator.Config{BranchPatterns: []string{"release-*"}})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Tasks).To(HaveLen(2))
			Expect(result.Tasks[0].Branch).To(Equal("release-1"))
			Expect(result.Tasks[1].Branch).To(Equal("release-2"))
		})

		It("fails when a literal pattern names a branch upstream lacks", func() {
			_, err := run(orchestrator.Config{BranchPatterns: []string{"release-9"}})

			var unknown *branches.UnknownBranchError
			Expect(errors.As(err, &unknown)).To(BeTrue())
			Expect(unknown.Branch).To(Equal("release-9"))
		})

		It("rejects a target set reduced to nothing by the base exclusion", func() {
			_, err := run(orchestrator.Config{BranchPatterns: []string{"master"}})
			Expect(errors.Is(err, orchestrator.ErrNoTargets)).To(BeTrue())
		})
	})

	Describe("fork synchronization", func() {
		It("creates missing fork branches from upstream's commit", func() {
			delete(client.forkSHAs, "release-1")

			_, err := run(orchestrator.Config{})
			Expect(err).NotTo(HaveOccurred())
			Expect(client.createdRefs).To(Equal([]string{"release-1@sha-r1"}))
		})

		It("moves stale fork branches to upstream's commit", func() {
			client.forkSHAs["hotfix-a"] = "sha-stale"

			_, err := run(orchestrator.Config{})
			Expect(err).NotTo(HaveOccurred())
			Expect(client.updatedRefs).To(Equal([]string{"hotfix-a@sha-ha"}))
		})

		It("aborts the whole run when synchronization fails", func() {
			client.upstreamErr = map[string]error{"release-1": fmt.Errorf("boom")}

			_, err := run(orchestrator.Config{})

			var syncErr *orchestrator.SyncError
			Expect(errors.As(err, &syncErr)).To(BeTrue())
			Expect(syncErr.Branch).To(Equal("release-1"))
			Expect(repo.fetches).To(BeEmpty())
		})
	})

	Describe("conflict handling", func() {
		BeforeEach(func() {
			client.pr.Labels = []string{"pr:release-1", "pr:release-2", "pr:hotfix-a"}
			repo.conflicts = map[string]map[string]*gitrepo.ConflictError{
				"pr/42/release-2": {
					"c1c1c1": {Commit: "c1c1c1", Files: []string{"probe.c"}},
				},
			}
		})

		It("isolates an aborted conflict to its own branch", func() {
			resolver.outcome = resolve.OutcomeAborted

			result, err := run(orchestrator.Config{})
			Expect(err).NotTo(HaveOccurred())

			statuses := map[string]orchestrator.TaskStatus{}
			for _, task := range result.Tasks {
				statuses[task.Branch] = task.Status
			}
			Expect(statuses["release-1"]).To(Equal(orchestrator.TaskStatusPublished))
			Expect(statuses["release-2"]).To(Equal(orchestrator.TaskStatusAborted))
			Expect(statuses["hotfix-a"]).To(Equal(orchestrator.TaskStatusPublished))

			Expect(repo.aborts).To(Equal(1))
			Expect(resolver.calls).To(HaveLen(1))
			Expect(resolver.calls[0].Branch).To(Equal("release-2"))
			Expect(resolver.calls[0].Files).To(Equal([]string{"probe.c"}))
		})

		It("withholds the completion label while a branch is unresolved", func() {
			resolver.outcome = resolve.OutcomeAborted

			result, err := run(orchestrator.Config{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Completed).To(BeFalse())
			Expect(client.setLabels).To(BeEmpty())
		})

		It("resumes the replay after the operator resolves the conflict", func() {
			resolver.outcome = resolve.OutcomeResumed

			result, err := run(orchestrator.Config{})
			Expect(err).NotTo(HaveOccurred())

			for _, task := range result.Tasks {
				Expect(task.Status).To(Equal(orchestrator.TaskStatusPublished))
			}
			Expect(repo.aborts).To(BeZero())
			// The conflicted commit is finished by the operator, only the
			// following commit is picked again.
			Expect(repo.picked).To(ContainElement("pr/42/release-2:c2c2c2"))
			Expect(result.Completed).To(BeTrue())
		})
	})

	Describe("replay shortcuts", func() {
		It("skips the replay when the change is already applied", func() {
			repo.applied = true

			result, err := run(orchestrator.Config{})
			Expect(err).NotTo(HaveOccurred())

			Expect(repo.picked).To(BeEmpty())
			for _, task := range result.Tasks {
				Expect(task.Status).To(Equal(orchestrator.TaskStatusPublished))
				Expect(task.Reason).To(Equal("change already applied"))
			}
		})
	})

	Describe("publication", func() {
		It("marks the task declined when the operator rejects the prompt", func() {
			confirm.answer = false

			result, err := run(orchestrator.Config{})
			Expect(err).NotTo(HaveOccurred())

			for _, task := range result.Tasks {
				Expect(task.Status).To(Equal(orchestrator.TaskStatusDeclined))
			}
			Expect(repo.pushes).To(HaveLen(2))
			Expect(client.created).To(BeEmpty())
			Expect(result.FailedBranches()).To(BeEmpty())
		})

		It("records a creation failure without stopping sibling branches", func() {
			client.createErr = map[string]error{"release-1": fmt.Errorf("422 validation failed")}

			result, err := run(orchestrator.Config{})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.FailedBranches()).To(Equal([]string{"release-1"}))

			var pubErr *orchestrator.PublishError
			Expect(errors.As(result.Tasks[0].Err, &pubErr)).To(BeTrue())
			Expect(pubErr.Stage).To(Equal("create"))

			Expect(result.Tasks[1].Status).To(Equal(orchestrator.TaskStatusPublished))
		})

		It("restores the original branch even when a mid-run step fails", func() {
			repo.fetchErr = map[string]error{"upstream": fmt.Errorf("network down")}

			_, err := run(orchestrator.Config{})
			Expect(err).To(HaveOccurred())
			Expect(repo.checkouts).To(Equal([]string{"master"}))
		})
	})

	Describe("dry run", func() {
		It("reports intended actions without mutating anything", func() {
			delete(client.forkSHAs, "release-1")

			result, err := run(orchestrator.Config{DryRun: true})
			Expect(err).NotTo(HaveOccurred())

			for _, task := range result.Tasks {
				Expect(task.Status).To(Equal(orchestrator.TaskStatusDryRun))
			}
			Expect(client.createdRefs).To(BeEmpty())
			Expect(client.updatedRefs).To(BeEmpty())
			Expect(client.created).To(BeEmpty())
			Expect(client.setLabels).To(BeEmpty())
			Expect(repo.picked).To(BeEmpty())
			Expect(repo.pushes).To(BeEmpty())
			Expect(repo.checkouts).To(BeEmpty())
			Expect(repo.fetches).To(Equal([]string{"origin dry=true", "upstream dry=true"}))
		})
	})
})
