package labels_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eve-ci/propagate/internal/labels"
)

var _ = Describe("Labels", func() {
	Describe("TargetBranches", func() {
		It("extracts unique branches declared by the target prefix", func() {
			labelNames := []string{
				"bug",
				"pr:release-1",
				"pr:hotfix-a",
				"pr:release-1",
				"pr:",
				"documentation",
			}

			Expect(labels.TargetBranches(labelNames)).To(Equal([]string{"release-1", "hotfix-a"}))
		})

		It("trims surrounding whitespace from labels and branches", func() {
			labelNames := []string{" pr:release-1 ", "pr: hotfix-a"}
			Expect(labels.TargetBranches(labelNames)).To(Equal([]string{"release-1", "hotfix-a"}))
		})

		It("returns an empty list when nothing is declared", func() {
			Expect(labels.TargetBranches([]string{"bug", "wontfix"})).To(BeEmpty())
		})
	})

	Describe("IsCompleted", func() {
		It("detects the completion marker", func() {
			Expect(labels.IsCompleted([]string{"bug", "pr-merged"})).To(BeTrue())
		})

		It("does not treat target labels as completion", func() {
			Expect(labels.IsCompleted([]string{"pr:release-1"})).To(BeFalse())
		})
	})

	Describe("WithCompleted", func() {
		It("appends the marker once", func() {
			withMarker := labels.WithCompleted([]string{"bug", "pr:release-1"})
			Expect(withMarker).To(Equal([]string{"bug", "pr:release-1", "pr-merged"}))
			Expect(labels.WithCompleted(withMarker)).To(Equal(withMarker))
		})

		It("does not mutate the input slice", func() {
			original := []string{"bug"}
			_ = labels.WithCompleted(original)
			Expect(original).To(Equal([]string{"bug"}))
		})
	})

	Describe("Remove", func() {
		It("drops the named branch and keeps order", func() {
			Expect(labels.Remove([]string{"release-1", "master", "hotfix-a"}, "master")).
				To(Equal([]string{"release-1", "hotfix-a"}))
		})

		It("leaves the list alone when the branch is absent", func() {
			Expect(labels.Remove([]string{"release-1"}, "master")).To(Equal([]string{"release-1"}))
		})
	})
})
