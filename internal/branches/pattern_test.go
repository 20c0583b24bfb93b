package branches_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eve-ci/propagate/internal/branches"
)

var _ = Describe("ExpandPatterns", func() {
	upstream := []string{
		"master",
		"eve-kernel-amd64-v5.10.186-generic",
		"eve-kernel-amd64-v6.1.38-generic",
		"eve-kernel-arm64-v6.1.38-generic",
		"eve-kernel-arm64-v6.1.38-nvidia",
	}

	It("keeps a literal branch that exists upstream", func() {
		targets, err := branches.ExpandPatterns([]string{"master"}, upstream)
		Expect(err).NotTo(HaveOccurred())
		Expect(targets).To(Equal([]string{"master"}))
	})

	It("rejects a literal branch that does not exist upstream", func() {
		_, err := branches.ExpandPatterns([]string{"eve-kernel-riscv64-v6.1.38-generic"}, upstream)

		var unknown *branches.UnknownBranchError
		Expect(errors.As(err, &unknown)).To(BeTrue())
		Expect(unknown.Branch).To(Equal("eve-kernel-riscv64-v6.1.38-generic"))
	})

	It("expands a wildcard in upstream order", func() {
		targets, err := branches.ExpandPatterns([]string{"eve-kernel-*-v6.1.38-*"}, upstream)
		Expect(err).NotTo(HaveOccurred())
		Expect(targets).To(Equal([]string{
			"eve-kernel-amd64-v6.1.38-generic",
			"eve-kernel-arm64-v6.1.38-generic",
			"eve-kernel-arm64-v6.1.38-nvidia",
		}))
	})

	It("tolerates a wildcard that matches nothing as long as another pattern matches", func() {
		targets, err := branches.ExpandPatterns([]string{"master", "eve-kernel-riscv64-*"}, upstream)
		Expect(err).NotTo(HaveOccurred())
		Expect(targets).To(Equal([]string{"master"}))
	})

	It("orders literals before wildcard matches and deduplicates", func() {
		targets, err := branches.ExpandPatterns(
			[]string{"eve-kernel-arm64-v6.1.38-nvidia", "eve-kernel-arm64-*"},
			upstream,
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(targets).To(Equal([]string{
			"eve-kernel-arm64-v6.1.38-nvidia",
			"eve-kernel-arm64-v6.1.38-generic",
		}))
	})

	It("does not let regex metacharacters in a pattern escape", func() {
		_, err := branches.ExpandPatterns([]string{"ma.ter"}, upstream)

		var unknown *branches.UnknownBranchError
		Expect(errors.As(err, &unknown)).To(BeTrue())
	})

	It("treats a dot as a literal inside wildcard patterns", func() {
		targets, err := branches.ExpandPatterns([]string{"*-v6.1.38-generic"}, upstream)
		Expect(err).NotTo(HaveOccurred())
		Expect(targets).To(Equal([]string{
			"eve-kernel-amd64-v6.1.38-generic",
			"eve-kernel-arm64-v6.1.38-generic",
		}))
	})

	It("fails when every pattern resolves to nothing", func() {
		_, err := branches.ExpandPatterns([]string{"eve-kernel-riscv64-*"}, upstream)

		var empty *branches.EmptyExpansionError
		Expect(errors.As(err, &empty)).To(BeTrue())
	})

	It("ignores blank pattern entries", func() {
		targets, err := branches.ExpandPatterns([]string{" ", "master"}, upstream)
		Expect(err).NotTo(HaveOccurred())
		Expect(targets).To(Equal([]string{"master"}))
	})
})
