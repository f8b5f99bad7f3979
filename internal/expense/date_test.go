package expense

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseDate", func() {
	DescribeTable("canonicalizes recognized formats",
		func(input, want string) {
			got, ok := ParseDate(input)
			Expect(ok).To(BeTrue())
			Expect(got).To(Equal(want))
		},
		Entry("US slashes", "04/12/2024", "2024-04-12"),
		Entry("US slashes without zero padding", "4/2/2024", "2024-04-02"),
		Entry("ISO", "2024-04-12", "2024-04-12"),
		Entry("ISO with slashes", "2024/04/12", "2024-04-12"),
		Entry("US dashes", "04-12-2024", "2024-04-12"),
		Entry("short month name", "Apr 12, 2024", "2024-04-12"),
		Entry("long month name", "April 12, 2024", "2024-04-12"),
		Entry("two-digit year", "04/12/24", "2024-04-12"),
	)

	It("is idempotent on canonical output", func() {
		first, ok := ParseDate("04/12/2024")
		Expect(ok).To(BeTrue())

		second, ok := ParseDate(first)
		Expect(ok).To(BeTrue())
		Expect(second).To(Equal(first))
	})

	It("rejects values that are not dates", func() {
		_, ok := ParseDate("total 45.67")
		Expect(ok).To(BeFalse())

		_, ok = ParseDate("")
		Expect(ok).To(BeFalse())
	})
})
