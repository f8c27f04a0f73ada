package pipeline

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("extractJSONObject", func() {
	It("returns a bare object unchanged", func() {
		result, err := extractJSONObject(`{"a": 1}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(`{"a": 1}`))
	})

	It("strips markdown fences", func() {
		result, err := extractJSONObject("```json\n{\"a\": 1}\n```")
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(`{"a": 1}`))
	})

	It("extracts an object surrounded by prose", func() {
		result, err := extractJSONObject(`Here is the result: {"a": 1} hope that helps!`)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(`{"a": 1}`))
	})

	It("spans nested objects", func() {
		result, err := extractJSONObject(`{"a": {"b": 2}}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(`{"a": {"b": 2}}`))
	})

	It("errors when no object is present", func() {
		_, err := extractJSONObject("no json here")
		Expect(err).To(HaveOccurred())

		var parseErr *ParseError
		Expect(err).To(BeAssignableToTypeOf(parseErr))
	})

	It("errors on an unterminated object", func() {
		_, err := extractJSONObject(`{"a": 1`)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("extractJSONValue", func() {
	It("extracts a bare array", func() {
		result, err := extractJSONValue(`[1, 2, 3]`)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(`[1, 2, 3]`))
	})

	It("extracts an array surrounded by prose", func() {
		result, err := extractJSONValue("Sure!\n```\n[{\"a\": 1}]\n```")
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(`[{"a": 1}]`))
	})

	It("extracts an object", func() {
		result, err := extractJSONValue(`{"items": []}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(`{"items": []}`))
	})

	It("errors when nothing JSON-like is present", func() {
		_, err := extractJSONValue("nope")
		Expect(err).To(HaveOccurred())
	})
})
