package gemini_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ankitagger/ankitagger/internal/gemini"
	"github.com/ankitagger/ankitagger/pkg/models"
)

var _ = Describe("StripCodeFences", func() {
	It("removes a ```json fence pair", func() {
		raw := "```json\n[{\"question\": \"q\"}]\n```"
		Expect(gemini.StripCodeFences(raw)).To(Equal(`[{"question": "q"}]`))
	})

	It("removes a bare ``` fence pair", func() {
		raw := "```\n[]\n```"
		Expect(gemini.StripCodeFences(raw)).To(Equal("[]"))
	})

	It("leaves unfenced text alone", func() {
		Expect(gemini.StripCodeFences(`[{"a": 1}]`)).To(Equal(`[{"a": 1}]`))
	})
})

var _ = Describe("ParseRecordArray", func() {
	It("decodes a plain JSON array", func() {
		records, err := gemini.ParseRecordArray(`[{"question": "q1", "answer": "a1"}]`)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].Question()).To(Equal("q1"))
	})

	It("retries after stripping code fences", func() {
		raw := "```json\n[{\"question\": \"q1\", \"answer\": \"a1\"}]\n```"
		records, err := gemini.ParseRecordArray(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
	})

	It("returns nil for an empty reply", func() {
		records, err := gemini.ParseRecordArray("   ")
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(BeNil())
	})

	It("reports replies that are not JSON arrays", func() {
		_, err := gemini.ParseRecordArray("I could not find any flashcards.")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("FilterQA", func() {
	It("drops records missing a question or answer", func() {
		records := []models.Record{
			{"question": "q1", "answer": "a1"},
			{"question": "q2"},
			{"answer": "a3"},
			{"question_text": "q4", "answer_text": "a4"},
		}

		valid, dropped := gemini.FilterQA(records)
		Expect(valid).To(HaveLen(2))
		Expect(dropped).To(Equal(2))
		Expect(valid[0].Question()).To(Equal("q1"))
		Expect(valid[1].Question()).To(Equal("q4"))
	})
})

var _ = Describe("IsRecoverable", func() {
	It("treats quota and availability errors as recoverable", func() {
		for _, msg := range []string{
			"googleapi: Error 429: rate limit exceeded",
			"RESOURCE_EXHAUSTED: quota exceeded",
			"rpc error: code = Unavailable",
			"503 Service Unavailable",
			"context deadline exceeded",
		} {
			Expect(gemini.IsRecoverable(errors.New(msg))).To(BeTrue(), msg)
		}
	})

	It("treats auth and validation errors as unrecoverable", func() {
		for _, msg := range []string{
			"API key not valid",
			"400 INVALID_ARGUMENT: unknown model",
			"403 PERMISSION_DENIED",
		} {
			Expect(gemini.IsRecoverable(errors.New(msg))).To(BeFalse(), msg)
		}
	})

	It("returns false for nil", func() {
		Expect(gemini.IsRecoverable(nil)).To(BeFalse())
	})
})
