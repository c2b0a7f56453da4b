package models_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ankitagger/ankitagger/pkg/models"
)

var _ = Describe("Record", func() {
	It("reads question and answer under any known key", func() {
		byText := models.Record{"question_text": "q", "answer_text": "a"}
		byPlain := models.Record{"question": "q", "answer": "a"}
		byColumn := models.Record{"Question": "q", "Answer": "a"}

		for _, rec := range []models.Record{byText, byPlain, byColumn} {
			Expect(rec.Question()).To(Equal("q"))
			Expect(rec.Answer()).To(Equal("a"))
		}
	})

	It("reads ints from decoded JSON numbers", func() {
		var rec models.Record
		Expect(json.Unmarshal([]byte(`{"question_page": 12, "relevant_answer_image_pages": [3, 4]}`), &rec)).To(Succeed())

		page, ok := rec.Int("question_page")
		Expect(ok).To(BeTrue())
		Expect(page).To(Equal(12))
		Expect(rec.IntSlice("relevant_answer_image_pages")).To(Equal([]int{3, 4}))
	})

	It("reports absent or mistyped ints", func() {
		rec := models.Record{"question_page": "twelve"}
		_, ok := rec.Int("question_page")
		Expect(ok).To(BeFalse())
		_, ok = rec.Int("missing")
		Expect(ok).To(BeFalse())
	})

	It("stores and reads tags", func() {
		rec := models.Record{"question": "q"}
		Expect(rec.Tags()).To(BeEmpty())

		rec.SetTags("#anatomy #high_yield")
		Expect(rec.Tags()).To(Equal("#anatomy #high_yield"))
	})

	It("clones without sharing tag state", func() {
		rec := models.Record{"question": "q"}
		rec.SetTags("#first_pass")

		clone := rec.Clone()
		clone.SetTags("#second_pass")

		Expect(rec.Tags()).To(Equal("#first_pass"))
		Expect(clone.Tags()).To(Equal("#second_pass"))
		Expect(clone.Question()).To(Equal("q"))
	})
})

var _ = Describe("WorkflowReport", func() {
	It("computes the elapsed time", func() {
		report := models.WorkflowReport{
			StartTime: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2025, 1, 1, 10, 2, 30, 0, time.UTC),
		}
		Expect(report.TimeTaken()).To(Equal(2*time.Minute + 30*time.Second))
	})
})
